// internal/models/decision.go
package models

import "time"

// Decision is the combined outcome of rule evaluation and learned scoring
// for one (candidate, scheme) pair. Decisions are immutable and append-only:
// a re-evaluation produces a new Decision with a new ID, never an update.
type Decision struct {
	ID               string            `json:"id"`
	SchemeID         string            `json:"schemeId"`
	CandidateID      string            `json:"candidateId"`
	Status           EligibilityStatus `json:"status"`
	EligibilityScore float64           `json:"eligibilityScore"` // [0,1]
	ConfidenceScore  float64           `json:"confidenceScore"`  // [0,1]
	ConflictResolved bool              `json:"conflictResolved"`
	RequiresReview   bool              `json:"requiresReview"`
	ReasonCodes      []string          `json:"reasonCodes"`
	Explanation      string            `json:"explanation"`
	RulesPassed      []string          `json:"rulesPassed,omitempty"`
	RulesFailed      []string          `json:"rulesFailed,omitempty"`
	ModelID          string            `json:"modelId,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
}
