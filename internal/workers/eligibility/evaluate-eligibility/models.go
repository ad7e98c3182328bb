// internal/workers/eligibility/evaluate-eligibility/models.go
package evaluateeligibility

import "eligibility-engine/internal/models"

// Input is the job payload: either inline candidates or candidate ids to be
// resolved through the attribute source. schemeId is mandatory.
type Input struct {
	SchemeID     string              `json:"schemeId"`
	CandidateIDs []string            `json:"candidateIds,omitempty"`
	Candidates   []*models.Candidate `json:"candidates,omitempty"`
	ForceReload  bool                `json:"forceReload,omitempty"`
}

// Output carries the produced decisions back into the process instance.
type Output struct {
	SchemeID  string             `json:"schemeId"`
	Decisions []*models.Decision `json:"decisions"`
	Evaluated int                `json:"evaluated"`
	Errored   int                `json:"errored"`
}
