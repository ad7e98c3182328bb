// internal/models/ranking.go
package models

// VulnerabilitySignal is the externally supplied ranking input for one
// candidate. A missing signal defaults to MEDIUM vulnerability and no
// under-coverage flag.
type VulnerabilitySignal struct {
	CandidateID   string             `json:"candidateId"`
	Level         VulnerabilityLevel `json:"level"`
	UnderCoverage bool               `json:"underCoverage"`
}

// Location identifies the geographic grouping keys used by the ranking
// cluster-boost phase.
type Location struct {
	CandidateID string `json:"candidateId"`
	DistrictID  string `json:"districtId"`
	ClusterID   string `json:"clusterId"`
}

// RankedRecord is a derived, recomputed-on-every-pass priority record.
// It is never the source of truth for a decision.
type RankedRecord struct {
	CandidateID        string             `json:"candidateId"`
	SchemeID           string             `json:"schemeId"`
	Status             EligibilityStatus  `json:"status"`
	EligibilityScore   float64            `json:"eligibilityScore"`
	ConfidenceScore    float64            `json:"confidenceScore"`
	PriorityScore      float64            `json:"priorityScore"` // [0,1]
	Rank               int                `json:"rank"`          // dense, 1..N
	VulnerabilityLevel VulnerabilityLevel `json:"vulnerabilityLevel"`
	UnderCoverage      bool               `json:"underCoverage"`
	ClusterID          string             `json:"clusterId,omitempty"`
	DistrictID         string             `json:"districtId,omitempty"`
}

// CitizenHint is the compact citizen-facing projection of a ranked record.
type CitizenHint struct {
	SchemeID   string            `json:"schemeId"`
	Status     EligibilityStatus `json:"status"`
	Score      float64           `json:"score"`
	Confidence float64           `json:"confidence"`
	Rank       int               `json:"rank"`
}
