// internal/workers/eligibility/rank-candidates/models.go
package rankcandidates

import "eligibility-engine/internal/models"

// Input is the job payload. Decisions may arrive inline from a preceding
// evaluation task; otherwise the latest decision per candidate is loaded
// from history.
type Input struct {
	SchemeID  string             `json:"schemeId"`
	Decisions []*models.Decision `json:"decisions,omitempty"`

	// Worklist pre-filters.
	DistrictID string  `json:"districtId,omitempty"`
	MinScore   float64 `json:"minScore,omitempty"`
	Limit      int     `json:"limit,omitempty"`

	// SchemePriorityWeight scales the scheme's priority scores; zero means
	// the default weight 1.0.
	SchemePriorityWeight float64 `json:"schemePriorityWeight,omitempty"`
	DisableClustering    bool    `json:"disableClustering,omitempty"`
	HintTopK             int     `json:"hintTopK,omitempty"`
}

// Output carries the ranked worklist and the citizen-facing projection.
type Output struct {
	SchemeID     string                `json:"schemeId"`
	Ranked       []models.RankedRecord `json:"ranked"`
	CitizenHints []models.CitizenHint  `json:"citizenHints"`
	Total        int                   `json:"total"`
}
