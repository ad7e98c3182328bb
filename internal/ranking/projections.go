// internal/ranking/projections.go
package ranking

import (
	"context"

	"eligibility-engine/internal/models"
)

// CitizenHints projects the top-K ranked records into the compact
// citizen-facing shape.
func CitizenHints(records []models.RankedRecord, topK int) []models.CitizenHint {
	if topK <= 0 {
		topK = 5
	}
	if len(records) < topK {
		topK = len(records)
	}

	hints := make([]models.CitizenHint, 0, topK)
	for _, rec := range records[:topK] {
		hints = append(hints, models.CitizenHint{
			SchemeID:   rec.SchemeID,
			Status:     rec.Status,
			Score:      rec.PriorityScore,
			Confidence: rec.ConfidenceScore,
			Rank:       rec.Rank,
		})
	}
	return hints
}

// WorklistFilter narrows a department worklist before ranking. Zero values
// leave the corresponding dimension unfiltered.
type WorklistFilter struct {
	SchemeID   string
	DistrictID string
	MinScore   float64
	Limit      int
}

// Worklist runs the same ranking algorithm over a pre-filtered slice of the
// decision batch and truncates the result. District filtering happens after
// scoring because the district is only known once locations are resolved;
// ranks are reassigned within the filtered view so the worklist is dense on
// its own.
func (r *Ranker) Worklist(ctx context.Context, decisions []*models.Decision, filter WorklistFilter, opts Options) ([]models.RankedRecord, error) {
	eligible := make([]*models.Decision, 0, len(decisions))
	for _, d := range decisions {
		if d == nil {
			continue
		}
		if filter.SchemeID != "" && d.SchemeID != filter.SchemeID {
			continue
		}
		if d.EligibilityScore < filter.MinScore {
			continue
		}
		eligible = append(eligible, d)
	}

	records, err := r.Rank(ctx, eligible, opts)
	if err != nil {
		return nil, err
	}

	if filter.DistrictID != "" {
		filtered := records[:0]
		for _, rec := range records {
			if rec.DistrictID == filter.DistrictID {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
		assignRanks(records)
	}

	if filter.Limit > 0 && len(records) > filter.Limit {
		records = records[:filter.Limit]
	}
	return records, nil
}
