// internal/ranking/ranker.go

// Package ranking converts batches of decisions into vulnerability- and
// locality-aware priority orderings.
package ranking

import (
	"context"
	"sort"

	"eligibility-engine/internal/common/logger"
	"eligibility-engine/internal/common/metrics"
	"eligibility-engine/internal/models"
)

// VulnerabilityLookup resolves external vulnerability signals.
type VulnerabilityLookup interface {
	Signal(ctx context.Context, candidateID string) (models.VulnerabilitySignal, error)
}

// LocationLookup resolves the geographic grouping keys.
type LocationLookup interface {
	Location(ctx context.Context, candidateID string) (models.Location, error)
}

// Config carries the deployment-wide ranking parameters.
type Config struct {
	UnderCoverageBoost    float64 // added inside the clamp when the candidate is under-covered
	ClusterBoostPerMember float64 // per-member share of the cluster boost
	ClusterBoostCap       float64 // ceiling on the cluster boost
}

// DefaultConfig returns the stock ranking parameters.
func DefaultConfig() Config {
	return Config{
		UnderCoverageBoost:    0.15,
		ClusterBoostPerMember: 0.01,
		ClusterBoostCap:       0.1,
	}
}

// Options tune one ranking pass.
type Options struct {
	// SchemeWeight scales the whole scheme's priority scores; zero means the
	// default weight 1.0. Scores stay within [0, 1] regardless of the weight.
	SchemeWeight float64
	// DisableClustering skips the geographic boost phase.
	DisableClustering bool
}

// Ranker computes priority orderings. Ranking runs in explicit stages:
// score, rank, then cluster boost with a re-rank. The boost phase needs the
// complete scored output before it can run, because group sizes are unknown
// until every record has been placed; it is a synchronization barrier, not a
// streaming step.
type Ranker struct {
	vulnerability VulnerabilityLookup
	location      LocationLookup
	cfg           Config
	logger        logger.Logger
}

// NewRanker builds a ranker. Either lookup may be nil: a nil vulnerability
// lookup ranks everyone at the MEDIUM default, a nil location lookup
// disables clustering.
func NewRanker(vulnerability VulnerabilityLookup, location LocationLookup, cfg Config, log logger.Logger) *Ranker {
	return &Ranker{
		vulnerability: vulnerability,
		location:      location,
		cfg:           cfg,
		logger:        log.WithFields(map[string]interface{}{"component": "priority-ranker"}),
	}
}

// Rank produces the full ranked projection of one decision batch. Only
// RULE_ELIGIBLE and POSSIBLE_ELIGIBLE decisions are rankable; everything
// else is dropped.
func (r *Ranker) Rank(ctx context.Context, decisions []*models.Decision, opts Options) ([]models.RankedRecord, error) {
	schemeWeight := opts.SchemeWeight
	if schemeWeight == 0 {
		schemeWeight = 1.0
	}

	records := r.scoreRecords(ctx, decisions, schemeWeight)
	assignRanks(records)

	if !opts.DisableClustering && r.location != nil {
		r.applyClusterBoost(records)
		assignRanks(records)
	}

	metrics.RankingBatchSize.Observe(float64(len(records)))
	return records, nil
}

// scoreRecords is stage one: filter to rankable decisions and compute the
// base priority score from eligibility, confidence, vulnerability, and
// under-coverage.
func (r *Ranker) scoreRecords(ctx context.Context, decisions []*models.Decision, schemeWeight float64) []models.RankedRecord {
	records := make([]models.RankedRecord, 0, len(decisions))
	for _, d := range decisions {
		if d == nil || !d.Status.Rankable() {
			continue
		}

		signal := r.lookupSignal(ctx, d.CandidateID)

		boost := 0.0
		if signal.UnderCoverage {
			boost = r.cfg.UnderCoverageBoost
		}
		base := clamp01(clamp01(d.EligibilityScore*d.ConfidenceScore*signal.Level.Multiplier()+boost) * schemeWeight)

		record := models.RankedRecord{
			CandidateID:        d.CandidateID,
			SchemeID:           d.SchemeID,
			Status:             d.Status,
			EligibilityScore:   d.EligibilityScore,
			ConfidenceScore:    d.ConfidenceScore,
			PriorityScore:      base,
			VulnerabilityLevel: signal.Level,
			UnderCoverage:      signal.UnderCoverage,
		}

		if r.location != nil {
			loc, err := r.location.Location(ctx, d.CandidateID)
			if err != nil {
				r.logger.Warn("location lookup failed, ranking candidate unclustered", map[string]interface{}{
					"candidateId": d.CandidateID,
					"error":       err.Error(),
				})
			} else {
				record.ClusterID = loc.ClusterID
				record.DistrictID = loc.DistrictID
			}
		}

		records = append(records, record)
	}
	return records
}

func (r *Ranker) lookupSignal(ctx context.Context, candidateID string) models.VulnerabilitySignal {
	fallback := models.VulnerabilitySignal{CandidateID: candidateID, Level: models.VulnerabilityMedium}
	if r.vulnerability == nil {
		return fallback
	}
	signal, err := r.vulnerability.Signal(ctx, candidateID)
	if err != nil {
		r.logger.Warn("vulnerability lookup failed, using MEDIUM default", map[string]interface{}{
			"candidateId": candidateID,
			"error":       err.Error(),
		})
		return fallback
	}
	return signal
}

// assignRanks is stage two: sort by priority descending and hand out dense
// ranks 1..N. Ties break on candidate id so a re-run of the same batch
// yields the same order.
func assignRanks(records []models.RankedRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].PriorityScore != records[j].PriorityScore {
			return records[i].PriorityScore > records[j].PriorityScore
		}
		return records[i].CandidateID < records[j].CandidateID
	})
	for i := range records {
		records[i].Rank = i + 1
	}
}

// applyClusterBoost is stage three: group the ranked output by (cluster,
// district) and lift every member of a group by min(cap, size*perMember).
// Unclustered records are left untouched.
func (r *Ranker) applyClusterBoost(records []models.RankedRecord) {
	type groupKey struct {
		cluster  string
		district string
	}

	sizes := make(map[groupKey]int)
	for i := range records {
		if records[i].ClusterID == "" {
			continue
		}
		sizes[groupKey{records[i].ClusterID, records[i].DistrictID}]++
	}

	for i := range records {
		if records[i].ClusterID == "" {
			continue
		}
		size := sizes[groupKey{records[i].ClusterID, records[i].DistrictID}]
		boost := float64(size) * r.cfg.ClusterBoostPerMember
		if boost > r.cfg.ClusterBoostCap {
			boost = r.cfg.ClusterBoostCap
		}
		records[i].PriorityScore = clamp01(records[i].PriorityScore + boost)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
