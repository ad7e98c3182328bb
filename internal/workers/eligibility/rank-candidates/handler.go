// internal/workers/eligibility/rank-candidates/handler.go
package rankcandidates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "eligibility-engine/internal/common/errors"
	"eligibility-engine/internal/common/logger"
	"eligibility-engine/internal/models"
	"eligibility-engine/internal/ranking"
)

const (
	TaskType = "rank-candidates"
)

// Ranker is the slice of the ranking package this worker needs.
type Ranker interface {
	Rank(ctx context.Context, decisions []*models.Decision, opts ranking.Options) ([]models.RankedRecord, error)
	Worklist(ctx context.Context, decisions []*models.Decision, filter ranking.WorklistFilter, opts ranking.Options) ([]models.RankedRecord, error)
}

// DecisionLoader provides the latest decision per candidate when the job
// does not carry decisions inline.
type DecisionLoader interface {
	LatestDecisions(ctx context.Context, schemeID string, limit int) ([]*models.Decision, error)
}

type Handler struct {
	config *Config
	ranker Ranker
	loader DecisionLoader
	logger logger.Logger
}

func NewHandler(config *Config, ranker Ranker, loader DecisionLoader, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		ranker: ranker,
		loader: loader,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err), 0)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		var stdErr *apperrors.StandardError
		if errors.As(err, &stdErr) {
			h.failJob(client, job, string(stdErr.Code), stdErr.Message, int32(apperrors.GetRetryCount(stdErr.Code)))
			return
		}
		h.failJob(client, job, string(apperrors.ErrCodeRankingFailed), err.Error(), 0)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.SchemeID == "" {
		return nil, errors.New("schemeId is required")
	}

	decisions := input.Decisions
	if len(decisions) == 0 {
		if h.loader == nil {
			return nil, errors.New("no decisions provided and no history loader configured")
		}
		loaded, err := h.loader.LatestDecisions(ctx, input.SchemeID, h.config.HistoryLimit)
		if err != nil {
			return nil, err
		}
		decisions = loaded
	}

	opts := ranking.Options{
		SchemeWeight:      input.SchemePriorityWeight,
		DisableClustering: input.DisableClustering,
	}

	var (
		records []models.RankedRecord
		err     error
	)
	if input.DistrictID != "" || input.MinScore > 0 || input.Limit > 0 {
		records, err = h.ranker.Worklist(ctx, decisions, ranking.WorklistFilter{
			SchemeID:   input.SchemeID,
			DistrictID: input.DistrictID,
			MinScore:   input.MinScore,
			Limit:      input.Limit,
		}, opts)
	} else {
		records, err = h.ranker.Rank(ctx, decisions, opts)
	}
	if err != nil {
		return nil, apperrors.NewRankingFailedError(err)
	}

	h.logger.Info("batch ranked", map[string]interface{}{
		"schemeId": input.SchemeID,
		"ranked":   len(records),
	})

	return &Output{
		SchemeID:     input.SchemeID,
		Ranked:       records,
		CitizenHints: ranking.CitizenHints(records, input.HintTopK),
		Total:        len(records),
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string, retries int32) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
	})

	if retries > 0 {
		_, err := client.NewFailJobCommand().
			JobKey(job.Key).
			Retries(retries).
			ErrorMessage(errorMessage).
			Send(context.Background())
		if err != nil {
			h.logger.Error("failed to fail job", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return
	}

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Execute exposes the core path for direct invocation in tests and tools.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
