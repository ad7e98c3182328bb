// internal/workers/eligibility/evaluate-eligibility/handler.go
package evaluateeligibility

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
)

const (
	TaskType = "evaluate-eligibility"
)

// BatchEvaluator is the slice of the decision service this worker needs.
type BatchEvaluator interface {
	EvaluateBatch(ctx context.Context, schemeID string, candidates []*models.Candidate) ([]*models.Decision, error)
	EvaluateBatchByID(ctx context.Context, schemeID string, candidateIDs []string) ([]*models.Decision, error)
}

// RuleReloader invalidates the cached rule set ahead of a forced reload.
type RuleReloader interface {
	Invalidate(ctx context.Context, schemeID string)
}

type Handler struct {
	config    *Config
	evaluator BatchEvaluator
	reloader  RuleReloader
	logger    logger.Logger
}

func NewHandler(config *Config, evaluator BatchEvaluator, reloader RuleReloader, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		evaluator: evaluator,
		reloader:  reloader,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
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
		h.failJob(client, job, "EVALUATION_FAILED", err.Error(), 0)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.SchemeID == "" {
		return nil, errors.New("schemeId is required")
	}
	if len(input.Candidates) == 0 && len(input.CandidateIDs) == 0 {
		return nil, errors.New("either candidates or candidateIds must be provided")
	}

	if input.ForceReload && h.reloader != nil {
		h.reloader.Invalidate(ctx, input.SchemeID)
	}

	var (
		decisions []*models.Decision
		err       error
	)
	if len(input.Candidates) > 0 {
		decisions, err = h.evaluator.EvaluateBatch(ctx, input.SchemeID, input.Candidates)
	} else {
		decisions, err = h.evaluator.EvaluateBatchByID(ctx, input.SchemeID, input.CandidateIDs)
	}
	if err != nil {
		return nil, err
	}

	errored := 0
	for _, d := range decisions {
		if d != nil && d.Status == models.StatusError {
			errored++
		}
	}

	h.logger.Info("batch evaluated", map[string]interface{}{
		"schemeId":  input.SchemeID,
		"evaluated": len(decisions),
		"errored":   errored,
	})

	return &Output{
		SchemeID:  input.SchemeID,
		Decisions: decisions,
		Evaluated: len(decisions),
		Errored:   errored,
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
