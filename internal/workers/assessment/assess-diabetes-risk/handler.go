// internal/workers/assessment/assess-diabetes-risk/handler.go
package assessdiabetesrisk

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"diabetes-risk/internal/common/camunda"
	"diabetes-risk/internal/common/errors"
	"diabetes-risk/internal/common/logger"
	"diabetes-risk/internal/common/metrics"
	"diabetes-risk/internal/common/validation"
	"diabetes-risk/internal/history"
	"diabetes-risk/internal/modelprovider"
	"diabetes-risk/internal/models"
	"diabetes-risk/internal/risk"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "assess-diabetes-risk"

// ModelSource hands out the process-wide model.
type ModelSource interface {
	Acquire(ctx context.Context) *modelprovider.Model
}

type Alerter interface {
	AlertHighRisk(ctx context.Context, a *models.RiskAssessment) (bool, error)
}

type Handler struct {
	config  *Config
	models  ModelSource
	scorer  *risk.Scorer
	history history.Repository
	alerter Alerter
	logger  logger.Logger
	errors  *errors.ErrorHandler
}

type HandlerOptions struct {
	Config  *Config
	Models  ModelSource
	Scorer  *risk.Scorer
	History history.Repository // optional
	Alerter Alerter            // optional
	Logger  logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Models == nil || opts.Scorer == nil {
		return nil, fmt.Errorf("%s needs a model source and a scorer", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:  cfg,
		models:  opts.Models,
		scorer:  opts.Scorer,
		history: opts.History,
		alerter: opts.Alerter,
		logger:  log,
		errors:  errors.NewErrorHandler(log),
	}, nil
}

// WorkerOptions is the job subscription this handler is configured for.
func (h *Handler) WorkerOptions() camunda.WorkerOptions {
	return camunda.WorkerOptions{
		Enabled:       h.config.Enabled,
		MaxJobsActive: h.config.MaxJobsActive,
		Timeout:       h.config.Timeout,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := parseInput(job.Variables)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	output, err := h.execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

// parseInput validates the profile variable against the profile schema
// before decoding it.
func parseInput(variables string) (*Input, error) {
	var raw struct {
		Profile map[string]interface{} `json:"profile"`
	}
	if err := json.Unmarshal([]byte(variables), &raw); err != nil {
		return nil, errors.NewValidationFailedError([]errors.FieldError{{Field: "(root)", Message: err.Error()}})
	}
	if raw.Profile == nil {
		return nil, errors.NewValidationFailedError([]errors.FieldError{{Field: "profile", Message: "is required"}})
	}
	if err := validation.ProfileSchema.ValidateInput(raw.Profile).Err(); err != nil {
		return nil, err
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewValidationFailedError([]errors.FieldError{{Field: "profile", Message: err.Error()}})
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	model := h.models.Acquire(ctx)

	assessment, err := h.scorer.Score(ctx, input.Profile, model)
	if err != nil {
		return nil, err
	}

	// Workflow assessments have no visitor session and stay out of the
	// visitor-facing history API.
	if h.history != nil {
		if err := h.history.Save(ctx, "", assessment); err != nil {
			return nil, err
		}
	}

	alertSent := false
	if h.alerter != nil {
		sent, err := h.alerter.AlertHighRisk(ctx, assessment)
		if err != nil {
			h.logger.Warn("high risk alert not delivered", map[string]interface{}{
				"assessmentId": assessment.ID.String(),
				"error":        err,
			})
		}
		alertSent = sent
	}

	return &Output{
		AssessmentID:     assessment.ID.String(),
		RiskProbability:  assessment.Probability,
		RiskTier:         string(assessment.Tier),
		Recommendations:  assessment.Recommendations,
		GeneratedAt:      assessment.GeneratedAt.UTC().Format(time.RFC3339),
		ModelSource:      assessment.ModelSource,
		PlaceholderModel: assessment.Placeholder,
		AlertSent:        alertSent,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.AsStandard(err).Code)).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}

// Execute runs the assessment without a job client.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
