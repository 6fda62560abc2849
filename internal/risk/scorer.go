package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	apperrors "diabetes-risk/internal/common/errors"
	"diabetes-risk/internal/common/logger"
	"diabetes-risk/internal/common/metrics"
	"diabetes-risk/internal/common/observability"
	"diabetes-risk/internal/modelprovider"
	"diabetes-risk/internal/models"

	"github.com/google/uuid"
)

// Fallback percentages when only a class label is available.
const (
	PositiveClassScore = 65.0
	NegativeClassScore = 15.0
)

// Scorer is stateless apart from its collaborators and safe for concurrent use.
type Scorer struct {
	recs   *Recommendations
	locale string
	jitter Jitter
	now    func() time.Time
	obs    *observability.Observability
	logger logger.Logger
}

type Option func(*Scorer)

func WithJitter(j Jitter) Option {
	return func(s *Scorer) { s.jitter = j }
}

func WithLocale(locale string) Option {
	return func(s *Scorer) { s.locale = locale }
}

// WithClock replaces time.Now for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

func WithObservability(obs *observability.Observability) Option {
	return func(s *Scorer) { s.obs = obs }
}

func NewScorer(recs *Recommendations, log logger.Logger, opts ...Option) *Scorer {
	if recs == nil {
		recs = DefaultRecommendations()
	}
	s := &Scorer{
		recs:   recs,
		locale: DefaultLocale,
		jitter: RandomJitter{Width: 5},
		now:    time.Now,
		logger: log.WithFields(map[string]interface{}{"component": "risk_scorer"}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score validates the profile, runs the model and packages the result. On
// any failure it returns an error and no assessment.
func (s *Scorer) Score(ctx context.Context, profile models.UserProfile, model *modelprovider.Model) (*models.RiskAssessment, error) {
	start := time.Now()

	assessment, err := s.score(ctx, profile, model)
	elapsed := time.Since(start)
	metrics.AssessmentDuration.Observe(elapsed.Seconds())

	if err != nil {
		code := apperrors.AsStandard(err).Code
		metrics.AssessmentFailures.WithLabelValues(string(code)).Inc()
		s.obs.RecordAssessment(ctx, string(code), elapsed)
		s.logger.Warn("assessment not produced", map[string]interface{}{
			"errorCode": string(code),
			"error":     err,
		})
		return nil, err
	}

	metrics.AssessmentsTotal.WithLabelValues(string(assessment.Tier), modelLabel(model)).Inc()
	s.obs.RecordAssessment(ctx, string(assessment.Tier), elapsed)
	s.logger.Info("assessment produced", map[string]interface{}{
		"assessmentId": assessment.ID.String(),
		"probability":  assessment.Probability,
		"tier":         string(assessment.Tier),
		"model":        assessment.ModelSource,
		"durationMs":   float64(elapsed.Microseconds()) / 1000,
	})
	return assessment, nil
}

func (s *Scorer) score(ctx context.Context, profile models.UserProfile, model *modelprovider.Model) (*models.RiskAssessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewAssessmentUnavailableError(err)
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if model == nil || model.Estimator == nil {
		return nil, apperrors.NewAssessmentUnavailableError(fmt.Errorf("no model available"))
	}

	fv := Encode(profile)

	probability, err := s.infer(model, fv)
	if err != nil {
		return nil, apperrors.NewAssessmentUnavailableError(err)
	}

	if model.Placeholder {
		probability = clamp(probability+s.jitter.Offset(fv), 0, 100)
	}

	tier := TierFor(probability)

	return &models.RiskAssessment{
		ID:              uuid.New(),
		Probability:     probability,
		Tier:            tier,
		Recommendations: s.recs.For(s.locale, tier),
		GeneratedAt:     s.now(),
		SourceProfile:   profile,
		ModelSource:     model.Source,
		Placeholder:     model.Placeholder,
	}, nil
}

// infer prefers a calibrated probability and falls back to the class label
// when the probability is missing, errors or is out of range.
func (s *Scorer) infer(model *modelprovider.Model, fv models.FeatureVector) (prob float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			prob, err = 0, apperrors.NewInferenceFailedError(fmt.Errorf("model panicked: %v", r))
		}
	}()

	if calibrated, ok := model.Calibrated(); ok {
		p, perr := calibrated.PredictProbability(fv)
		if perr == nil && !math.IsNaN(p) && p >= 0 && p <= 1 {
			return p * 100, nil
		}
		s.logger.Debug("probability unavailable, using class label", map[string]interface{}{
			"probability": p,
			"error":       perr,
		})
	}

	class, err := model.Estimator.PredictClass(fv)
	if err != nil {
		return 0, apperrors.NewInferenceFailedError(err)
	}
	switch class {
	case 1:
		return PositiveClassScore, nil
	case 0:
		return NegativeClassScore, nil
	default:
		return 0, apperrors.NewInferenceFailedError(fmt.Errorf("unexpected class label %d", class))
	}
}

func modelLabel(m *modelprovider.Model) string {
	if m != nil && m.Placeholder {
		return "placeholder"
	}
	return "artifact"
}
