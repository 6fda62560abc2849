package assessdiabetesrisk

import (
	"context"
	"errors"
	"testing"
	"time"

	"diabetes-risk/internal/common/config"
	apperrors "diabetes-risk/internal/common/errors"
	"diabetes-risk/internal/common/logger"
	"diabetes-risk/internal/modelprovider"
	"diabetes-risk/internal/models"
	"diabetes-risk/internal/risk"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test doubles
// ==========================

type fixedModels struct{ model *modelprovider.Model }

func (f fixedModels) Acquire(context.Context) *modelprovider.Model { return f.model }

type probabilityModel float64

func (p probabilityModel) PredictProbability(models.FeatureVector) (float64, error) {
	return float64(p), nil
}

func (p probabilityModel) PredictClass(models.FeatureVector) (int, error) {
	if p > 0.5 {
		return 1, nil
	}
	return 0, nil
}

type MockAlerter struct{ mock.Mock }

func (m *MockAlerter) AlertHighRisk(ctx context.Context, a *models.RiskAssessment) (bool, error) {
	args := m.Called(ctx, a)
	return args.Bool(0), args.Error(1)
}

type memoryHistory struct {
	saved  []*models.RiskAssessment
	owners []string
	err    error
}

func (m *memoryHistory) Save(_ context.Context, owner string, a *models.RiskAssessment) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, a)
	m.owners = append(m.owners, owner)
	return nil
}

func (m *memoryHistory) Get(context.Context, string, uuid.UUID) (*models.RiskAssessment, error) {
	return nil, nil
}

func (m *memoryHistory) List(context.Context, string, int) ([]*models.RiskAssessment, error) {
	return m.saved, nil
}

func newTestHandler(t *testing.T, prob float64, opts HandlerOptions) *Handler {
	t.Helper()
	log := logger.NewTestLogger(t)
	opts.Models = fixedModels{&modelprovider.Model{Estimator: probabilityModel(prob), Source: "/models/model.json"}}
	opts.Scorer = risk.NewScorer(risk.DefaultRecommendations(), log)
	opts.Logger = log
	h, err := NewHandler(opts)
	require.NoError(t, err)
	return h
}

// ==========================
// Execute
// ==========================

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name     string
		prob     float64
		wantTier string
		alert    bool
	}{
		{"low risk", 0.08, "low", false},
		{"medium risk", 0.35, "medium", false},
		{"high risk alerts", 0.81, "high", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerter := &MockAlerter{}
			alerter.On("AlertHighRisk", mock.Anything, mock.Anything).Return(tt.alert, nil).Once()
			hist := &memoryHistory{}

			h := newTestHandler(t, tt.prob, HandlerOptions{History: hist, Alerter: alerter})
			out, err := h.Execute(context.Background(), &Input{Profile: models.DefaultProfile()})
			require.NoError(t, err)

			assert.Equal(t, tt.wantTier, out.RiskTier)
			assert.InDelta(t, tt.prob*100, out.RiskProbability, 1e-9)
			assert.Len(t, out.Recommendations, 3)
			assert.Equal(t, tt.alert, out.AlertSent)
			assert.False(t, out.PlaceholderModel)
			_, err = time.Parse(time.RFC3339, out.GeneratedAt)
			assert.NoError(t, err)

			require.Len(t, hist.saved, 1)
			assert.Equal(t, out.AssessmentID, hist.saved[0].ID.String())
			assert.Equal(t, []string{""}, hist.owners)
			alerter.AssertExpectations(t)
		})
	}
}

func TestHandler_Execute_InvalidProfile(t *testing.T) {
	hist := &memoryHistory{}
	h := newTestHandler(t, 0.1, HandlerOptions{History: hist})

	profile := models.DefaultProfile()
	profile.Gender = "other"

	_, err := h.Execute(context.Background(), &Input{Profile: profile})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidationFailed))
	assert.Empty(t, hist.saved)

	bpmn := apperrors.ConvertToBPMNError(apperrors.AsStandard(err))
	assert.Equal(t, "RISK_PROFILE_INVALID", bpmn.Code)
	assert.Equal(t, 0, bpmn.Retries)
}

func TestHandler_Execute_HistoryFailure(t *testing.T) {
	h := newTestHandler(t, 0.1, HandlerOptions{
		History: &memoryHistory{err: apperrors.NewDatabaseInsertFailedError(errors.New("connection reset"))},
	})

	_, err := h.Execute(context.Background(), &Input{Profile: models.DefaultProfile()})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDatabaseInsertFailed))
}

func TestHandler_Execute_AlertFailureIsNotFatal(t *testing.T) {
	alerter := &MockAlerter{}
	alerter.On("AlertHighRisk", mock.Anything, mock.Anything).
		Return(false, apperrors.NewNotificationSendFailedError("sns", errors.New("throttled")))

	h := newTestHandler(t, 0.9, HandlerOptions{Alerter: alerter})
	out, err := h.Execute(context.Background(), &Input{Profile: models.DefaultProfile()})

	require.NoError(t, err)
	assert.False(t, out.AlertSent)
	assert.Equal(t, "high", out.RiskTier)
}

func TestHandler_Execute_NoModel(t *testing.T) {
	log := logger.NewTestLogger(t)
	h, err := NewHandler(HandlerOptions{
		Models: fixedModels{},
		Scorer: risk.NewScorer(nil, log),
		Logger: log,
	})
	require.NoError(t, err)

	_, err = h.Execute(context.Background(), &Input{Profile: models.DefaultProfile()})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAssessmentUnavailable))
}

// ==========================
// Input parsing and config
// ==========================

func TestParseInput(t *testing.T) {
	valid := `{"profile":{"age":60,"gender":"female","education":"low","poverty_index":1.2,
		"has_health_insurance":false,"regular_activity":true,"sleep_sufficient":false,"heavy_alcohol":false,
		"smoker":true,"hypertension_history":true,"high_cholesterol_history":false},"applicantId":"a-1"}`

	input, err := parseInput(valid)
	require.NoError(t, err)
	assert.Equal(t, 60, input.Profile.Age)
	assert.Equal(t, models.GenderFemale, input.Profile.Gender)
	assert.True(t, input.Profile.Smoker)

	tests := []struct {
		name      string
		variables string
		field     string
	}{
		{"not json", `{`, "(root)"},
		{"missing profile", `{"applicantId":"a-1"}`, "profile"},
		{"age out of range", `{"profile":{"age":12,"gender":"female","education":"low","poverty_index":1.2,
			"has_health_insurance":false,"regular_activity":true,"sleep_sufficient":false,"heavy_alcohol":false,
			"smoker":true,"hypertension_history":true,"high_cholesterol_history":false}}`, "age"},
		{"missing field", `{"profile":{"age":40}}`, "gender"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseInput(tt.variables)
			require.Error(t, err)
			std := apperrors.AsStandard(err)
			assert.Equal(t, apperrors.ErrCodeValidationFailed, std.Code)

			fields := make([]string, 0, len(std.Fields))
			for _, f := range std.Fields {
				fields = append(fields, f.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestConfigFromAppConfig(t *testing.T) {
	cfg := &config.Config{Workers: map[string]config.WorkerConfig{
		TaskType: {Enabled: false, MaxJobsActive: 2, Timeout: 2500},
	}}
	c := ConfigFromAppConfig(cfg)
	assert.False(t, c.Enabled)
	assert.Equal(t, 2, c.MaxJobsActive)
	assert.Equal(t, 2500*time.Millisecond, c.Timeout)

	c = ConfigFromAppConfig(&config.Config{})
	assert.True(t, c.Enabled)
	assert.Equal(t, 5, c.MaxJobsActive)
}

func TestHandler_WorkerOptions(t *testing.T) {
	cfg := &config.Config{Workers: map[string]config.WorkerConfig{
		TaskType: {Enabled: true, MaxJobsActive: 3, Timeout: 4000},
	}}
	h := newTestHandler(t, 0.1, HandlerOptions{Config: ConfigFromAppConfig(cfg)})

	opts := h.WorkerOptions()
	assert.True(t, opts.Enabled)
	assert.Equal(t, 3, opts.MaxJobsActive)
	assert.Equal(t, 4*time.Second, opts.Timeout)

	cfg.Workers[TaskType] = config.WorkerConfig{Enabled: false, MaxJobsActive: 1, Timeout: 1000}
	h = newTestHandler(t, 0.1, HandlerOptions{Config: ConfigFromAppConfig(cfg)})
	assert.False(t, h.WorkerOptions().Enabled)
}

func TestNewHandler_Rejects(t *testing.T) {
	_, err := NewHandler(HandlerOptions{Config: &Config{Timeout: 0, MaxJobsActive: 1}})
	assert.Error(t, err)

	_, err = NewHandler(HandlerOptions{})
	assert.Error(t, err)
}
