package risk

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	apperrors "diabetes-risk/internal/common/errors"
	"diabetes-risk/internal/common/logger"
	"diabetes-risk/internal/modelprovider"
	"diabetes-risk/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test doubles
// ==========================

type stubCalibrated struct {
	prob     float64
	probErr  error
	class    int
	classErr error
}

func (m *stubCalibrated) PredictProbability(models.FeatureVector) (float64, error) {
	return m.prob, m.probErr
}

func (m *stubCalibrated) PredictClass(models.FeatureVector) (int, error) {
	return m.class, m.classErr
}

type stubClassifier struct {
	class int
	err   error
}

func (m *stubClassifier) PredictClass(models.FeatureVector) (int, error) {
	return m.class, m.err
}

type panickyModel struct{}

func (panickyModel) PredictClass(models.FeatureVector) (int, error) {
	panic("shape mismatch")
}

type fixedJitter struct {
	offset float64
	calls  int
}

func (j *fixedJitter) Offset(models.FeatureVector) float64 {
	j.calls++
	return j.offset
}

func realModel(est modelprovider.ClassifierOnlyModel) *modelprovider.Model {
	return &modelprovider.Model{Estimator: est, Source: "/models/model.json"}
}

func placeholderModel(est modelprovider.ClassifierOnlyModel) *modelprovider.Model {
	return &modelprovider.Model{Estimator: est, Placeholder: true, Source: modelprovider.PlaceholderSource}
}

func newTestScorer(t *testing.T, opts ...Option) *Scorer {
	t.Helper()
	return NewScorer(DefaultRecommendations(), logger.NewTestLogger(t), opts...)
}

// ==========================
// Real model path
// ==========================

func TestScore_RealModelLowTier(t *testing.T) {
	j := &fixedJitter{offset: 5}
	s := newTestScorer(t, WithJitter(j))

	a, err := s.Score(context.Background(), models.DefaultProfile(), realModel(&stubCalibrated{prob: 0.10}))
	require.NoError(t, err)

	assert.InDelta(t, 10.0, a.Probability, 1e-9)
	assert.Equal(t, models.TierLow, a.Tier)
	assert.Equal(t, DefaultRecommendations().For("en", models.TierLow), a.Recommendations)
	assert.Len(t, a.Recommendations, 3)
	assert.Equal(t, 0, j.calls, "real models are never perturbed")
	assert.False(t, a.Placeholder)
	assert.Equal(t, "/models/model.json", a.ModelSource)
}

func TestScore_Deterministic(t *testing.T) {
	s := newTestScorer(t)
	model := realModel(&modelprovider.LogisticModel{
		Weights:   [models.FeatureCount]float64{0.8, 0.2, 0.3, -0.4, -0.1, -0.5, 0.3, 0.4, 0.5, 0.9, 0.7},
		Intercept: -1.2,
	})

	profile := models.DefaultProfile()
	profile.Smoker = true
	profile.HypertensionHistory = true

	first, err := s.Score(context.Background(), profile, model)
	require.NoError(t, err)
	second, err := s.Score(context.Background(), profile, model)
	require.NoError(t, err)

	assert.Equal(t, first.Probability, second.Probability)
	assert.Equal(t, first.Tier, second.Tier)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestScore_PopulatesAssessment(t *testing.T) {
	fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	s := newTestScorer(t, WithClock(func() time.Time { return fixed }))

	profile := models.DefaultProfile()
	a, err := s.Score(context.Background(), profile, realModel(&stubCalibrated{prob: 0.72}))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, fixed, a.GeneratedAt)
	assert.Equal(t, "2026-03-14 09:26:53", a.FormattedTime())
	assert.Equal(t, profile, a.SourceProfile)
	assert.Equal(t, models.TierHigh, a.Tier)
}

func TestScore_Locale(t *testing.T) {
	s := newTestScorer(t, WithLocale("zh"))

	a, err := s.Score(context.Background(), models.DefaultProfile(), realModel(&stubCalibrated{prob: 0.3}))
	require.NoError(t, err)

	assert.Equal(t, models.TierMedium, a.Tier)
	assert.Equal(t, "⚠️ 每6个月监测一次空腹血糖和餐后血糖", a.Recommendations[0])
}

// ==========================
// Class fallback
// ==========================

func TestScore_ClassFallback(t *testing.T) {
	tests := []struct {
		name     string
		model    modelprovider.ClassifierOnlyModel
		wantProb float64
		wantTier models.Tier
	}{
		{"classifier only positive", &stubClassifier{class: 1}, PositiveClassScore, models.TierHigh},
		{"classifier only negative", &stubClassifier{class: 0}, NegativeClassScore, models.TierLow},
		{"probability errors", &stubCalibrated{probErr: errors.New("no proba"), class: 1}, PositiveClassScore, models.TierHigh},
		{"probability NaN", &stubCalibrated{prob: math.NaN(), class: 0}, NegativeClassScore, models.TierLow},
		{"probability above one", &stubCalibrated{prob: 1.2, class: 1}, PositiveClassScore, models.TierHigh},
		{"probability negative", &stubCalibrated{prob: -0.1, class: 0}, NegativeClassScore, models.TierLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScorer(t)
			a, err := s.Score(context.Background(), models.DefaultProfile(), realModel(tt.model))
			require.NoError(t, err)
			assert.Equal(t, tt.wantProb, a.Probability)
			assert.Equal(t, tt.wantTier, a.Tier)
		})
	}
}

func TestScore_InferenceFailure(t *testing.T) {
	tests := []struct {
		name  string
		model modelprovider.ClassifierOnlyModel
	}{
		{"class error", &stubClassifier{err: errors.New("wrong shape")}},
		{"unexpected class", &stubClassifier{class: 2}},
		{"both paths fail", &stubCalibrated{probErr: errors.New("a"), classErr: errors.New("b")}},
		{"panic", panickyModel{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScorer(t)
			a, err := s.Score(context.Background(), models.DefaultProfile(), realModel(tt.model))

			assert.Nil(t, a)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAssessmentUnavailable))

			var inner *apperrors.StandardError
			require.True(t, errors.As(errors.Unwrap(err), &inner))
			assert.Equal(t, apperrors.ErrCodeInferenceFailed, inner.Code)
		})
	}
}

func TestScore_RejectsInvalidProfile(t *testing.T) {
	model := &stubCalibrated{prob: 0.1}
	s := newTestScorer(t)

	profile := models.DefaultProfile()
	profile.Age = 12

	a, err := s.Score(context.Background(), profile, realModel(model))
	assert.Nil(t, a)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidationFailed))
}

func TestScore_NoModel(t *testing.T) {
	s := newTestScorer(t)

	a, err := s.Score(context.Background(), models.DefaultProfile(), nil)
	assert.Nil(t, a)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAssessmentUnavailable))
}

func TestScore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, err := newTestScorer(t).Score(ctx, models.DefaultProfile(), realModel(&stubCalibrated{prob: 0.1}))
	assert.Nil(t, a)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAssessmentUnavailable))
}

// ==========================
// Placeholder perturbation
// ==========================

func TestScore_PlaceholderStaysNearFifty(t *testing.T) {
	s := newTestScorer(t, WithJitter(RandomJitter{Width: 5}))
	model := placeholderModel(&stubCalibrated{prob: 0.5})

	for i := 0; i < 500; i++ {
		a, err := s.Score(context.Background(), models.DefaultProfile(), model)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, a.Probability, 45.0)
		assert.LessOrEqual(t, a.Probability, 55.0)
		assert.True(t, a.Placeholder)
	}
}

func TestScore_PlaceholderClamps(t *testing.T) {
	tests := []struct {
		name   string
		prob   float64
		offset float64
		want   float64
	}{
		{"floor", 0.0, -5, 0},
		{"near floor", 0.02, -5, 0},
		{"ceiling", 1.0, 5, 100},
		{"near ceiling", 0.98, 5, 100},
		{"inside", 0.5, -3, 47},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := &fixedJitter{offset: tt.offset}
			s := newTestScorer(t, WithJitter(j))

			a, err := s.Score(context.Background(), models.DefaultProfile(), placeholderModel(&stubCalibrated{prob: tt.prob}))
			require.NoError(t, err)
			assert.InDelta(t, tt.want, a.Probability, 1e-9)
			assert.Equal(t, 1, j.calls)
		})
	}
}

func TestScore_ProfileJitterReproducible(t *testing.T) {
	s := newTestScorer(t, WithJitter(ProfileJitter{Width: 5}))
	model := placeholderModel(&stubCalibrated{prob: 0.3})

	first, err := s.Score(context.Background(), models.DefaultProfile(), model)
	require.NoError(t, err)
	second, err := s.Score(context.Background(), models.DefaultProfile(), model)
	require.NoError(t, err)

	assert.Equal(t, first.Probability, second.Probability)
	assert.InDelta(t, 30.0, first.Probability, 5.0)
}

func TestScore_WithSynthesizedPlaceholder(t *testing.T) {
	provider := modelprovider.NewProvider(modelprovider.Options{
		SearchDirs:         []string{t.TempDir()},
		ArtifactNames:      []string{"model.json"},
		PlaceholderSeed:    42,
		PlaceholderTrees:   10,
		PlaceholderSamples: 100,
	}, logger.NewNoOpLogger())
	model := provider.Acquire(context.Background())

	s := newTestScorer(t)
	for age := models.MinAge; age <= models.MaxAge; age += 7 {
		profile := models.DefaultProfile()
		profile.Age = age
		a, err := s.Score(context.Background(), profile, model)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, a.Probability, 0.0)
		assert.LessOrEqual(t, a.Probability, 100.0)
		assert.Equal(t, TierFor(a.Probability), a.Tier)
	}
}
