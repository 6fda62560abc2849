package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"diabetes-risk/internal/common/config"
	apperrors "diabetes-risk/internal/common/errors"
	"diabetes-risk/internal/common/logger"
	"diabetes-risk/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSES struct{ mock.Mock }

func (m *mockSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ses.SendEmailOutput)
	return out, args.Error(1)
}

type mockSNS struct{ mock.Mock }

func (m *mockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sns.PublishOutput)
	return out, args.Error(1)
}

func testConfig() config.NotificationConfig {
	var cfg config.NotificationConfig
	cfg.AWS.Region = "us-east-1"
	cfg.Email.Enabled = true
	cfg.Email.FromEmail = "reports@example.com"
	cfg.Alerts.Enabled = true
	cfg.Alerts.TopicARN = "arn:aws:sns:us-east-1:123456789012:risk-alerts"
	cfg.Alerts.MinScore = 50
	return cfg
}

func testAssessment(prob float64, tier models.Tier) *models.RiskAssessment {
	profile := models.DefaultProfile()
	profile.Smoker = true
	return &models.RiskAssessment{
		ID:              uuid.New(),
		Probability:     prob,
		Tier:            tier,
		Recommendations: []string{"see a doctor", "walk daily"},
		GeneratedAt:     time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC),
		SourceProfile:   profile,
		ModelSource:     "/models/model.json",
	}
}

func TestAlertHighRisk_Publishes(t *testing.T) {
	snsClient := &mockSNS{}
	a := testAssessment(72.5, models.TierHigh)

	snsClient.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		var msg alertMessage
		if err := json.Unmarshal([]byte(*in.Message), &msg); err != nil {
			return false
		}
		return *in.TopicArn == testConfig().Alerts.TopicARN &&
			msg.AssessmentID == a.ID.String() &&
			msg.Tier == "high" &&
			*in.MessageAttributes["tier"].StringValue == "high"
	})).Return(&sns.PublishOutput{}, nil).Once()

	n := New(testConfig(), nil, snsClient, logger.NewTestLogger(t))
	sent, err := n.AlertHighRisk(context.Background(), a)

	require.NoError(t, err)
	assert.True(t, sent)
	snsClient.AssertExpectations(t)
}

func TestAlertHighRisk_Skips(t *testing.T) {
	placeholder := testAssessment(90, models.TierHigh)
	placeholder.Placeholder = true

	tests := []struct {
		name   string
		cfg    func() config.NotificationConfig
		assess *models.RiskAssessment
	}{
		{"below threshold", testConfig, testAssessment(49.9, models.TierMedium)},
		{"placeholder model", testConfig, placeholder},
		{"nil assessment", testConfig, nil},
		{"disabled", func() config.NotificationConfig {
			cfg := testConfig()
			cfg.Alerts.Enabled = false
			return cfg
		}, testAssessment(90, models.TierHigh)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snsClient := &mockSNS{}
			n := New(tt.cfg(), nil, snsClient, logger.NewTestLogger(t))

			sent, err := n.AlertHighRisk(context.Background(), tt.assess)
			require.NoError(t, err)
			assert.False(t, sent)
			snsClient.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
		})
	}
}

func TestAlertHighRisk_PublishError(t *testing.T) {
	snsClient := &mockSNS{}
	snsClient.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	n := New(testConfig(), nil, snsClient, logger.NewTestLogger(t))
	sent, err := n.AlertHighRisk(context.Background(), testAssessment(80, models.TierHigh))

	assert.False(t, sent)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotificationSendFailed))
}

func TestSendReport(t *testing.T) {
	sesClient := &mockSES{}
	a := testAssessment(32, models.TierMedium)

	sesClient.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *ses.SendEmailInput) bool {
		return in.Destination.ToAddresses[0] == "patient@example.com" &&
			*in.Source == "reports@example.com" &&
			*in.Message.Subject.Data == "Your diabetes risk assessment (medium risk)"
	})).Return(&ses.SendEmailOutput{}, nil).Once()

	n := New(testConfig(), sesClient, nil, logger.NewTestLogger(t))
	require.NoError(t, n.SendReport(context.Background(), " patient@example.com ", a))
	sesClient.AssertExpectations(t)
}

func TestSendReport_Failures(t *testing.T) {
	a := testAssessment(32, models.TierMedium)

	disabled := testConfig()
	disabled.Email.Enabled = false
	err := New(disabled, &mockSES{}, nil, logger.NewTestLogger(t)).SendReport(context.Background(), "a@example.com", a)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeFeatureDisabled))

	err = New(testConfig(), &mockSES{}, nil, logger.NewTestLogger(t)).SendReport(context.Background(), "not-an-email", a)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidationFailed))

	sesClient := &mockSES{}
	sesClient.On("SendEmail", mock.Anything, mock.Anything).Return(nil, errors.New("message rejected"))
	err = New(testConfig(), sesClient, nil, logger.NewTestLogger(t)).SendReport(context.Background(), "a@example.com", a)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotificationSendFailed))
}

func TestRenderReport(t *testing.T) {
	a := testAssessment(32.04, models.TierMedium)
	a.Placeholder = true

	body, err := RenderReport(a)
	require.NoError(t, err)

	assert.Contains(t, body, "Generated: 2026-05-01 08:30:00")
	assert.Contains(t, body, "Estimated risk: 32.0%")
	assert.Contains(t, body, "Risk level: medium")
	assert.Contains(t, body, "Smoker: yes")
	assert.Contains(t, body, "Heavy alcohol use: no")
	assert.Contains(t, body, "  - walk daily")
	assert.Contains(t, body, "demonstration model")

	_, err = RenderReport(nil)
	assert.Error(t, err)
}

func TestNewFromConfig_DisabledChannels(t *testing.T) {
	n, err := NewFromConfig(context.Background(), config.NotificationConfig{}, logger.NewNoOpLogger())
	require.NoError(t, err)
	assert.False(t, n.EmailEnabled())
	assert.False(t, n.AlertsEnabled())
}
