// Package notify delivers high-risk alerts over SNS and emailed reports over SES.
package notify

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	awsx "diabetes-risk/internal/common/aws"
	"diabetes-risk/internal/common/config"
	apperrors "diabetes-risk/internal/common/errors"
	"diabetes-risk/internal/common/logger"
	"diabetes-risk/internal/common/validation"
	"diabetes-risk/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

//go:embed report.txt.tmpl
var reportTemplate string

var reportTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"yesno": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
}).Parse(reportTemplate))

type Notifier struct {
	cfg    config.NotificationConfig
	ses    awsx.SESService
	sns    awsx.SNSService
	logger logger.Logger
}

// New wires a notifier from already-built clients. Either client may be nil
// when its channel is disabled.
func New(cfg config.NotificationConfig, sesClient awsx.SESService, snsClient awsx.SNSService, log logger.Logger) *Notifier {
	return &Notifier{
		cfg:    cfg,
		ses:    sesClient,
		sns:    snsClient,
		logger: log.WithFields(map[string]interface{}{"component": "notifier"}),
	}
}

// NewFromConfig builds AWS clients for the enabled channels only.
func NewFromConfig(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*Notifier, error) {
	var sesClient awsx.SESService
	var snsClient awsx.SNSService

	if cfg.Email.Enabled {
		c, err := awsx.NewSESClient(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, err
		}
		sesClient = c
	}
	if cfg.Alerts.Enabled {
		c, err := awsx.NewSNSClient(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, err
		}
		snsClient = c
	}
	return New(cfg, sesClient, snsClient, log), nil
}

func (n *Notifier) EmailEnabled() bool {
	return n.cfg.Email.Enabled && n.ses != nil
}

func (n *Notifier) AlertsEnabled() bool {
	return n.cfg.Alerts.Enabled && n.sns != nil
}

type alertMessage struct {
	AssessmentID string  `json:"assessment_id"`
	Probability  float64 `json:"probability"`
	Tier         string  `json:"tier"`
	GeneratedAt  string  `json:"generated_at"`
	ModelSource  string  `json:"model_source"`
}

// AlertHighRisk publishes to the alert topic when the score reaches the
// configured minimum. It reports whether a message was sent. Placeholder
// scores never alert.
func (n *Notifier) AlertHighRisk(ctx context.Context, a *models.RiskAssessment) (bool, error) {
	if !n.AlertsEnabled() || a == nil || a.Placeholder || a.Probability < n.cfg.Alerts.MinScore {
		return false, nil
	}

	body, err := json.Marshal(alertMessage{
		AssessmentID: a.ID.String(),
		Probability:  a.Probability,
		Tier:         string(a.Tier),
		GeneratedAt:  a.GeneratedAt.UTC().Format(time.RFC3339),
		ModelSource:  a.ModelSource,
	})
	if err != nil {
		return false, apperrors.NewNotificationSendFailedError("sns", err)
	}

	_, err = n.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.cfg.Alerts.TopicARN),
		Subject:  aws.String(fmt.Sprintf("High diabetes risk: %.1f%%", a.Probability)),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"tier": {DataType: aws.String("String"), StringValue: aws.String(string(a.Tier))},
		},
	})
	if err != nil {
		n.logger.Error("alert publish failed", map[string]interface{}{
			"assessmentId": a.ID.String(),
			"error":        err,
		})
		return false, apperrors.NewNotificationSendFailedError("sns", err)
	}

	n.logger.Info("high risk alert published", map[string]interface{}{
		"assessmentId": a.ID.String(),
		"probability":  a.Probability,
	})
	return true, nil
}

// SendReport emails a plain-text rendering of the assessment to one recipient.
func (n *Notifier) SendReport(ctx context.Context, to string, a *models.RiskAssessment) error {
	if !n.EmailEnabled() {
		return apperrors.NewFeatureDisabledError("email reports")
	}
	to = strings.TrimSpace(to)
	if !validation.ValidateEmail(to) {
		return apperrors.NewValidationFailedError([]apperrors.FieldError{{Field: "email", Message: "must be a valid email address"}})
	}

	body, err := RenderReport(a)
	if err != nil {
		return apperrors.NewNotificationSendFailedError("ses", err)
	}

	_, err = n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{ToAddresses: []string{to}},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String("Your diabetes risk assessment (" + string(a.Tier) + " risk)")},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.cfg.Email.FromEmail),
	})
	if err != nil {
		n.logger.Error("report email failed", map[string]interface{}{
			"assessmentId": a.ID.String(),
			"error":        err,
		})
		return apperrors.NewNotificationSendFailedError("ses", err)
	}

	n.logger.Info("report emailed", map[string]interface{}{"assessmentId": a.ID.String()})
	return nil
}

// RenderReport renders the email body for a.
func RenderReport(a *models.RiskAssessment) (string, error) {
	if a == nil {
		return "", fmt.Errorf("no assessment to render")
	}
	var buf bytes.Buffer
	err := reportTmpl.Execute(&buf, struct {
		Assessment *models.RiskAssessment
		Profile    models.UserProfile
	}{a, a.SourceProfile})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
