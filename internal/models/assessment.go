// internal/models/assessment.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// CSSClass is the style hook the page uses for the tier badge.
func (t Tier) CSSClass() string {
	return "risk-" + string(t)
}

// RiskAssessment is the output of one scoring call. A newer assessment
// replaces an older one; they are never merged.
type RiskAssessment struct {
	ID              uuid.UUID   `json:"id"`
	Probability     float64     `json:"probability"`
	Tier            Tier        `json:"tier"`
	Recommendations []string    `json:"recommendations"`
	GeneratedAt     time.Time   `json:"generated_at"`
	SourceProfile   UserProfile `json:"source_profile"`
	ModelSource     string      `json:"model_source"`
	Placeholder     bool        `json:"placeholder"`
}

// TimestampLayout is how report times are displayed.
const TimestampLayout = "2006-01-02 15:04:05"

func (a *RiskAssessment) FormattedTime() string {
	return a.GeneratedAt.Format(TimestampLayout)
}
