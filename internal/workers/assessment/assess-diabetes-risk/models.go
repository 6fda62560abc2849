// internal/workers/assessment/assess-diabetes-risk/models.go
package assessdiabetesrisk

import "diabetes-risk/internal/models"

type Input struct {
	Profile models.UserProfile `json:"profile"`
}

type Output struct {
	AssessmentID     string   `json:"assessmentId"`
	RiskProbability  float64  `json:"riskProbability"`
	RiskTier         string   `json:"riskTier"`
	Recommendations  []string `json:"recommendations"`
	GeneratedAt      string   `json:"generatedAt"` // ISO 8601
	ModelSource      string   `json:"modelSource"`
	PlaceholderModel bool     `json:"placeholderModel"`
	AlertSent        bool     `json:"alertSent"`
}
