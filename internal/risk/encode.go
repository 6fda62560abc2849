// Package risk turns a UserProfile into a RiskAssessment: encode, infer,
// tier, attach advice.
package risk

import "diabetes-risk/internal/models"

// Encode maps a profile onto the feature layout the model was trained on.
// The order and scaling are fixed; see models.FeatureNames.
func Encode(p models.UserProfile) models.FeatureVector {
	return models.FeatureVector{
		(float64(p.Age) - 45) / 15,
		indicator(p.Gender == models.GenderMale),
		indicator(p.Education == models.EducationLow),
		(p.PovertyIndex - 2.5) / 1.5,
		indicator(p.HasHealthInsurance),
		indicator(p.RegularActivity),
		indicator(!p.SleepSufficient),
		indicator(p.HeavyAlcohol),
		indicator(p.Smoker),
		indicator(p.HypertensionHistory),
		indicator(p.HighCholesterolHistory),
	}
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
