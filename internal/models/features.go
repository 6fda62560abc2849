// internal/models/features.go
package models

// FeatureCount is the width of every feature vector the model accepts.
const FeatureCount = 11

// FeatureVector is the encoded profile in the fixed order listed by
// FeatureNames. It is a value type so each scoring call owns its copy.
type FeatureVector [FeatureCount]float64

// FeatureNames documents the column order.
var FeatureNames = [FeatureCount]string{
	"age_scaled",
	"gender_male",
	"education_low",
	"poverty_scaled",
	"health_insurance",
	"regular_activity",
	"sleep_insufficient",
	"heavy_alcohol",
	"smoker",
	"hypertension",
	"high_cholesterol",
}
