package risk

import "diabetes-risk/internal/models"

// Tier boundaries, inclusive on the low side.
const (
	MediumThreshold = 20.0
	HighThreshold   = 50.0
)

// TierFor buckets a percentage. It is total: anything below 20 is low,
// anything from 50 up is high.
func TierFor(probability float64) models.Tier {
	switch {
	case probability < MediumThreshold:
		return models.TierLow
	case probability < HighThreshold:
		return models.TierMedium
	default:
		return models.TierHigh
	}
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
