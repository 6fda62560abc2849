package modelprovider

import (
	"fmt"
	"math"

	"diabetes-risk/internal/models"
)

// LogisticModel is sigmoid(w·x + b).
type LogisticModel struct {
	Weights   [models.FeatureCount]float64
	Intercept float64
}

func (m *LogisticModel) PredictProbability(fv models.FeatureVector) (float64, error) {
	z, err := linearScore(m.Weights, m.Intercept, fv)
	if err != nil {
		return 0, err
	}
	return 1 / (1 + math.Exp(-z)), nil
}

func (m *LogisticModel) PredictClass(fv models.FeatureVector) (int, error) {
	p, err := m.PredictProbability(fv)
	if err != nil {
		return 0, err
	}
	if p > 0.5 {
		return 1, nil
	}
	return 0, nil
}

// LinearClassifier only exposes the sign of w·x + b.
type LinearClassifier struct {
	Weights   [models.FeatureCount]float64
	Intercept float64
}

func (m *LinearClassifier) PredictClass(fv models.FeatureVector) (int, error) {
	z, err := linearScore(m.Weights, m.Intercept, fv)
	if err != nil {
		return 0, err
	}
	if z > 0 {
		return 1, nil
	}
	return 0, nil
}

func linearScore(w [models.FeatureCount]float64, b float64, fv models.FeatureVector) (float64, error) {
	z := b
	for i, x := range fv {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("feature %d (%s) is not finite", i, models.FeatureNames[i])
		}
		z += w[i] * x
	}
	return z, nil
}
