// Package modelprovider acquires the classifier used for scoring. It looks
// for a serialized artifact on disk and, when none is usable, fits a seeded
// placeholder forest so scoring always has a model.
package modelprovider

import "diabetes-risk/internal/models"

// ClassifierOnlyModel predicts a binary class label.
type ClassifierOnlyModel interface {
	PredictClass(fv models.FeatureVector) (int, error)
}

// CalibratedModel additionally reports P(class 1) in [0, 1].
type CalibratedModel interface {
	ClassifierOnlyModel
	PredictProbability(fv models.FeatureVector) (float64, error)
}

// Metrics are evaluation figures shipped with an artifact for display.
type Metrics struct {
	Accuracy float64 `json:"accuracy"`
	AUC      float64 `json:"auc"`
}

// ArtifactInfo describes where a model came from.
type ArtifactInfo struct {
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Path    string   `json:"path,omitempty"`
	Metrics *Metrics `json:"metrics,omitempty"`
}

// Model is what the provider hands out. Placeholder is set by the provider
// and is the only signal the scorer uses to decide on perturbation.
type Model struct {
	Estimator   ClassifierOnlyModel
	Placeholder bool
	Source      string
	Info        ArtifactInfo
}

// Calibrated returns the probability-capable view of the estimator, if any.
func (m *Model) Calibrated() (CalibratedModel, bool) {
	if m == nil || m.Estimator == nil {
		return nil, false
	}
	c, ok := m.Estimator.(CalibratedModel)
	return c, ok
}

// Status is the provider's report on how the model was obtained.
type Status string

const (
	StatusPending     Status = "pending"
	StatusSuccess     Status = "success"
	StatusPlaceholder Status = "placeholder"
	StatusError       Status = "error"
)
