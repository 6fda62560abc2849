package modelprovider

import (
	"math/rand/v2"

	"diabetes-risk/internal/models"
)

// PlaceholderSource is the Model.Source of a synthesized model.
const PlaceholderSource = "placeholder"

// NewPlaceholder fits a forest on standard-normal features with uniformly
// random labels, all drawn from one PCG stream. The model carries no signal;
// it exists so the pipeline can run end to end without an artifact.
func NewPlaceholder(seed uint64, trees, samples int) (*Forest, error) {
	rng := rand.New(rand.NewPCG(seed, seed))

	x := make([]models.FeatureVector, samples)
	for i := range x {
		for j := range x[i] {
			x[i][j] = rng.NormFloat64()
		}
	}
	y := make([]int, samples)
	for i := range y {
		y[i] = rng.IntN(2)
	}

	return FitForest(x, y, DefaultForestOptions(trees), rng)
}
