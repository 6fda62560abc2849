package modelprovider

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"diabetes-risk/internal/models"
)

// Node is one entry of a flattened decision tree. A node is a leaf when
// Left is -1; Value is then the fraction of class-1 samples that reached it.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest averages the leaf probabilities of its trees.
type Forest struct {
	Trees []Tree
}

func (f *Forest) PredictProbability(fv models.FeatureVector) (float64, error) {
	if len(f.Trees) == 0 {
		return 0, fmt.Errorf("forest has no trees")
	}
	for i, x := range fv {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("feature %d (%s) is not finite", i, models.FeatureNames[i])
		}
	}

	var sum float64
	for i := range f.Trees {
		v, err := f.Trees[i].predict(fv)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		sum += v
	}
	return sum / float64(len(f.Trees)), nil
}

// PredictClass is the argmax of the averaged probabilities; a tie goes to 0.
func (f *Forest) PredictClass(fv models.FeatureVector) (int, error) {
	p, err := f.PredictProbability(fv)
	if err != nil {
		return 0, err
	}
	if p > 0.5 {
		return 1, nil
	}
	return 0, nil
}

func (t *Tree) predict(fv models.FeatureVector) (float64, error) {
	i := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		if i < 0 || i >= len(t.Nodes) {
			return 0, fmt.Errorf("node index %d out of range", i)
		}
		n := t.Nodes[i]
		if n.Left == -1 {
			return n.Value, nil
		}
		if fv[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return 0, fmt.Errorf("tree does not terminate")
}

// validate checks the structure a decoded tree must have: children point
// forward, features are in range and leaf values are probabilities.
func (t *Tree) validate() error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	for i, n := range t.Nodes {
		if n.Left == -1 {
			if math.IsNaN(n.Value) || n.Value < 0 || n.Value > 1 {
				return fmt.Errorf("node %d: leaf value %v outside [0,1]", i, n.Value)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= models.FeatureCount {
			return fmt.Errorf("node %d: feature %d out of range", i, n.Feature)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}

// ForestOptions control FitForest.
type ForestOptions struct {
	Trees       int
	MaxDepth    int
	MinSplit    int
	MaxFeatures int
}

// DefaultForestOptions mirrors a stock random forest: sqrt(features) per split.
func DefaultForestOptions(trees int) ForestOptions {
	return ForestOptions{
		Trees:       trees,
		MaxDepth:    8,
		MinSplit:    2,
		MaxFeatures: int(math.Round(math.Sqrt(models.FeatureCount))),
	}
}

// FitForest grows CART trees on bootstrap samples using gini impurity.
// All randomness comes from rng, so a fixed seed yields the same forest.
func FitForest(x []models.FeatureVector, y []int, opts ForestOptions, rng *rand.Rand) (*Forest, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("need matching non-empty samples and labels, got %d/%d", len(x), len(y))
	}
	if opts.Trees < 1 {
		return nil, fmt.Errorf("trees must be positive")
	}
	if opts.MaxFeatures < 1 || opts.MaxFeatures > models.FeatureCount {
		opts.MaxFeatures = models.FeatureCount
	}

	forest := &Forest{Trees: make([]Tree, 0, opts.Trees)}
	for t := 0; t < opts.Trees; t++ {
		idx := make([]int, len(x))
		for i := range idx {
			idx[i] = rng.IntN(len(x))
		}
		b := &treeBuilder{x: x, y: y, opts: opts, rng: rng}
		b.grow(idx, 0)
		forest.Trees = append(forest.Trees, Tree{Nodes: b.nodes})
	}
	return forest, nil
}

type treeBuilder struct {
	x     []models.FeatureVector
	y     []int
	opts  ForestOptions
	rng   *rand.Rand
	nodes []Node
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	pos := 0
	for _, i := range idx {
		pos += b.y[i]
	}

	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Left: -1, Right: -1, Value: float64(pos) / float64(len(idx))})

	if depth >= b.opts.MaxDepth || len(idx) < b.opts.MinSplit || pos == 0 || pos == len(idx) {
		return id
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return id
}

func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	total := len(idx)
	totalPos := 0
	for _, i := range idx {
		totalPos += b.y[i]
	}

	bestScore := gini(totalPos, total)
	bestFeature, bestThreshold, found := -1, 0.0, false

	sorted := make([]int, total)
	for _, f := range b.rng.Perm(models.FeatureCount)[:b.opts.MaxFeatures] {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.x[sorted[a]][f] < b.x[sorted[c]][f]
		})

		leftPos := 0
		for k := 1; k < total; k++ {
			leftPos += b.y[sorted[k-1]]
			lo, hi := b.x[sorted[k-1]][f], b.x[sorted[k]][f]
			if lo == hi {
				continue
			}
			score := (float64(k)*gini(leftPos, k) +
				float64(total-k)*gini(totalPos-leftPos, total-k)) / float64(total)
			if score < bestScore {
				bestScore = score
				bestFeature = f
				bestThreshold = (lo + hi) / 2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

func gini(pos, n int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(pos) / float64(n)
	return 2 * p * (1 - p)
}
