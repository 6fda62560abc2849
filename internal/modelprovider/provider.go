package modelprovider

import (
	"context"
	"path/filepath"
	"sync"

	"diabetes-risk/internal/common/config"
	apperrors "diabetes-risk/internal/common/errors"
	"diabetes-risk/internal/common/logger"
	"diabetes-risk/internal/common/metrics"
)

// Options select the artifact search order and the placeholder shape.
type Options struct {
	SearchDirs         []string
	ArtifactNames      []string
	PlaceholderSeed    uint64
	PlaceholderTrees   int
	PlaceholderSamples int
}

func OptionsFromConfig(cfg config.ModelConfig) Options {
	return Options{
		SearchDirs:         cfg.SearchDirs,
		ArtifactNames:      cfg.ArtifactNames,
		PlaceholderSeed:    cfg.PlaceholderSeed,
		PlaceholderTrees:   cfg.PlaceholderTrees,
		PlaceholderSamples: cfg.PlaceholderSamples,
	}
}

// Provider memoizes a single model for the life of the process. Build one at
// startup and pass it to whoever scores.
type Provider struct {
	opts   Options
	logger logger.Logger

	once     sync.Once
	mu       sync.RWMutex
	model    *Model
	status   Status
	attempts []LoadResult
}

func NewProvider(opts Options, log logger.Logger) *Provider {
	if opts.PlaceholderTrees < 1 {
		opts.PlaceholderTrees = 10
	}
	if opts.PlaceholderSamples < 2 {
		opts.PlaceholderSamples = 100
	}
	return &Provider{
		opts:   opts,
		logger: log.WithFields(map[string]interface{}{"component": "model_provider"}),
		status: StatusPending,
	}
}

// Acquire returns the memoized model, loading it on first call. It never
// fails: anything that goes wrong ends in the placeholder. The load runs to
// completion even if the first caller's ctx is already done.
func (p *Provider) Acquire(_ context.Context) *Model {
	p.once.Do(func() {
		model, status, attempts := p.acquire()

		p.mu.Lock()
		p.model, p.status, p.attempts = model, status, attempts
		p.mu.Unlock()

		metrics.SetModelStatus(string(status))
	})

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model
}

// Status reports how the model was obtained, or StatusPending before the
// first Acquire.
func (p *Provider) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Attempts lists every path tried during acquisition, in order.
func (p *Provider) Attempts() []LoadResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]LoadResult, len(p.attempts))
	copy(out, p.attempts)
	return out
}

// Ready reports whether a model has been acquired.
func (p *Provider) Ready() bool {
	return p.Status() != StatusPending
}

// Candidates returns the artifact paths in the order they are tried: each
// name is looked up in every directory before moving to the next name.
func (p *Provider) Candidates() []string {
	var out []string
	for _, name := range p.opts.ArtifactNames {
		for _, dir := range p.opts.SearchDirs {
			out = append(out, filepath.Join(dir, name))
		}
	}
	return out
}

func (p *Provider) acquire() (*Model, Status, []LoadResult) {
	var attempts []LoadResult
	corrupt := false

	for _, path := range p.Candidates() {
		res := LoadArtifact(path)
		attempts = append(attempts, res)

		switch res.Outcome {
		case OutcomeLoaded:
			p.logger.Info("model loaded", map[string]interface{}{
				"path": res.Path,
				"kind": res.Info.Kind,
				"name": res.Info.Name,
			})
			return &Model{Estimator: res.Estimator, Source: res.Path, Info: res.Info}, StatusSuccess, attempts
		case OutcomeCorrupt:
			corrupt = true
			p.logger.Warn("model artifact unusable", map[string]interface{}{
				"error": apperrors.NewArtifactCorruptError(res.Path, res.Err),
			})
		case OutcomeNotFound:
			p.logger.Debug("model artifact not found", map[string]interface{}{"path": res.Path})
		}
	}

	if !corrupt {
		p.logger.Info("no model artifact found", map[string]interface{}{
			"error": apperrors.NewArtifactUnavailableError(p.Candidates()),
		})
	}

	model := p.placeholder()
	status := StatusPlaceholder
	if corrupt {
		status = StatusError
	}
	p.logger.Info("using placeholder model", map[string]interface{}{
		"status": string(status),
		"seed":   p.opts.PlaceholderSeed,
		"trees":  p.opts.PlaceholderTrees,
	})
	return model, status, attempts
}

func (p *Provider) placeholder() *Model {
	forest, err := NewPlaceholder(p.opts.PlaceholderSeed, p.opts.PlaceholderTrees, p.opts.PlaceholderSamples)
	if err != nil {
		// Only reachable with nonsensical options; NewProvider normalizes them.
		p.logger.Error("placeholder fit failed", map[string]interface{}{"error": err})
		forest = &Forest{Trees: []Tree{{Nodes: []Node{{Feature: -1, Left: -1, Right: -1, Value: 0.5}}}}}
	}
	return &Model{
		Estimator:   forest,
		Placeholder: true,
		Source:      PlaceholderSource,
		Info:        ArtifactInfo{Name: "placeholder-random-forest", Kind: KindForest},
	}
}
