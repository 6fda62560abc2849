package modelprovider

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"diabetes-risk/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

// ArtifactFormat is the value every artifact's "format" field must carry.
const ArtifactFormat = "diabetes-risk-model/v1"

// Artifact kinds.
const (
	KindLogistic         = "logistic"
	KindLinearClassifier = "linear_classifier"
	KindForest           = "forest"
)

//go:embed schema.json
var artifactSchema []byte

var artifactSchemaLoader = gojsonschema.NewBytesLoader(artifactSchema)

// Outcome is the result of one load attempt.
type Outcome int

const (
	OutcomeLoaded Outcome = iota
	OutcomeNotFound
	OutcomeCorrupt
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLoaded:
		return "loaded"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// LoadResult reports what happened at one path. Estimator and Info are set
// only for OutcomeLoaded; Err only for OutcomeCorrupt.
type LoadResult struct {
	Path      string              `json:"path"`
	Outcome   Outcome             `json:"outcome"`
	Estimator ClassifierOnlyModel `json:"-"`
	Info      ArtifactInfo        `json:"-"`
	Err       error               `json:"-"`
}

// artifactFile is the on-disk layout.
type artifactFile struct {
	Format       string    `json:"format"`
	Kind         string    `json:"kind"`
	Name         string    `json:"name,omitempty"`
	FeatureCount int       `json:"feature_count"`
	Weights      []float64 `json:"weights,omitempty"`
	Intercept    float64   `json:"intercept,omitempty"`
	Trees        []Tree    `json:"trees,omitempty"`
	Metrics      *Metrics  `json:"metrics,omitempty"`
}

// LoadArtifact reads and decodes one artifact file.
func LoadArtifact(path string) LoadResult {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return LoadResult{Path: path, Outcome: OutcomeNotFound}
		}
		return LoadResult{Path: path, Outcome: OutcomeCorrupt, Err: err}
	}

	est, info, err := DecodeArtifact(data)
	if err != nil {
		return LoadResult{Path: path, Outcome: OutcomeCorrupt, Err: err}
	}
	info.Path = path
	return LoadResult{Path: path, Outcome: OutcomeLoaded, Estimator: est, Info: info}
}

// DecodeArtifact validates data against the artifact schema and builds the
// estimator it describes.
func DecodeArtifact(data []byte) (ClassifierOnlyModel, ArtifactInfo, error) {
	result, err := gojsonschema.Validate(artifactSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, ArtifactInfo{}, fmt.Errorf("decode artifact: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, ArtifactInfo{}, fmt.Errorf("artifact schema: %s", strings.Join(errs, "; "))
	}

	var file artifactFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, ArtifactInfo{}, fmt.Errorf("decode artifact: %w", err)
	}

	info := ArtifactInfo{Name: file.Name, Kind: file.Kind, Metrics: file.Metrics}
	if info.Name == "" {
		info.Name = file.Kind
	}

	switch file.Kind {
	case KindLogistic:
		m := &LogisticModel{Intercept: file.Intercept}
		copy(m.Weights[:], file.Weights)
		return m, info, nil
	case KindLinearClassifier:
		m := &LinearClassifier{Intercept: file.Intercept}
		copy(m.Weights[:], file.Weights)
		return m, info, nil
	case KindForest:
		for i := range file.Trees {
			if err := file.Trees[i].validate(); err != nil {
				return nil, ArtifactInfo{}, fmt.Errorf("tree %d: %w", i, err)
			}
		}
		return &Forest{Trees: file.Trees}, info, nil
	default:
		return nil, ArtifactInfo{}, fmt.Errorf("unsupported kind %q", file.Kind)
	}
}

// EncodeForest serializes a forest in the artifact layout.
func EncodeForest(f *Forest, name string, metrics *Metrics) ([]byte, error) {
	return json.MarshalIndent(artifactFile{
		Format:       ArtifactFormat,
		Kind:         KindForest,
		Name:         name,
		FeatureCount: models.FeatureCount,
		Trees:        f.Trees,
		Metrics:      metrics,
	}, "", "  ")
}
