package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "diabetes-risk/internal/common/errors"
	"diabetes-risk/internal/common/logger"
	"diabetes-risk/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const indexMapping = `{
  "mappings": {
    "properties": {
      "assessment_id":            {"type": "keyword"},
      "probability":              {"type": "double"},
      "tier":                     {"type": "keyword"},
      "generated_at":             {"type": "date"},
      "model_source":             {"type": "keyword"},
      "placeholder":              {"type": "boolean"},
      "age":                      {"type": "integer"},
      "gender":                   {"type": "keyword"},
      "education":                {"type": "keyword"},
      "poverty_index":            {"type": "double"},
      "has_health_insurance":     {"type": "boolean"},
      "regular_activity":         {"type": "boolean"},
      "sleep_sufficient":         {"type": "boolean"},
      "heavy_alcohol":            {"type": "boolean"},
      "smoker":                   {"type": "boolean"},
      "hypertension_history":     {"type": "boolean"},
      "high_cholesterol_history": {"type": "boolean"}
    }
  }
}`

// Document is the flattened form stored in the index.
type Document struct {
	AssessmentID string    `json:"assessment_id"`
	Probability  float64   `json:"probability"`
	Tier         string    `json:"tier"`
	GeneratedAt  time.Time `json:"generated_at"`
	ModelSource  string    `json:"model_source"`
	Placeholder  bool      `json:"placeholder"`
	models.UserProfile
}

func NewDocument(a *models.RiskAssessment) Document {
	return Document{
		AssessmentID: a.ID.String(),
		Probability:  a.Probability,
		Tier:         string(a.Tier),
		GeneratedAt:  a.GeneratedAt.UTC(),
		ModelSource:  a.ModelSource,
		Placeholder:  a.Placeholder,
		UserProfile:  a.SourceProfile,
	}
}

// TierStats is the tier distribution across indexed assessments.
type TierStats struct {
	Total           int64                 `json:"total"`
	ByTier          map[models.Tier]int64 `json:"by_tier"`
	MeanProbability float64               `json:"mean_probability"`
}

type SearchIndex struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewSearchIndex(client *elasticsearch.Client, index string, log logger.Logger) *SearchIndex {
	return &SearchIndex{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "history_search", "index": index}),
	}
}

// EnsureIndex creates the index with its mapping if it does not exist.
func (s *SearchIndex) EnsureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{s.index}}.Do(ctx, s.client)
	if err != nil {
		return apperrors.NewSearchIndexFailedError(s.index, err)
	}
	drain(res)
	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return apperrors.NewSearchIndexFailedError(s.index, fmt.Errorf("check index: %s", res.Status()))
	}

	res, err = esapi.IndicesCreateRequest{
		Index: s.index,
		Body:  strings.NewReader(indexMapping),
	}.Do(ctx, s.client)
	if err != nil {
		return apperrors.NewSearchIndexFailedError(s.index, err)
	}
	defer drain(res)
	if res.IsError() {
		return apperrors.NewSearchIndexFailedError(s.index, fmt.Errorf("create index: %s", res.Status()))
	}

	s.logger.Info("created search index", nil)
	return nil
}

// Index writes a under its assessment id, replacing any earlier document.
func (s *SearchIndex) Index(ctx context.Context, a *models.RiskAssessment) error {
	body, err := json.Marshal(NewDocument(a))
	if err != nil {
		return apperrors.NewSearchIndexFailedError(s.index, err)
	}

	res, err := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: a.ID.String(),
		Body:       bytes.NewReader(body),
	}.Do(ctx, s.client)
	if err != nil {
		return apperrors.NewSearchIndexFailedError(s.index, err)
	}
	defer drain(res)

	if res.IsError() {
		return apperrors.NewSearchIndexFailedError(s.index, fmt.Errorf("index document: %s", res.Status()))
	}
	return nil
}

// Stats aggregates the tier distribution and the mean probability.
func (s *SearchIndex) Stats(ctx context.Context) (*TierStats, error) {
	query := map[string]interface{}{
		"size":             0,
		"track_total_hits": true,
		"aggs": map[string]interface{}{
			"tiers":            map[string]interface{}{"terms": map[string]interface{}{"field": "tier"}},
			"mean_probability": map[string]interface{}{"avg": map[string]interface{}{"field": "probability"}},
		},
	}
	body, _ := json.Marshal(query)

	res, err := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, s.client)
	if err != nil {
		return nil, apperrors.NewSearchIndexFailedError(s.index, err)
	}
	defer drain(res)
	if res.IsError() {
		return nil, apperrors.NewSearchIndexFailedError(s.index, fmt.Errorf("search: %s", res.Status()))
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
		} `json:"hits"`
		Aggregations struct {
			Tiers struct {
				Buckets []struct {
					Key      string `json:"key"`
					DocCount int64  `json:"doc_count"`
				} `json:"buckets"`
			} `json:"tiers"`
			MeanProbability struct {
				Value *float64 `json:"value"`
			} `json:"mean_probability"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewSearchIndexFailedError(s.index, err)
	}

	stats := &TierStats{
		Total:  parsed.Hits.Total.Value,
		ByTier: map[models.Tier]int64{models.TierLow: 0, models.TierMedium: 0, models.TierHigh: 0},
	}
	for _, b := range parsed.Aggregations.Tiers.Buckets {
		stats.ByTier[models.Tier(b.Key)] = b.DocCount
	}
	if v := parsed.Aggregations.MeanProbability.Value; v != nil {
		stats.MeanProbability = *v
	}
	return stats, nil
}

func drain(res *esapi.Response) {
	if res != nil && res.Body != nil {
		io.Copy(io.Discard, res.Body)
		res.Body.Close()
	}
}
