package risk

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"diabetes-risk/internal/models"

	"gopkg.in/yaml.v3"
)

// DefaultLocale is used when a requested locale has no content.
const DefaultLocale = "en"

//go:embed recommendations.yaml
var defaultRecommendations []byte

// Recommendations holds the advice shown for each tier, per locale.
type Recommendations struct {
	byLocale map[string]map[models.Tier][]string
}

// DefaultRecommendations returns the built-in content.
func DefaultRecommendations() *Recommendations {
	recs, err := ParseRecommendations(defaultRecommendations)
	if err != nil {
		panic(fmt.Sprintf("embedded recommendations: %v", err))
	}
	return recs
}

// LoadRecommendations reads content from path, or returns the built-in
// content when path is empty.
func LoadRecommendations(path string) (*Recommendations, error) {
	if path == "" {
		return DefaultRecommendations(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recommendations %s: %w", path, err)
	}
	return ParseRecommendations(data)
}

// ParseRecommendations decodes YAML of the form locale -> tier -> []string.
// Every locale must cover all three tiers.
func ParseRecommendations(data []byte) (*Recommendations, error) {
	var raw map[string]map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse recommendations: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("parse recommendations: no locales")
	}

	recs := &Recommendations{byLocale: make(map[string]map[models.Tier][]string, len(raw))}
	for locale, tiers := range raw {
		byTier := make(map[models.Tier][]string, 3)
		for _, tier := range []models.Tier{models.TierLow, models.TierMedium, models.TierHigh} {
			lines := tiers[string(tier)]
			if len(lines) == 0 {
				return nil, fmt.Errorf("parse recommendations: locale %q has no %s entries", locale, tier)
			}
			byTier[tier] = lines
		}
		recs.byLocale[locale] = byTier
	}
	return recs, nil
}

// For returns a copy of the advice for tier in locale, falling back to
// DefaultLocale.
func (r *Recommendations) For(locale string, tier models.Tier) []string {
	byTier, ok := r.byLocale[locale]
	if !ok {
		byTier = r.byLocale[DefaultLocale]
	}
	lines := byTier[tier]
	out := make([]string, len(lines))
	copy(out, lines)
	return out
}

// Locales lists the available locales in sorted order.
func (r *Recommendations) Locales() []string {
	out := make([]string, 0, len(r.byLocale))
	for l := range r.byLocale {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func (r *Recommendations) HasLocale(locale string) bool {
	_, ok := r.byLocale[locale]
	return ok
}
