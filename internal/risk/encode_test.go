package risk

import (
	"math"
	"testing"

	"diabetes-risk/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestEncode_ReferenceProfile(t *testing.T) {
	p := models.UserProfile{
		Age:                45,
		Gender:             models.GenderFemale,
		Education:          models.EducationHigh,
		PovertyIndex:       2.5,
		HasHealthInsurance: true,
		RegularActivity:    true,
		SleepSufficient:    true,
	}

	assert.Equal(t, models.FeatureVector{0, 0, 0, 0, 1, 1, 0, 0, 0, 0, 0}, Encode(p))
}

func TestEncode_EachField(t *testing.T) {
	p := models.UserProfile{
		Age:                    75,
		Gender:                 models.GenderMale,
		Education:              models.EducationLow,
		PovertyIndex:           1.0,
		HasHealthInsurance:     false,
		RegularActivity:        false,
		SleepSufficient:        false,
		HeavyAlcohol:           true,
		Smoker:                 true,
		HypertensionHistory:    true,
		HighCholesterolHistory: true,
	}

	fv := Encode(p)
	assert.Len(t, fv, 11)
	assert.Equal(t, models.FeatureVector{2, 1, 1, -1, 0, 0, 1, 1, 1, 1, 1}, fv)
}

func TestEncode_MediumEducationIsNotLow(t *testing.T) {
	p := models.DefaultProfile()
	p.Education = models.EducationMedium
	assert.Equal(t, 0.0, Encode(p)[2])
}

func TestEncode_Pure(t *testing.T) {
	p := models.DefaultProfile()
	before := p

	first := Encode(p)
	second := Encode(p)

	assert.Equal(t, first, second)
	assert.Equal(t, before, p)

	first[0] = 99
	assert.NotEqual(t, first, Encode(p), "callers own their vector")
}

func TestEncode_Bounds(t *testing.T) {
	p := models.DefaultProfile()

	p.Age, p.PovertyIndex = models.MinAge, models.MinPovertyIndex
	fv := Encode(p)
	assert.InDelta(t, -1.8, fv[0], 1e-12)
	assert.InDelta(t, -5.0/3.0, fv[3], 1e-12)

	p.Age, p.PovertyIndex = models.MaxAge, models.MaxPovertyIndex
	fv = Encode(p)
	assert.InDelta(t, 55.0/15.0, fv[0], 1e-12)
	assert.InDelta(t, 5.0/3.0, fv[3], 1e-12)
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		p    float64
		want models.Tier
	}{
		{0, models.TierLow},
		{19.999, models.TierLow},
		{20.0, models.TierMedium},
		{49.999, models.TierMedium},
		{50.0, models.TierHigh},
		{100.0, models.TierHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TierFor(tt.p), "p=%v", tt.p)
	}
}

func TestTierFor_Partition(t *testing.T) {
	prev := models.TierLow
	order := map[models.Tier]int{models.TierLow: 0, models.TierMedium: 1, models.TierHigh: 2}

	for p := 0.0; p <= 100.0; p += 0.01 {
		tier := TierFor(p)
		assert.Contains(t, order, tier)
		assert.GreaterOrEqual(t, order[tier], order[prev], "tiers are monotonic in p")
		prev = tier
	}

	assert.Equal(t, models.TierLow, TierFor(math.Nextafter(20, 0)))
	assert.Equal(t, models.TierMedium, TierFor(math.Nextafter(50, 0)))
}
