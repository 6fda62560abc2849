package risk

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"

	"diabetes-risk/internal/models"
)

// Jitter modes.
const (
	JitterRandom  = "random"
	JitterProfile = "profile"
	JitterNone    = "none"
)

// Jitter produces the perturbation added to placeholder scores. Offsets lie
// in [-width, width].
type Jitter interface {
	Offset(fv models.FeatureVector) float64
}

// NewJitter builds the named mode.
func NewJitter(mode string, width float64) (Jitter, error) {
	if width < 0 || math.IsNaN(width) {
		return nil, fmt.Errorf("jitter width must be non-negative, got %v", width)
	}
	switch mode {
	case JitterRandom, "":
		return RandomJitter{Width: width}, nil
	case JitterProfile:
		return ProfileJitter{Width: width}, nil
	case JitterNone:
		return NoJitter{}, nil
	default:
		return nil, fmt.Errorf("unknown jitter mode %q", mode)
	}
}

// RandomJitter draws a fresh uniform offset on every call.
type RandomJitter struct {
	Width float64
}

func (j RandomJitter) Offset(_ models.FeatureVector) float64 {
	return (rand.Float64()*2 - 1) * j.Width
}

// ProfileJitter derives the offset from the feature vector, so identical
// submissions get identical scores.
type ProfileJitter struct {
	Width float64
}

func (j ProfileJitter) Offset(fv models.FeatureVector) float64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, x := range fv {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
		h.Write(buf[:])
	}
	seed := h.Sum64()
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))
	return (rng.Float64()*2 - 1) * j.Width
}

type NoJitter struct{}

func (NoJitter) Offset(_ models.FeatureVector) float64 { return 0 }
