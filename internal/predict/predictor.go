package predict

import (
	"math/rand"

	"gocv.io/x/gocv"

	"github.com/fightwatch/api/internal/feature"
)

// Predictor scores a chunk of frames and renders a verdict against the
// caller's threshold. Implementations never panic on degenerate input; the
// probability is always clamped to [0,1].
type Predictor interface {
	Predict(frames []gocv.Mat, threshold float64, extractor feature.Extractor) (detected bool, probability float64)
}

// Verdict applies the detection threshold. Equality is a non-detection.
func Verdict(probability, threshold float64) bool {
	return probability > threshold
}

// Clamp bounds a probability to [0,1].
func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
