package predict

import (
	"math/rand"

	"gocv.io/x/gocv"

	"github.com/fightwatch/api/internal/feature"
)

// HeuristicPredictor derives a probability from feature-matrix statistics,
// degrading to raw frame intensities when extraction fails. The jitter source
// is injected so runs can be pinned to a seed.
type HeuristicPredictor struct {
	rng *rand.Rand
}

// NewHeuristicPredictor returns a predictor drawing jitter from rng.
func NewHeuristicPredictor(rng *rand.Rand) *HeuristicPredictor {
	return &HeuristicPredictor{rng: rng}
}

// Predict scores the chunk. Extraction errors are absorbed by the
// raw-intensity path; this method never fails.
func (p *HeuristicPredictor) Predict(frames []gocv.Mat, threshold float64, extractor feature.Extractor) (bool, float64) {
	prob := p.probability(frames, extractor)
	return Verdict(prob, threshold), prob
}

func (p *HeuristicPredictor) probability(frames []gocv.Mat, extractor feature.Extractor) float64 {
	m, err := extractor.Extract(frames)
	if err != nil {
		return intensityScore(frameIntensities(frames), p.rng)
	}
	return featureScore(m, p.rng)
}

// featureScore blends normalized matrix statistics with bounded jitter.
// Higher variance across the features reads as more action.
func featureScore(m *feature.Matrix, rng *rand.Rand) float64 {
	mean, std, max, min := m.Stats()

	valueRange := max - min
	if max <= min {
		valueRange = 1.0
	}
	normalizedMean := (mean - min) / valueRange
	normalizedStd := std / valueRange

	actionScore := normalizedMean*0.3 + normalizedStd*0.7
	return Clamp(actionScore*0.6 + uniform(rng, 0.2, 0.4))
}

// frameIntensities returns the mean pixel intensity of each non-empty frame.
func frameIntensities(frames []gocv.Mat) []float64 {
	var out []float64
	for _, f := range frames {
		if f.Empty() {
			continue
		}
		out = append(out, meanIntensity(f))
	}
	return out
}

func meanIntensity(f gocv.Mat) float64 {
	s := f.Mean()
	switch f.Channels() {
	case 1:
		return s.Val1
	case 2:
		return (s.Val1 + s.Val2) / 2
	case 3:
		return (s.Val1 + s.Val2 + s.Val3) / 3
	default:
		return (s.Val1 + s.Val2 + s.Val3 + s.Val4) / 4
	}
}

// intensityScore is the last predictor fallback. Varying intensities blend a
// range-normalized mean with jitter; degenerate input gets a wider uniform
// draw so the predictor never fails.
func intensityScore(intensities []float64, rng *rand.Rand) float64 {
	if len(intensities) == 0 {
		return uniform(rng, 0.2, 0.8)
	}

	minV, maxV := intensities[0], intensities[0]
	var sum float64
	for _, v := range intensities {
		sum += v
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}

	valueRange := maxV - minV
	if valueRange <= 0 {
		return uniform(rng, 0.3, 0.7)
	}

	normalized := (sum/float64(len(intensities)) - minV) / valueRange
	return Clamp(normalized*0.5 + uniform(rng, 0.1, 0.5))
}
