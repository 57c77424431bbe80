package predict

import (
	"fmt"
	"os"

	"gocv.io/x/gocv"

	"github.com/fightwatch/api/internal/feature"
)

// ClassifierPredictor runs extracted features through a trained sequence
// classifier. Construction fails when the weights file is missing, so the
// heuristic predictor is selected at configuration time. Inference errors
// cascade into the heuristic fallback instead of failing the chunk.
type ClassifierPredictor struct {
	net      gocv.Net
	seqLen   int
	fallback *HeuristicPredictor
}

// NewClassifierPredictor loads the classifier from modelPath.
func NewClassifierPredictor(modelPath string, seqLen int, fallback *HeuristicPredictor) (*ClassifierPredictor, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("classifier model unavailable: %w", err)
	}

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("classifier model could not be loaded: %s", modelPath)
	}
	return &ClassifierPredictor{net: net, seqLen: seqLen, fallback: fallback}, nil
}

// Predict extracts features, transposes them to (seqLen, FeatureDim) and
// reads the scalar probability from the classifier head.
func (p *ClassifierPredictor) Predict(frames []gocv.Mat, threshold float64, extractor feature.Extractor) (bool, float64) {
	m, err := extractor.Extract(frames)
	if err != nil {
		return p.fallback.Predict(frames, threshold, extractor)
	}

	input := gocv.NewMatWithSize(p.seqLen, feature.FeatureDim, gocv.MatTypeCV32F)
	defer input.Close()
	for c := 0; c < p.seqLen; c++ {
		for r := 0; r < feature.FeatureDim; r++ {
			input.SetFloatAt(c, r, float32(m.At(r, c)))
		}
	}

	p.net.SetInput(input, "")
	out := p.net.Forward("")
	defer out.Close()

	if out.Empty() {
		return p.fallback.Predict(frames, threshold, extractor)
	}

	prob := Clamp(float64(out.GetFloatAt(0, 0)))
	return Verdict(prob, threshold), prob
}

// Close releases the network.
func (p *ClassifierPredictor) Close() error {
	return p.net.Close()
}
