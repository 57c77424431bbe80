package feature

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"
)

// EmbeddingExtractor pushes frames through a frozen image-embedding network
// and uses the flattened embedding as the feature column. Construction fails
// when the weights file is missing so callers pick the statistical extractor
// at configuration time instead of branching per call.
type EmbeddingExtractor struct {
	net    gocv.Net
	seqLen int
}

// NewEmbeddingExtractor loads the network from modelPath.
func NewEmbeddingExtractor(modelPath string, seqLen int) (*EmbeddingExtractor, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("embedding model unavailable: %w", err)
	}

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("embedding model could not be loaded: %s", modelPath)
	}
	return &EmbeddingExtractor{net: net, seqLen: seqLen}, nil
}

// Extract runs each frame through the network at 224x224 and writes the
// embedding, truncated or zero-padded to FeatureDim, into column i.
func (e *EmbeddingExtractor) Extract(frames []gocv.Mat) (*Matrix, error) {
	m := NewMatrix(FeatureDim, e.seqLen)

	n := len(frames)
	if n > e.seqLen {
		n = e.seqLen
	}
	for i := 0; i < n; i++ {
		if frames[i].Empty() {
			continue
		}

		blob := gocv.BlobFromImage(frames[i], 1.0, image.Pt(inputSize, inputSize),
			gocv.NewScalar(0, 0, 0, 0), false, false)
		e.net.SetInput(blob, "")
		out := e.net.Forward("")

		vals, err := out.DataPtrFloat32()
		if err != nil {
			out.Close()
			blob.Close()
			return nil, fmt.Errorf("frame %d: reading embedding output: %w", i, err)
		}

		col := make([]float64, 0, FeatureDim)
		for j := 0; j < len(vals) && j < FeatureDim; j++ {
			col = append(col, float64(vals[j]))
		}
		m.SetColumn(i, col)

		out.Close()
		blob.Close()
	}
	return m, nil
}

// Close releases the network.
func (e *EmbeddingExtractor) Close() error {
	return e.net.Close()
}
