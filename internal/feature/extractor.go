package feature

import "gocv.io/x/gocv"

// Extractor converts an ordered batch of up to sequenceLength frames into a
// fixed-shape feature matrix. Empty frames leave their column zero; frames
// past the sequence length are ignored.
type Extractor interface {
	Extract(frames []gocv.Mat) (*Matrix, error)
}
