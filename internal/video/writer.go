package video

import (
	"fmt"

	"gocv.io/x/gocv"
)

// mp4v keeps the output playable in browsers without transcoding.
const outputFourCC = "mp4v"

// Writer encodes annotated frames into an MPEG-4 container at the configured
// output frame rate and the source's original resolution.
type Writer struct {
	vw   *gocv.VideoWriter
	path string
}

// NewWriter opens the output container for writing.
func NewWriter(path string, fps float64, width, height int) (*Writer, error) {
	vw, err := gocv.VideoWriterFile(path, outputFourCC, fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRenderWrite, path, err)
	}
	if !vw.IsOpened() {
		vw.Close()
		return nil, fmt.Errorf("%w: %s", ErrRenderWrite, path)
	}
	return &Writer{vw: vw, path: path}, nil
}

// Write appends one frame to the output stream.
func (w *Writer) Write(frame gocv.Mat) error {
	if err := w.vw.Write(frame); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRenderWrite, w.path, err)
	}
	return nil
}

// Path returns the output file location.
func (w *Writer) Path() string { return w.path }

// Close finalizes the container.
func (w *Writer) Close() error {
	return w.vw.Close()
}
