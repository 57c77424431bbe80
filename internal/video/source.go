package video

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// Sentinel errors for the media boundary. Both are fatal to a job.
var (
	ErrMediaOpen   = errors.New("could not open video file")
	ErrRenderWrite = errors.New("could not write output video")
)

// Source is a sequential frame reader over a video container. It is
// forward-only and restartable: SeekToStart rewinds to frame 0, which the
// pipeline does twice per job (timeline pass, then render pass).
type Source struct {
	cap        *gocv.VideoCapture
	path       string
	frameRate  float64
	frameCount int
	width      int
	height     int
}

// Open decodes the container header and resolves the stream properties.
// A frame rate of <= 0 reported by the container falls back to 30. A frame
// count the container cannot report is resolved by one linear scan, after
// which the position is reset to 0.
func Open(path string) (*Source, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMediaOpen, path)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("%w: %s", ErrMediaOpen, path)
	}

	s := &Source{
		cap:    cap,
		path:   path,
		width:  int(cap.Get(gocv.VideoCaptureFrameWidth)),
		height: int(cap.Get(gocv.VideoCaptureFrameHeight)),
	}

	s.frameRate = cap.Get(gocv.VideoCaptureFPS)
	if s.frameRate <= 0 {
		s.frameRate = 30
	}

	s.frameCount = int(cap.Get(gocv.VideoCaptureFrameCount))
	if s.frameCount <= 0 {
		s.frameCount = scanFrameCount(cap)
	}

	return s, nil
}

// frameStream is the read/seek slice of a capture device needed by the
// frame-count scan, satisfied by *gocv.VideoCapture.
type frameStream interface {
	Read(dst *gocv.Mat) bool
	Set(prop gocv.VideoCaptureProperties, value float64)
}

// scanFrameCount counts frames by reading the whole stream once, then rewinds
// to frame 0. Containers that cannot report a frame count land here.
func scanFrameCount(stream frameStream) int {
	img := gocv.NewMat()
	defer img.Close()

	count := 0
	for stream.Read(&img) {
		count++
	}
	stream.Set(gocv.VideoCapturePosFrames, 0)
	return count
}

// FrameRate returns the stream frame rate in frames per second.
func (s *Source) FrameRate() float64 { return s.frameRate }

// FrameCount returns the total number of decodable frames.
func (s *Source) FrameCount() int { return s.frameCount }

// Width returns the frame width in pixels.
func (s *Source) Width() int { return s.width }

// Height returns the frame height in pixels.
func (s *Source) Height() int { return s.height }

// Read decodes the next frame into dst. It returns false at end of stream.
func (s *Source) Read(dst *gocv.Mat) bool {
	return s.cap.Read(dst)
}

// SeekToStart rewinds the reader to frame 0.
func (s *Source) SeekToStart() error {
	if !s.cap.IsOpened() {
		return fmt.Errorf("%w: seek on closed source %s", ErrMediaOpen, s.path)
	}
	s.cap.Set(gocv.VideoCapturePosFrames, 0)
	return nil
}

// Close releases the decoder.
func (s *Source) Close() error {
	return s.cap.Close()
}
