package feature

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// Frames are normalized to this square resolution before statistics.
const inputSize = 224

// Canny hysteresis thresholds for the edge-density features.
const (
	cannyLow  = 100
	cannyHigh = 200
)

// StatisticalExtractor derives a feature column from regional image
// statistics instead of a learned embedding: per-channel quadrant
// mean/std/max/min plus edge-magnitude statistics. It needs no model weights
// and is the configuration-time fallback when the embedding network is
// unavailable.
type StatisticalExtractor struct {
	seqLen int
}

// NewStatisticalExtractor returns an extractor for chunks of seqLen frames.
func NewStatisticalExtractor(seqLen int) *StatisticalExtractor {
	return &StatisticalExtractor{seqLen: seqLen}
}

// Extract builds the (FeatureDim x seqLen) matrix, one column per frame.
func (e *StatisticalExtractor) Extract(frames []gocv.Mat) (*Matrix, error) {
	m := NewMatrix(FeatureDim, e.seqLen)

	n := len(frames)
	if n > e.seqLen {
		n = e.seqLen
	}
	for i := 0; i < n; i++ {
		if frames[i].Empty() {
			continue
		}
		col, err := frameFeatures(frames[i])
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		m.SetColumn(i, col)
	}
	return m, nil
}

// frameFeatures computes the statistics column for one frame. Three-channel
// frames get the full quadrant/edge treatment; anything else degrades to a
// deterministic mean/std pair with the rest of the column zero.
func frameFeatures(frame gocv.Mat) ([]float64, error) {
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(frame, &resized, image.Pt(inputSize, inputSize), 0, 0, gocv.InterpolationLinear)

	if resized.Channels() != 3 {
		s := byteStats(resized.ToBytes())
		return []float64{s.mean, s.std}, nil
	}

	channels := gocv.Split(resized)
	defer func() {
		for i := range channels {
			channels[i].Close()
		}
	}()

	col := make([]float64, 0, 51)
	for _, ch := range channels {
		data := ch.ToBytes()
		for _, q := range quadrants(inputSize, inputSize) {
			s := regionStats(data, inputSize, q)
			col = append(col, s.mean, s.std, s.max, s.min)
		}
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(resized, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, cannyLow, cannyHigh)

	edgeData := edges.ToBytes()
	s := byteStats(edgeData)
	col = append(col, s.mean, s.std, edgeFraction(edgeData))

	return col, nil
}

// summary holds the scalar statistics of one pixel region.
type summary struct {
	mean float64
	std  float64
	max  float64
	min  float64
}

// byteStats computes mean/std/max/min over a raw byte plane.
func byteStats(data []byte) summary {
	if len(data) == 0 {
		return summary{}
	}

	var sum float64
	maxV, minV := float64(data[0]), float64(data[0])
	for _, b := range data {
		v := float64(b)
		sum += v
		if v > maxV {
			maxV = v
		}
		if v < minV {
			minV = v
		}
	}
	mean := sum / float64(len(data))

	var sq float64
	for _, b := range data {
		d := float64(b) - mean
		sq += d * d
	}
	return summary{
		mean: mean,
		std:  math.Sqrt(sq / float64(len(data))),
		max:  maxV,
		min:  minV,
	}
}

// regionStats computes byteStats over a rectangular window of a single
// channel plane laid out row-major at the given width.
func regionStats(data []byte, width int, r image.Rectangle) summary {
	region := make([]byte, 0, r.Dx()*r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := y * width
		region = append(region, data[row+r.Min.X:row+r.Max.X]...)
	}
	return byteStats(region)
}

// quadrants splits a w x h plane into its 2x2 spatial quadrants in
// top-left, top-right, bottom-left, bottom-right order.
func quadrants(w, h int) []image.Rectangle {
	mw, mh := w/2, h/2
	return []image.Rectangle{
		image.Rect(0, 0, mw, mh),
		image.Rect(mw, 0, w, mh),
		image.Rect(0, mh, mw, h),
		image.Rect(mw, mh, w, h),
	}
}

// edgeFraction returns the share of edge pixels in a Canny magnitude plane.
func edgeFraction(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	count := 0
	for _, b := range data {
		if b > 0 {
			count++
		}
	}
	return float64(count) / float64(len(data))
}
