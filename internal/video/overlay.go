package video

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Width of the alert border drawn on positive-verdict frames.
const borderSize = 10

var (
	overlayWhite = color.RGBA{R: 255, G: 255, B: 255}
	overlayRed   = color.RGBA{R: 255}
	overlayGreen = color.RGBA{G: 255}
)

// Annotation carries the overlay state for one frame, taken from the frame's
// owning timeline chunk.
type Annotation struct {
	FrameIndex  int
	TotalFrames int
	Detected    bool
	Probability float64
	StartTime   string
	EndTime     string
}

// Annotate draws the running frame counter, the verdict label, the chunk
// probability and time range onto the frame, plus a red border on all four
// edges when the verdict is positive.
func Annotate(frame *gocv.Mat, a Annotation) {
	counter := fmt.Sprintf("Frame: %d/%d", a.FrameIndex+1, a.TotalFrames)
	gocv.PutText(frame, counter, image.Pt(10, 30), gocv.FontHersheySimplex, 0.7, overlayWhite, 2)

	label, labelColor := "No Violence", overlayGreen
	if a.Detected {
		label, labelColor = "VIOLENCE DETECTED!", overlayRed
	}
	gocv.PutText(frame, label, image.Pt(10, 70), gocv.FontHersheySimplex, 1, labelColor, 2)

	prob := fmt.Sprintf("Probability: %.2f", a.Probability)
	gocv.PutText(frame, prob, image.Pt(10, 110), gocv.FontHersheySimplex, 0.7, overlayWhite, 2)

	span := fmt.Sprintf("Time: %s - %s", a.StartTime, a.EndTime)
	gocv.PutText(frame, span, image.Pt(10, frame.Rows()-20), gocv.FontHersheySimplex, 0.7, overlayWhite, 2)

	if a.Detected {
		drawBorder(frame, overlayRed)
	}
}

// drawBorder fills a fixed-width strip along each edge.
func drawBorder(frame *gocv.Mat, c color.RGBA) {
	w, h := frame.Cols(), frame.Rows()
	gocv.Rectangle(frame, image.Rect(0, 0, w, borderSize), c, -1)
	gocv.Rectangle(frame, image.Rect(0, h-borderSize, w, h), c, -1)
	gocv.Rectangle(frame, image.Rect(0, 0, borderSize, h), c, -1)
	gocv.Rectangle(frame, image.Rect(w-borderSize, 0, w, h), c, -1)
}
