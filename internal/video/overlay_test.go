package video

import (
	"testing"

	"gocv.io/x/gocv"
)

func TestAnnotateDrawsBorderOnDetection(t *testing.T) {
	frame := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer frame.Close()

	Annotate(&frame, Annotation{
		FrameIndex:  0,
		TotalFrames: 100,
		Detected:    true,
		Probability: 0.92,
		StartTime:   "00:00",
		EndTime:     "00:01",
	})

	// Border pixels are pure red in BGR layout.
	corners := [][2]int{{0, 0}, {0, 319}, {239, 0}, {239, 319}}
	for _, c := range corners {
		px := frame.GetVecbAt(c[0], c[1])
		if px[0] != 0 || px[1] != 0 || px[2] != 255 {
			t.Errorf("pixel (%d,%d) = %v, want red border", c[0], c[1], px)
		}
	}
}

func TestAnnotateNoBorderWithoutDetection(t *testing.T) {
	frame := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer frame.Close()

	Annotate(&frame, Annotation{
		FrameIndex:  5,
		TotalFrames: 100,
		Detected:    false,
		Probability: 0.12,
		StartTime:   "00:00",
		EndTime:     "00:01",
	})

	// Corners away from text stay black when no border is drawn.
	px := frame.GetVecbAt(239, 319)
	if px[0] != 0 || px[1] != 0 || px[2] != 0 {
		t.Errorf("pixel (239,319) = %v, want untouched black", px)
	}
}
