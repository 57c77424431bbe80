package pipeline

import (
	"fmt"

	"gocv.io/x/gocv"
)

// chunkCount returns ceil(totalFrames / seqLen).
func chunkCount(totalFrames, seqLen int) int {
	return (totalFrames + seqLen - 1) / seqLen
}

// chunkEnd returns the inclusive end frame of the chunk starting at start.
// The final chunk is clipped at the last physical frame, never padded past it.
func chunkEnd(start, seqLen, totalFrames int) int {
	end := start + seqLen - 1
	if end > totalFrames-1 {
		end = totalFrames - 1
	}
	return end
}

// formatTimestamp renders seconds as MM:SS.
func formatTimestamp(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// releaseFrames closes every mat in the chunk buffer.
func releaseFrames(frames []gocv.Mat) {
	for i := range frames {
		frames[i].Close()
	}
}
