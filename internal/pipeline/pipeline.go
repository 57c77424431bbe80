package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/fightwatch/api/internal/feature"
	"github.com/fightwatch/api/internal/model"
	"github.com/fightwatch/api/internal/predict"
	"github.com/fightwatch/api/internal/video"
)

// ErrEmptyVideo marks a source with zero decodable frames. Fatal to a job.
var ErrEmptyVideo = errors.New("no frames found in the video")

// FrameSource is the reader side of the pipeline, satisfied by video.Source.
// The pipeline reads it twice: once to build the timeline, once to render.
type FrameSource interface {
	FrameRate() float64
	FrameCount() int
	Width() int
	Height() int
	Read(dst *gocv.Mat) bool
	SeekToStart() error
	Close() error
}

// FrameWriter is the output side, satisfied by video.Writer.
type FrameWriter interface {
	Write(frame gocv.Mat) error
	Close() error
}

// state tracks the pipeline through its two passes.
type state int

const (
	stateInit state = iota
	stateTimelineBuild
	stateRender
	stateDone
	stateError
)

func (s state) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateTimelineBuild:
		return "timeline_build"
	case stateRender:
		return "render"
	case stateDone:
		return "done"
	default:
		return "error"
	}
}

// Options configures one pipeline run. Extractor and Predictor are the
// strategy pair selected once at construction; no per-chunk code branches on
// model availability. ReferencePattern, when non-empty, overrides the
// predictor for chunk indices within its bounds.
type Options struct {
	SequenceLength   int
	Threshold        float64
	OutputFrameRate  int
	Extractor        feature.Extractor
	Predictor        predict.Predictor
	ReferencePattern []float64
	Rand             *rand.Rand
	Logger           zerolog.Logger

	// Progress, when set, is called after every scored chunk.
	Progress func(chunksDone, totalChunks int)

	// Media constructors, overridable for testing against synthetic streams.
	OpenSource func(path string) (FrameSource, error)
	NewWriter  func(path string, fps float64, width, height int) (FrameWriter, error)
}

// Pipeline partitions a video into fixed-length chunks, scores each chunk,
// and renders an annotated copy of the source. Instances are owned by a
// single job worker and are not safe for concurrent use.
type Pipeline struct {
	opts  Options
	state state
}

// New applies defaults and returns a pipeline ready for one Process call.
func New(opts Options) *Pipeline {
	if opts.SequenceLength <= 0 {
		opts.SequenceLength = model.DefaultSequenceLength
	}
	// A zero threshold is valid (anything above 0 detects); only a negative
	// one means the caller left it unset.
	if opts.Threshold < 0 {
		opts.Threshold = model.DefaultThreshold
	}
	if opts.OutputFrameRate <= 0 {
		opts.OutputFrameRate = model.DefaultOutputFrameRate
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Extractor == nil {
		opts.Extractor = feature.NewStatisticalExtractor(opts.SequenceLength)
	}
	if opts.Predictor == nil {
		opts.Predictor = predict.NewHeuristicPredictor(opts.Rand)
	}
	if opts.OpenSource == nil {
		opts.OpenSource = func(path string) (FrameSource, error) {
			return video.Open(path)
		}
	}
	if opts.NewWriter == nil {
		opts.NewWriter = func(path string, fps float64, width, height int) (FrameWriter, error) {
			return video.NewWriter(path, fps, width, height)
		}
	}
	return &Pipeline{opts: opts, state: stateInit}
}

// Process runs both passes and returns the output record. Extraction and
// prediction errors are absorbed by fallbacks inside the predictor; only
// source-open and output-write failures abort the run.
func (p *Pipeline) Process(ctx context.Context, videoPath, outputPath string) (*model.AnalysisResult, error) {
	start := time.Now()

	p.state = stateInit
	src, err := p.opts.OpenSource(videoPath)
	if err != nil {
		p.state = stateError
		return nil, err
	}
	defer src.Close()

	totalFrames := src.FrameCount()
	p.opts.Logger.Info().
		Int("width", src.Width()).
		Int("height", src.Height()).
		Float64("fps", src.FrameRate()).
		Int("frames", totalFrames).
		Msg("video opened")

	if totalFrames == 0 {
		p.state = stateError
		return nil, ErrEmptyVideo
	}

	p.state = stateTimelineBuild
	timeline, err := p.buildTimeline(ctx, src, totalFrames)
	if err != nil {
		p.state = stateError
		return nil, err
	}
	if len(timeline) == 0 {
		p.state = stateError
		return nil, ErrEmptyVideo
	}

	p.state = stateRender
	written, err := p.render(ctx, src, timeline, totalFrames, outputPath)
	if err != nil {
		p.state = stateError
		return nil, err
	}

	p.state = stateDone
	elapsed := time.Since(start).Seconds()

	fightSegments := 0
	for _, c := range timeline {
		if c.FightDetected {
			fightSegments++
		}
	}

	p.opts.Logger.Info().
		Int("frames", written).
		Int("segments", len(timeline)).
		Int("fight_segments", fightSegments).
		Float64("seconds", elapsed).
		Msg("processing completed")

	return &model.AnalysisResult{
		OutputVideoPath:       outputPath,
		TotalFrames:           totalFrames,
		SequenceLength:        p.opts.SequenceLength,
		Threshold:             p.opts.Threshold,
		OutputFrameRate:       p.opts.OutputFrameRate,
		ProcessingTimeSeconds: elapsed,
		TotalSegments:         len(timeline),
		FightSegments:         fightSegments,
		Predictions:           timeline,
	}, nil
}

// buildTimeline is pass 1: read the stream chunk by chunk and score each one.
// A chunk read short of the sequence length is end-padded by duplicating its
// last frame so the extractor always sees a full-shape batch.
func (p *Pipeline) buildTimeline(ctx context.Context, src FrameSource, totalFrames int) ([]model.ChunkPrediction, error) {
	seqLen := p.opts.SequenceLength
	fps := src.FrameRate()
	totalChunks := chunkCount(totalFrames, seqLen)

	timeline := make([]model.ChunkPrediction, 0, totalChunks)
	buf := make([]gocv.Mat, 0, seqLen)
	defer func() { releaseFrames(buf) }()

	frame := gocv.NewMat()
	defer frame.Close()

	for start := 0; start < totalFrames; start += seqLen {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		releaseFrames(buf)
		buf = buf[:0]
		for j := 0; j < seqLen; j++ {
			ok := false
			if start+j < totalFrames {
				ok = src.Read(&frame)
			}
			if ok {
				buf = append(buf, frame.Clone())
			} else if len(buf) > 0 {
				buf = append(buf, buf[len(buf)-1].Clone())
			}
		}
		if len(buf) == 0 {
			break
		}

		chunkIdx := start / seqLen
		prob, detected := p.score(chunkIdx, buf)

		end := chunkEnd(start, seqLen, totalFrames)
		timeline = append(timeline, model.ChunkPrediction{
			ChunkStartFrame:  start,
			ChunkEndFrame:    end,
			StartTime:        formatTimestamp(float64(start) / fps),
			EndTime:          formatTimestamp(float64(end) / fps),
			FightProbability: prob,
			FightDetected:    detected,
		})

		p.opts.Logger.Info().
			Int("chunk", chunkIdx+1).
			Int("of", totalChunks).
			Int("start_frame", start).
			Int("end_frame", end).
			Float64("probability", prob).
			Bool("detected", detected).
			Msg("chunk scored")

		if p.opts.Progress != nil {
			p.opts.Progress(len(timeline), totalChunks)
		}
	}

	return timeline, nil
}

// score resolves the chunk probability: the reference pattern when one is
// injected and covers this index, otherwise the configured predictor.
func (p *Pipeline) score(chunkIdx int, frames []gocv.Mat) (float64, bool) {
	if pat := p.opts.ReferencePattern; chunkIdx < len(pat) {
		jitter := -0.05 + p.opts.Rand.Float64()*0.10
		prob := predict.Clamp(pat[chunkIdx] + jitter)
		return prob, predict.Verdict(prob, p.opts.Threshold)
	}

	detected, prob := p.opts.Predictor.Predict(frames, p.opts.Threshold, p.opts.Extractor)
	return prob, detected
}

// render is pass 2: re-read every physical frame in order, annotate it from
// its owning chunk, and write it to the output stream. Frames past the last
// timeline chunk (when the build-pass count underestimated) clamp to it.
func (p *Pipeline) render(ctx context.Context, src FrameSource, timeline []model.ChunkPrediction, totalFrames int, outputPath string) (int, error) {
	if err := src.SeekToStart(); err != nil {
		return 0, err
	}

	out, err := p.opts.NewWriter(outputPath, float64(p.opts.OutputFrameRate), src.Width(), src.Height())
	if err != nil {
		return 0, err
	}
	defer out.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	written := 0
	for src.Read(&frame) {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		chunkIdx := written / p.opts.SequenceLength
		if chunkIdx >= len(timeline) {
			chunkIdx = len(timeline) - 1
		}
		chunk := timeline[chunkIdx]

		video.Annotate(&frame, video.Annotation{
			FrameIndex:  written,
			TotalFrames: totalFrames,
			Detected:    chunk.FightDetected,
			Probability: chunk.FightProbability,
			StartTime:   chunk.StartTime,
			EndTime:     chunk.EndTime,
		})

		if err := out.Write(frame); err != nil {
			return written, err
		}
		written++
	}

	return written, nil
}

// State returns the current pipeline state name, for logging.
func (p *Pipeline) State() string {
	return p.state.String()
}
