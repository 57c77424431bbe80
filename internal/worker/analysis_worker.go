package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/fightwatch/api/internal/client"
	"github.com/fightwatch/api/internal/config"
	"github.com/fightwatch/api/internal/feature"
	"github.com/fightwatch/api/internal/logging"
	"github.com/fightwatch/api/internal/model"
	"github.com/fightwatch/api/internal/pipeline"
	"github.com/fightwatch/api/internal/predict"
	"github.com/fightwatch/api/internal/service"
	"github.com/fightwatch/api/internal/websocket"
)

// TaskTypeAnalyze is the asynq task type for video analysis jobs.
const TaskTypeAnalyze = "analysis:process"

// AnalysisWorker runs one analysis job end to end: state transitions,
// pipeline execution, progress broadcasts, and the post-completion report.
type AnalysisWorker struct {
	service *service.AnalysisService
	cfg     config.AnalysisConfig
	hub     *websocket.Hub
	reports *client.ReportClient
	logger  zerolog.Logger
}

// NewAnalysisWorker creates a worker. hub and reports may be nil.
func NewAnalysisWorker(svc *service.AnalysisService, cfg config.AnalysisConfig, hub *websocket.Hub, reports *client.ReportClient) *AnalysisWorker {
	return &AnalysisWorker{
		service: svc,
		cfg:     cfg,
		hub:     hub,
		reports: reports,
		logger:  logging.WithComponent("worker"),
	}
}

// ProcessTask handles a queued analysis task.
func (w *AnalysisWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var taskPayload struct {
		JobID string `json:"jobId"`
	}
	if err := json.Unmarshal(t.Payload(), &taskPayload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}
	return w.Run(ctx, taskPayload.JobID)
}

// Run executes the analysis job. It is the only writer of the job record:
// every path out of it leaves the job in exactly one terminal state.
func (w *AnalysisWorker) Run(ctx context.Context, jobID string) error {
	job, err := w.service.BeginProcessing(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to start job %s: %w", jobID, err)
	}

	w.logger.Info().Str("job_id", jobID).Str("video", job.VideoPath).Msg("starting analysis job")

	p, closers, err := w.buildPipeline(jobID, job.Params)
	if err != nil {
		return w.failJob(ctx, jobID, fmt.Sprintf("Error processing video: %v", err))
	}
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	outputPath, err := w.outputPath(job.VideoPath)
	if err != nil {
		return w.failJob(ctx, jobID, fmt.Sprintf("Error processing video: %v", err))
	}

	result, err := p.Process(ctx, job.VideoPath, outputPath)
	if err != nil {
		return w.failJob(ctx, jobID, fmt.Sprintf("Error processing video: %v", err))
	}

	if err := w.service.CompleteJob(ctx, jobID, result); err != nil {
		w.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to save result")
		return err
	}

	if w.hub != nil {
		w.hub.BroadcastComplete(jobID, result)
	}
	w.logger.Info().
		Str("job_id", jobID).
		Int("fight_segments", result.FightSegments).
		Float64("elapsed_s", result.ProcessingTimeSeconds).
		Msg("analysis job completed")

	w.generateReport(ctx, jobID, job.VideoPath, result)
	return nil
}

// buildPipeline selects the extractor/predictor strategy pair for this job.
// Model-backed implementations are used when their weight files exist;
// otherwise the statistical and heuristic fallbacks are wired in. The
// returned closers release any loaded networks.
func (w *AnalysisWorker) buildPipeline(jobID string, params model.AnalysisParams) (*pipeline.Pipeline, []func(), error) {
	var closers []func()

	seed := w.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	var extractor feature.Extractor
	if emb, err := feature.NewEmbeddingExtractor(w.cfg.EmbeddingModelPath, params.SequenceLength); err == nil {
		extractor = emb
		closers = append(closers, func() { emb.Close() })
	} else {
		extractor = feature.NewStatisticalExtractor(params.SequenceLength)
	}

	heuristic := predict.NewHeuristicPredictor(rng)
	var predictor predict.Predictor = heuristic
	classifierLoaded := false
	if cls, err := predict.NewClassifierPredictor(w.cfg.ClassifierModelPath, params.SequenceLength, heuristic); err == nil {
		predictor = cls
		classifierLoaded = true
		closers = append(closers, func() { cls.Close() })
	}

	threshold := model.DefaultThreshold
	if params.Threshold != nil {
		threshold = *params.Threshold
	}

	opts := pipeline.Options{
		SequenceLength:  params.SequenceLength,
		Threshold:       threshold,
		OutputFrameRate: params.OutputFrameRate,
		Extractor:       extractor,
		Predictor:       predictor,
		Rand:            rng,
		Logger:          w.logger.With().Str("job_id", jobID).Logger(),
		Progress: func(done, total int) {
			if w.hub != nil {
				w.hub.BroadcastProgress(jobID, done, total, model.JobStatusProcessing)
			}
		},
	}
	if w.cfg.DemoPattern && !classifierLoaded {
		opts.ReferencePattern = pipeline.DemoPattern
	}

	return pipeline.New(opts), closers, nil
}

// outputPath derives the processed-video path from the input file name,
// suffixed with the current unix timestamp to keep reruns distinct.
func (w *AnalysisWorker) outputPath(videoPath string) (string, error) {
	if err := os.MkdirAll(w.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	name := fmt.Sprintf("%s_processed_%d.mp4", base, time.Now().Unix())
	return filepath.Join(w.cfg.OutputDir, name), nil
}

// generateReport attaches an incident report to a completed job. Report
// failures are absorbed: the analysis result stands on its own.
func (w *AnalysisWorker) generateReport(ctx context.Context, jobID, videoPath string, result *model.AnalysisResult) {
	var report string
	if w.reports != nil && w.reports.IsConfigured() {
		var err error
		report, err = w.reports.GenerateReport(ctx, videoPath, result)
		if err != nil {
			w.logger.Warn().Err(err).Str("job_id", jobID).Msg("report generation failed, using fallback")
			report = client.FallbackReport(result)
		}
	} else {
		report = client.FallbackReport(result)
	}

	if err := w.service.AttachReport(ctx, jobID, report); err != nil {
		w.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to attach report")
	}
}

func (w *AnalysisWorker) failJob(ctx context.Context, jobID, errMsg string) error {
	if err := w.service.FailJob(ctx, jobID, errMsg); err != nil {
		w.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to mark job as failed")
		return err
	}
	if w.hub != nil {
		w.hub.BroadcastError(jobID, "ANALYSIS_FAILED", errMsg)
	}
	w.logger.Error().Str("job_id", jobID).Str("error", errMsg).Msg("analysis job failed")
	return nil
}
