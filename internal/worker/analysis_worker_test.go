package worker

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fightwatch/api/internal/config"
	"github.com/fightwatch/api/internal/model"
	"github.com/fightwatch/api/internal/service"
	"github.com/fightwatch/api/internal/store"
)

func newTestWorker(t *testing.T) (*AnalysisWorker, *service.AnalysisService) {
	t.Helper()

	svc := service.NewAnalysisService(store.NewMemoryStore())
	cfg := config.AnalysisConfig{
		EmbeddingModelPath:  filepath.Join(t.TempDir(), "missing_embedding.onnx"),
		ClassifierModelPath: filepath.Join(t.TempDir(), "missing_classifier.onnx"),
		OutputDir:           t.TempDir(),
	}
	w := NewAnalysisWorker(svc, cfg, nil, nil)
	svc.SetDispatcher(holdDispatcher{})
	return w, svc
}

// holdDispatcher accepts jobs without running them, so tests drive the
// worker synchronously.
type holdDispatcher struct{}

func (holdDispatcher) Dispatch(context.Context, string) error { return nil }

func TestRunFailsJobOnUnreadableVideo(t *testing.T) {
	w, svc := newTestWorker(t)
	ctx := context.Background()

	videoPath := filepath.Join(t.TempDir(), "does_not_exist.mp4")
	saved, err := svc.Submit(ctx, videoPath, model.AnalysisParams{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	_ = w.Run(ctx, saved.ID)

	status, err := svc.Status(ctx, saved.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Status != model.JobStatusFailed {
		t.Fatalf("status = %s, want failed", status.Status)
	}
	if status.Error == nil || !strings.HasPrefix(*status.Error, "Error processing video:") {
		t.Errorf("error = %v", status.Error)
	}
}

func TestOutputPathNaming(t *testing.T) {
	w, _ := newTestWorker(t)

	out, err := w.outputPath("/uploads/abc/fight_clip.avi")
	if err != nil {
		t.Fatalf("outputPath: %v", err)
	}

	base := filepath.Base(out)
	if !strings.HasPrefix(base, "fight_clip_processed_") {
		t.Errorf("output name = %q, want fight_clip_processed_<ts>.mp4", base)
	}
	if !strings.HasSuffix(base, ".mp4") {
		t.Errorf("output name = %q, want .mp4 suffix", base)
	}
	if filepath.Dir(out) != w.cfg.OutputDir {
		t.Errorf("output dir = %q, want %q", filepath.Dir(out), w.cfg.OutputDir)
	}
}

func TestNewAnalysisTaskPayload(t *testing.T) {
	task, err := newAnalysisTask("job-9")
	if err != nil {
		t.Fatalf("newAnalysisTask: %v", err)
	}
	if task.Type() != TaskTypeAnalyze {
		t.Errorf("type = %q, want %q", task.Type(), TaskTypeAnalyze)
	}
	if got := string(task.Payload()); got != `{"jobId":"job-9"}` {
		t.Errorf("payload = %s", got)
	}
}
