package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/fightwatch/api/internal/client"
	"github.com/fightwatch/api/internal/config"
	"github.com/fightwatch/api/internal/model"
	"github.com/fightwatch/api/internal/service"
	"github.com/fightwatch/api/internal/store"
	"github.com/fightwatch/api/pkg/response"
)

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(context.Context, string) error { return nil }

func newTestApp(t *testing.T) (*fiber.App, *service.AnalysisService) {
	t.Helper()

	svc := service.NewAnalysisService(store.NewMemoryStore())
	svc.SetDispatcher(noopDispatcher{})

	cfg := config.AnalysisConfig{
		UploadDir: t.TempDir(),
		OutputDir: t.TempDir(),
	}
	h := NewAnalyzeHandler(svc, nil, cfg, validator.New())

	app := fiber.New()
	api := app.Group("/api/analyze")
	api.Post("/upload", h.Upload)
	api.Get("/status/:jobId", h.Status)
	api.Get("/result/:jobId", h.Result)
	api.Get("/report/:jobId", h.Report)
	api.Post("/report/:jobId", h.RegenerateReport)

	return app, svc
}

func multipartVideo(t *testing.T, filename string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("video", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write([]byte("not a real container")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &body, w.FormDataContentType()
}

func TestUploadAccepted(t *testing.T) {
	app, _ := newTestApp(t)

	body, contentType := multipartVideo(t, "clip.mp4", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/analyze/upload", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var start model.AnalyzeStartResponse
	if err := json.NewDecoder(resp.Body).Decode(&start); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if start.JobID == "" {
		t.Error("jobId is empty")
	}
	if start.Status != model.JobStatusQueued {
		t.Errorf("status = %s, want queued", start.Status)
	}
}

func TestUploadRejectsExtension(t *testing.T) {
	app, _ := newTestApp(t)

	body, contentType := multipartVideo(t, "malware.exe", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/analyze/upload", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUploadRejectsBadParams(t *testing.T) {
	app, _ := newTestApp(t)

	body, contentType := multipartVideo(t, "clip.mp4", map[string]string{"threshold": "1.5"})
	req := httptest.NewRequest(http.MethodPost, "/api/analyze/upload", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUploadParsesParams(t *testing.T) {
	app, svc := newTestApp(t)

	body, contentType := multipartVideo(t, "clip.mp4", map[string]string{
		"sequence_length":   "20",
		"threshold":         "0.6",
		"output_frame_rate": "24",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/analyze/upload", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var start model.AnalyzeStartResponse
	if err := json.NewDecoder(resp.Body).Decode(&start); err != nil {
		t.Fatalf("decode: %v", err)
	}

	job, err := svc.Job(context.Background(), start.JobID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if job.Params.SequenceLength != 20 || *job.Params.Threshold != 0.6 || job.Params.OutputFrameRate != 24 {
		t.Errorf("params = %+v", job.Params)
	}
}

func TestUploadKeepsExplicitZeroThreshold(t *testing.T) {
	app, svc := newTestApp(t)

	body, contentType := multipartVideo(t, "clip.mp4", map[string]string{"threshold": "0"})
	req := httptest.NewRequest(http.MethodPost, "/api/analyze/upload", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var start model.AnalyzeStartResponse
	if err := json.NewDecoder(resp.Body).Decode(&start); err != nil {
		t.Fatalf("decode: %v", err)
	}

	job, err := svc.Job(context.Background(), start.JobID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if job.Params.Threshold == nil || *job.Params.Threshold != 0 {
		t.Errorf("threshold = %v, want explicit 0, not the default", job.Params.Threshold)
	}
}

func TestStatusUnknownJob(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/analyze/status/nope", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestResultNotComplete(t *testing.T) {
	app, svc := newTestApp(t)

	job, err := svc.Submit(context.Background(), "/tmp/v.mp4", model.AnalysisParams{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/analyze/result/"+job.ID, nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	raw, _ := io.ReadAll(resp.Body)
	var errResp response.ErrorResponse
	if err := json.Unmarshal(raw, &errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Error.Code != response.CodeJobNotComplete {
		t.Errorf("code = %s, want %s", errResp.Error.Code, response.CodeJobNotComplete)
	}
}

func TestResultAfterCompletion(t *testing.T) {
	app, svc := newTestApp(t)
	ctx := context.Background()

	job, err := svc.Submit(ctx, "/tmp/v.mp4", model.AnalysisParams{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := svc.BeginProcessing(ctx, job.ID); err != nil {
		t.Fatalf("BeginProcessing: %v", err)
	}
	if err := svc.CompleteJob(ctx, job.ID, &model.AnalysisResult{TotalFrames: 77, TotalSegments: 2}); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/analyze/result/"+job.ID, nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var result model.AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.TotalFrames != 77 {
		t.Errorf("total frames = %d, want 77", result.TotalFrames)
	}
}

func TestRegenerateReportFallback(t *testing.T) {
	app, svc := newTestApp(t)
	ctx := context.Background()

	job, err := svc.Submit(ctx, "/tmp/v.mp4", model.AnalysisParams{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := svc.BeginProcessing(ctx, job.ID); err != nil {
		t.Fatalf("BeginProcessing: %v", err)
	}
	if err := svc.CompleteJob(ctx, job.ID, &model.AnalysisResult{TotalSegments: 1}); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/analyze/report/"+job.ID, nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var report model.JobReportResponse
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Report == "" {
		t.Error("report is empty")
	}
}

func TestRegenerateReportUploadsSourceVideo(t *testing.T) {
	var uploadedName string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/upload/v1beta/files"):
			if err := r.ParseMultipartForm(1 << 20); err == nil {
				if fhs := r.MultipartForm.File["file"]; len(fhs) > 0 {
					uploadedName = fhs[0].Filename
				}
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"file": map[string]string{"name": "files/abc", "state": "PROCESSING"},
			})
		case r.URL.Path == "/v1beta/files/abc":
			json.NewEncoder(w).Encode(map[string]string{
				"name": "files/abc", "uri": "https://example.com/files/abc", "state": "ACTIVE",
			})
		case strings.Contains(r.URL.Path, ":generateContent"):
			json.NewEncoder(w).Encode(map[string]interface{}{
				"candidates": []map[string]interface{}{
					{"content": map[string]interface{}{
						"parts": []map[string]string{{"text": "regenerated"}},
					}},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	svc := service.NewAnalysisService(store.NewMemoryStore())
	svc.SetDispatcher(noopDispatcher{})

	reports := client.NewReportClient(&config.GeminiConfig{
		APIKey:        "k",
		BaseURL:       srv.URL,
		Model:         "gemini-1.5-pro",
		UploadTimeout: 5,
	})
	h := NewAnalyzeHandler(svc, reports, config.AnalysisConfig{UploadDir: t.TempDir()}, validator.New())

	app := fiber.New()
	app.Post("/api/analyze/report/:jobId", h.RegenerateReport)

	ctx := context.Background()
	videoPath := filepath.Join(t.TempDir(), "source.mp4")
	if err := os.WriteFile(videoPath, []byte("video bytes"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}

	job, err := svc.Submit(ctx, videoPath, model.AnalysisParams{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := svc.BeginProcessing(ctx, job.ID); err != nil {
		t.Fatalf("BeginProcessing: %v", err)
	}
	// The annotated output deliberately does not exist on disk; only the
	// source video can be uploaded.
	result := &model.AnalysisResult{
		OutputVideoPath: filepath.Join(t.TempDir(), "source_processed_1.mp4"),
		TotalSegments:   1,
	}
	if err := svc.CompleteJob(ctx, job.ID, result); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/analyze/report/"+job.ID, nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var report model.JobReportResponse
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Report != "regenerated" {
		t.Errorf("report = %q, want regenerated", report.Report)
	}
	if uploadedName != "source.mp4" {
		t.Errorf("uploaded file = %q, want source.mp4", uploadedName)
	}
}
