package handler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/fightwatch/api/internal/client"
	"github.com/fightwatch/api/internal/config"
	"github.com/fightwatch/api/internal/model"
	"github.com/fightwatch/api/internal/service"
	"github.com/fightwatch/api/pkg/response"
)

const maxUploadSize = 500 * 1024 * 1024 // 500MB

// AnalyzeHandler serves the analysis HTTP surface: video submission and the
// status/result/report reads over the job record.
type AnalyzeHandler struct {
	service   *service.AnalysisService
	reports   *client.ReportClient
	cfg       config.AnalysisConfig
	validator *validator.Validate
}

func NewAnalyzeHandler(svc *service.AnalysisService, reports *client.ReportClient, cfg config.AnalysisConfig, v *validator.Validate) *AnalyzeHandler {
	return &AnalyzeHandler{
		service:   svc,
		reports:   reports,
		cfg:       cfg,
		validator: v,
	}
}

// Upload handles POST /api/analyze/upload. It accepts a multipart video
// upload plus optional tuning form values, persists the file under a
// per-job directory, and submits the analysis job.
func (h *AnalyzeHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("video")
	if err != nil {
		return response.ValidationError(c, "Video file is required", nil)
	}

	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds 500MB limit", map[string]interface{}{
			"maxSize":  maxUploadSize,
			"fileSize": file.Size,
		})
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !model.AllowedVideoExtensions[ext] {
		return response.ValidationError(c, "Invalid file type. Supported: mp4, avi, mov, webm, mkv", map[string]interface{}{
			"extension": ext,
		})
	}

	params, err := parseParams(c)
	if err != nil {
		return response.ValidationError(c, err.Error(), nil)
	}
	if err := h.validator.Struct(&params); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	uploadDir := filepath.Join(h.cfg.UploadDir, uuid.New().String())
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return response.ServiceError(c, "Failed to prepare upload directory")
	}

	videoPath := filepath.Join(uploadDir, filepath.Base(file.Filename))
	if err := c.SaveFile(file, videoPath); err != nil {
		return response.ServiceError(c, "Failed to save uploaded file")
	}

	job, err := h.service.Submit(c.Context(), videoPath, params)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, model.AnalyzeStartResponse{
		JobID:     job.ID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
	})
}

// Status handles GET /api/analyze/status/:jobId.
func (h *AnalyzeHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.Status(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Result handles GET /api/analyze/result/:jobId.
func (h *AnalyzeHandler) Result(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.Result(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		if errors.Is(err, service.ErrJobNotComplete) {
			return response.JobNotComplete(c, "Job not completed yet")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Report handles GET /api/analyze/report/:jobId.
func (h *AnalyzeHandler) Report(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	report, err := h.service.Report(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		if errors.Is(err, service.ErrJobNotComplete) {
			return response.JobNotComplete(c, "Job not completed yet")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, model.JobReportResponse{JobID: jobID, Report: report})
}

// RegenerateReport handles POST /api/analyze/report/:jobId. It reruns report
// generation against the stored result and replaces the attached report.
func (h *AnalyzeHandler) RegenerateReport(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	job, err := h.service.Job(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}
	if job.Status != model.JobStatusCompleted || job.Result == nil {
		return response.JobNotComplete(c, "Job not completed yet")
	}

	var report string
	if h.reports != nil && h.reports.IsConfigured() {
		report, err = h.reports.GenerateReport(c.Context(), job.VideoPath, job.Result)
		if err != nil {
			report = client.FallbackReport(job.Result)
		}
	} else {
		report = client.FallbackReport(job.Result)
	}

	if err := h.service.AttachReport(c.Context(), jobID, report); err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, model.JobReportResponse{JobID: jobID, Report: report})
}

// parseParams reads the optional tuning form values. Missing values stay
// zero and are filled with defaults at submission.
func parseParams(c *fiber.Ctx) (model.AnalysisParams, error) {
	var params model.AnalysisParams

	if v := c.FormValue("sequence_length"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return params, fmt.Errorf("sequence_length must be an integer")
		}
		params.SequenceLength = n
	}
	if v := c.FormValue("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return params, fmt.Errorf("threshold must be a number")
		}
		params.Threshold = &f
	}
	if v := c.FormValue("output_frame_rate"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return params, fmt.Errorf("output_frame_rate must be an integer")
		}
		params.OutputFrameRate = n
	}

	return params, nil
}

// formatValidationErrors converts validator errors to a field map.
func formatValidationErrors(err error) map[string]string {
	errs := make(map[string]string)
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			errs[e.Field()] = fmt.Sprintf("failed on '%s' validation", e.Tag())
		}
	}
	return errs
}
