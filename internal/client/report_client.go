package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fightwatch/api/internal/config"
	"github.com/fightwatch/api/internal/model"
)

// ReportClient generates incident reports through the Gemini API. When the
// video upload or remote processing fails, it retries with a text-only prompt
// before giving up.
type ReportClient struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	model         string
	uploadTimeout time.Duration
}

// NewReportClient creates a new Gemini report client.
func NewReportClient(cfg *config.GeminiConfig) *ReportClient {
	return &ReportClient{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		model:         cfg.Model,
		uploadTimeout: time.Duration(cfg.UploadTimeout) * time.Second,
	}
}

// IsConfigured returns true if the client has valid configuration.
func (c *ReportClient) IsConfigured() bool {
	return c.apiKey != ""
}

// GenerateReport produces an incident report for a completed analysis. It
// uploads the annotated video for multimodal grounding when possible and
// falls back to a text-only prompt when the upload path fails.
func (c *ReportClient) GenerateReport(ctx context.Context, videoPath string, result *model.AnalysisResult) (string, error) {
	prompt := buildReportPrompt(result)

	fileURI, err := c.uploadVideo(ctx, videoPath)
	if err == nil {
		fileURI, err = c.pollFileState(ctx, fileURI)
	}
	if err != nil {
		return c.generateContent(ctx, prompt, "")
	}
	return c.generateContent(ctx, prompt, fileURI)
}

type fileUploadResponse struct {
	File struct {
		Name  string `json:"name"`
		URI   string `json:"uri"`
		State string `json:"state"`
	} `json:"file"`
}

// uploadVideo pushes the annotated video to the Gemini file API and returns
// the file resource name.
func (c *ReportClient) uploadVideo(ctx context.Context, videoPath string) (string, error) {
	f, err := os.Open(videoPath)
	if err != nil {
		return "", fmt.Errorf("failed to open video: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(videoPath))
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("failed to copy video: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize form: %w", err)
	}

	url := fmt.Sprintf("%s/upload/v1beta/files?key=%s", c.baseURL, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("file upload error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var uploadResp fileUploadResponse
	if err := json.Unmarshal(respBody, &uploadResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return uploadResp.File.Name, nil
}

// pollFileState waits for the uploaded file to become ACTIVE, checking once
// per second up to the configured upload timeout.
func (c *ReportClient) pollFileState(ctx context.Context, fileName string) (string, error) {
	deadline := time.Now().Add(c.uploadTimeout)
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		state, uri, err := c.fileState(ctx, fileName)
		if err != nil {
			return "", err
		}
		switch state {
		case "ACTIVE":
			return uri, nil
		case "FAILED":
			return "", fmt.Errorf("remote video processing failed")
		}

		if time.Now().After(deadline) {
			return "", fmt.Errorf("video processing timed out after %s", c.uploadTimeout)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *ReportClient) fileState(ctx context.Context, fileName string) (state, uri string, err error) {
	url := fmt.Sprintf("%s/v1beta/%s?key=%s", c.baseURL, fileName, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("file state error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var file struct {
		Name  string `json:"name"`
		URI   string `json:"uri"`
		State string `json:"state"`
	}
	if err := json.Unmarshal(respBody, &file); err != nil {
		return "", "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return file.State, file.URI, nil
}

type generateContentRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"file_data,omitempty"`
}

type fileData struct {
	MimeType string `json:"mime_type"`
	FileURI  string `json:"file_uri"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// generateContent runs one generation request. An empty fileURI produces a
// text-only request.
func (c *ReportClient) generateContent(ctx context.Context, prompt, fileURI string) (string, error) {
	parts := []part{{Text: prompt}}
	if fileURI != "" {
		parts = append(parts, part{FileData: &fileData{MimeType: "video/mp4", FileURI: fileURI}})
	}

	reqBody := generateContentRequest{Contents: []content{{Parts: parts}}}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var genResp generateContentResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	return genResp.Candidates[0].Content.Parts[0].Text, nil
}

// buildReportPrompt summarizes the detection timeline for the model.
func buildReportPrompt(result *model.AnalysisResult) string {
	incidents := result.Incidents()

	var b strings.Builder
	b.WriteString("You are a security analyst. Write a concise incident report for the following automated violence-detection analysis of a surveillance video.\n\n")
	fmt.Fprintf(&b, "Total segments analyzed: %d\n", result.TotalSegments)
	fmt.Fprintf(&b, "Segments flagged as violent: %d\n", len(incidents))
	fmt.Fprintf(&b, "Detection threshold: %.2f\n\n", result.Threshold)

	if len(incidents) == 0 {
		b.WriteString("No violent activity was detected.\n")
	} else {
		b.WriteString("Flagged segments:\n")
		for _, inc := range incidents {
			fmt.Fprintf(&b, "- %s to %s (probability %.2f)\n", inc.StartTime, inc.EndTime, inc.FightProbability)
		}
	}

	b.WriteString("\nDescribe the overall risk level, the time ranges of concern, and recommended follow-up actions.")
	return b.String()
}

// FallbackReport produces a plain-text report from the analysis record alone,
// used when no report backend is configured or generation fails.
func FallbackReport(result *model.AnalysisResult) string {
	incidents := result.Incidents()

	var b strings.Builder
	b.WriteString("Automated Analysis Report\n")
	b.WriteString("=========================\n\n")
	fmt.Fprintf(&b, "Segments analyzed: %d\n", result.TotalSegments)
	fmt.Fprintf(&b, "Segments flagged: %d\n", len(incidents))
	fmt.Fprintf(&b, "Detection threshold: %.2f\n\n", result.Threshold)

	if len(incidents) == 0 {
		b.WriteString("No violent activity was detected in this video.\n")
		return b.String()
	}

	b.WriteString("Detected incidents:\n")
	for _, inc := range incidents {
		fmt.Fprintf(&b, "- %s to %s: probability %.2f\n", inc.StartTime, inc.EndTime, inc.FightProbability)
	}
	b.WriteString("\nReview the annotated video for the flagged time ranges.\n")
	return b.String()
}
