package model

import "time"

// ChunkPrediction is one timeline entry: the verdict for a contiguous run of
// at most sequenceLength frames. Field names follow the wire format consumed
// by the report layer.
type ChunkPrediction struct {
	ChunkStartFrame  int     `json:"chunk_start_frame"`
	ChunkEndFrame    int     `json:"chunk_end_frame"`
	StartTime        string  `json:"start_time"`
	EndTime          string  `json:"end_time"`
	FightProbability float64 `json:"fight_probability"`
	FightDetected    bool    `json:"fight_detected"`
}

// AnalysisResult is the output record of a completed run: the annotated video
// location, run parameters, aggregate counts, and the full per-chunk timeline.
type AnalysisResult struct {
	OutputVideoPath       string            `json:"output_video_path"`
	TotalFrames           int               `json:"total_frames"`
	SequenceLength        int               `json:"sequence_length"`
	Threshold             float64           `json:"threshold"`
	OutputFrameRate       int               `json:"output_frame_rate"`
	ProcessingTimeSeconds float64           `json:"processing_time_seconds"`
	TotalSegments         int               `json:"total_segments"`
	FightSegments         int               `json:"fight_segments"`
	Predictions           []ChunkPrediction `json:"predictions"`
	Error                 *string           `json:"error"`
}

// Clone returns a deep copy of the result.
func (r *AnalysisResult) Clone() *AnalysisResult {
	c := *r
	if r.Error != nil {
		e := *r.Error
		c.Error = &e
	}
	c.Predictions = make([]ChunkPrediction, len(r.Predictions))
	copy(c.Predictions, r.Predictions)
	return &c
}

// Incidents returns the positive-verdict timeline entries.
func (r *AnalysisResult) Incidents() []ChunkPrediction {
	var out []ChunkPrediction
	for _, p := range r.Predictions {
		if p.FightDetected {
			out = append(out, p)
		}
	}
	return out
}

// AnalyzeStartResponse acknowledges a submitted job.
type AnalyzeStartResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// JobStatusResponse is the non-blocking status snapshot.
type JobStatusResponse struct {
	JobID                 string     `json:"jobId"`
	Status                JobStatus  `json:"status"`
	Error                 *string    `json:"error,omitempty"`
	ProcessingTimeSeconds *float64   `json:"processingTimeSeconds,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	StartedAt             *time.Time `json:"startedAt,omitempty"`
	CompletedAt           *time.Time `json:"completedAt,omitempty"`
}

// JobReportResponse carries the generated incident report.
type JobReportResponse struct {
	JobID  string `json:"jobId"`
	Report string `json:"report"`
}
