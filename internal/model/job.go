package model

import "time"

// Job is the unit of asynchronous analysis work. The record is the only state
// shared between a job's worker and concurrent status readers; workers mutate
// it through the analysis service, never directly, and the terminal
// transition into completed/failed happens exactly once.
type Job struct {
	ID          string          `json:"id"`
	Status      JobStatus       `json:"status"`
	VideoPath   string          `json:"videoPath"`
	Params      AnalysisParams  `json:"params"`
	Error       *string         `json:"error,omitempty"`
	Result      *AnalysisResult `json:"result,omitempty"`
	Report      string          `json:"report,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// IsDone reports whether the job reached a terminal state.
func (j *Job) IsDone() bool {
	return j.Status.IsTerminal()
}

// Clone returns a deep copy so status readers never alias the writer's record.
func (j *Job) Clone() *Job {
	c := *j
	if j.Error != nil {
		e := *j.Error
		c.Error = &e
	}
	if j.Params.Threshold != nil {
		th := *j.Params.Threshold
		c.Params.Threshold = &th
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.Result != nil {
		c.Result = j.Result.Clone()
	}
	return &c
}

// AnalysisParams tunes one analysis run. Threshold is a pointer because 0 is
// a valid value: nil means unset, an explicit 0 detects on any positive
// probability.
type AnalysisParams struct {
	SequenceLength  int      `json:"sequenceLength" validate:"omitempty,min=1"`
	Threshold       *float64 `json:"threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
	OutputFrameRate int      `json:"outputFrameRate" validate:"omitempty,min=1"`
}

// Parameter defaults, matching the upload form defaults.
const (
	DefaultSequenceLength  = 40
	DefaultThreshold       = 0.8
	DefaultOutputFrameRate = 30
)

// WithDefaults fills unset parameters.
func (p AnalysisParams) WithDefaults() AnalysisParams {
	if p.SequenceLength <= 0 {
		p.SequenceLength = DefaultSequenceLength
	}
	if p.Threshold == nil {
		d := DefaultThreshold
		p.Threshold = &d
	}
	if p.OutputFrameRate <= 0 {
		p.OutputFrameRate = DefaultOutputFrameRate
	}
	return p
}
