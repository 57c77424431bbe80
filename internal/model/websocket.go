package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage is the minimal envelope used for client ping/pong.
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage reports per-chunk analysis progress.
type WSProgressMessage struct {
	Type            string    `json:"type"`
	JobID           string    `json:"jobId"`
	ChunksProcessed int       `json:"chunksProcessed"`
	TotalChunks     int       `json:"totalChunks"`
	Status          JobStatus `json:"status"`
}

// WSCompleteMessage carries the finished analysis result.
type WSCompleteMessage struct {
	Type   string      `json:"type"`
	JobID  string      `json:"jobId"`
	Result interface{} `json:"result"`
}

// WSErrorMessage reports a job failure.
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

// WSError holds error details.
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
