package db

import "time"

// TransformRecord represents a row in the transform_audit table.
type TransformRecord struct {
	ID            string    `json:"id"`
	EventID       string    `json:"event_id"`
	RequestID     *string   `json:"request_id,omitempty"`
	Algorithm     string    `json:"algorithm"`
	Direction     string    `json:"direction"`
	Path          string    `json:"path"`
	Fallback      bool      `json:"fallback"`
	Success       bool      `json:"success"`
	ErrorKind     *string   `json:"error_kind,omitempty"`
	KeyDisclosure *string   `json:"key_disclosure,omitempty"`
	InputLength   int       `json:"input_length"`
	DurationMs    int64     `json:"duration_ms"`
	Created       time.Time `json:"created"`
}

// AlgorithmStats aggregates audit rows per algorithm and direction.
type AlgorithmStats struct {
	Algorithm     string  `json:"algorithm"`
	Direction     string  `json:"direction"`
	Total         int64   `json:"total"`
	Succeeded     int64   `json:"succeeded"`
	Failed        int64   `json:"failed"`
	Fallbacks     int64   `json:"fallbacks"`
	AvgDurationMs float64 `json:"avgDurationMs"`
}
