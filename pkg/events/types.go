// Package events defines transform execution events and their publishers.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Execution paths.
const (
	PathRemote = "remote"
	PathLocal  = "local"
)

// TransformedEvent is emitted once per executed transformation. It never
// carries the input text, the output text or the key.
type TransformedEvent struct {
	ID            string `json:"id"`
	RequestID     string `json:"requestId,omitempty"`
	Algorithm     string `json:"algorithm"`
	Direction     string `json:"direction"`
	Path          string `json:"path"`
	Fallback      bool   `json:"fallback"`
	Success       bool   `json:"success"`
	ErrorKind     string `json:"errorKind,omitempty"`
	KeyDisclosure string `json:"keyDisclosure,omitempty"`
	InputLength   int    `json:"inputLength"`
	DurationMs    int64  `json:"durationMs"`
	Timestamp     string `json:"timestamp"`
}

// NewTransformedEvent creates an event with a fresh ID and the current time.
func NewTransformedEvent(algorithm, direction, path string) *TransformedEvent {
	return &TransformedEvent{
		ID:        uuid.NewString(),
		Algorithm: algorithm,
		Direction: direction,
		Path:      path,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}
