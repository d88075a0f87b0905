package db

import (
	"context"
	"fmt"

	"github.com/morezero/textcipher/pkg/events"
)

// AuditStore is the subset of Repository used by AuditPublisher.
type AuditStore interface {
	InsertTransformRecord(ctx context.Context, params InsertTransformParams) (*TransformRecord, error)
}

// AuditPublisher writes transform events to the audit log.
type AuditPublisher struct {
	store AuditStore
}

// NewAuditPublisher creates a new AuditPublisher.
func NewAuditPublisher(store AuditStore) *AuditPublisher {
	return &AuditPublisher{store: store}
}

// PublishTransformed inserts one audit row for event.
func (p *AuditPublisher) PublishTransformed(ctx context.Context, event *events.TransformedEvent) error {
	_, err := p.store.InsertTransformRecord(ctx, ToInsertParams(event))
	if err != nil {
		return fmt.Errorf("db:audit_publisher - failed to record %s event: %w", event.ID, err)
	}
	return nil
}

// ToInsertParams maps an event onto an audit row.
func ToInsertParams(event *events.TransformedEvent) InsertTransformParams {
	return InsertTransformParams{
		EventID:       event.ID,
		RequestID:     event.RequestID,
		Algorithm:     event.Algorithm,
		Direction:     event.Direction,
		Path:          event.Path,
		Fallback:      event.Fallback,
		Success:       event.Success,
		ErrorKind:     event.ErrorKind,
		KeyDisclosure: event.KeyDisclosure,
		InputLength:   event.InputLength,
		DurationMs:    event.DurationMs,
	}
}
