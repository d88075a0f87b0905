package events

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/textcipher/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// Subject overrides the base event subject (e.g. from EVENTS_SUBJECT).
	Subject string
}

// CommsPublisher publishes transform events to COMMS subjects.
type CommsPublisher struct {
	nc      *comms.Conn
	subject string
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	subject := commsutil.SubjectTransformed
	if opts != nil && opts.Subject != "" {
		subject = opts.Subject
	}
	return &CommsPublisher{nc: nc, subject: subject}
}

// PublishTransformed publishes a TransformedEvent to both the per-algorithm
// and the base event subjects.
func (p *CommsPublisher) PublishTransformed(_ context.Context, event *TransformedEvent) error {
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}

	granular := commsutil.BuildTransformedSubject(p.subject, event.Algorithm)
	if err := p.nc.Publish(granular, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, granular, err))
		return err
	}

	if err := p.nc.Publish(p.subject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, p.subject, err))
		return err
	}

	slog.Debug(fmt.Sprintf("%s - Published %s %s event (path=%s)", commsPublisherLogPrefix, event.Direction, event.Algorithm, event.Path))
	return nil
}
