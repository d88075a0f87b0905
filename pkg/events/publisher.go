package events

import (
	"context"
	"errors"
)

// EventPublisher is the interface for publishing transform events.
type EventPublisher interface {
	PublishTransformed(ctx context.Context, event *TransformedEvent) error
}

// NoOpPublisher is an EventPublisher that does nothing (for in-process usage without events).
type NoOpPublisher struct{}

// PublishTransformed is a no-op.
func (p *NoOpPublisher) PublishTransformed(_ context.Context, _ *TransformedEvent) error {
	return nil
}

// CallbackPublisher is an EventPublisher that calls a callback function (for testing).
type CallbackPublisher struct {
	callback func(ctx context.Context, event *TransformedEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *TransformedEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// PublishTransformed calls the callback.
func (p *CallbackPublisher) PublishTransformed(ctx context.Context, event *TransformedEvent) error {
	return p.callback(ctx, event)
}

// FanoutPublisher forwards each event to every wrapped publisher. All
// publishers are called even if one fails; the errors are joined.
type FanoutPublisher struct {
	publishers []EventPublisher
}

// NewFanoutPublisher creates a FanoutPublisher. Nil publishers are skipped.
func NewFanoutPublisher(pubs ...EventPublisher) *FanoutPublisher {
	f := &FanoutPublisher{}
	for _, p := range pubs {
		if p != nil {
			f.publishers = append(f.publishers, p)
		}
	}
	return f
}

// PublishTransformed forwards the event.
func (f *FanoutPublisher) PublishTransformed(ctx context.Context, event *TransformedEvent) error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.PublishTransformed(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
