package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/morezero/textcipher/pkg/registry"
)

const logPrefix = "dispatcher:dispatch"

const (
	// APIVersion is reported by the health method and checked by remote callers.
	APIVersion    = "1.0.0"
	healthMessage = "Encryption API is running"
	// isoMillis matches JavaScript's Date.toISOString.
	isoMillis = "2006-01-02T15:04:05.000Z07:00"
)

// Observer is called after every Transform with its outcome.
type Observer func(ctx context.Context, req *registry.TransformRequest, dir registry.Direction, res *TransformResult, elapsed time.Duration)

// Dispatcher applies registry transformations. It holds no mutable state and
// is shared by the remote service and the local fallback path.
type Dispatcher struct {
	registry *registry.Registry
	observer Observer
	now      func() time.Time
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(reg *registry.Registry) *Dispatcher {
	return &Dispatcher{registry: reg, now: time.Now}
}

// WithObserver returns a copy of d that reports every Transform to o.
func (d *Dispatcher) WithObserver(o Observer) *Dispatcher {
	cp := *d
	cp.observer = o
	return &cp
}

// Transform validates req, resolves its registry entry and applies the
// primitive for dir. Every outcome, including invalid input, is a result.
func (d *Dispatcher) Transform(ctx context.Context, req *registry.TransformRequest, dir registry.Direction) *TransformResult {
	if d.observer == nil {
		return d.transform(req, dir)
	}
	start := d.now()
	res := d.transform(req, dir)
	d.observer(ctx, req, dir, res, d.now().Sub(start))
	return res
}

func (d *Dispatcher) transform(req *registry.TransformRequest, dir registry.Direction) *TransformResult {
	if res := Validate(req); res != nil {
		return res
	}
	id, ok := registry.ParseAlgorithm(req.Algorithm)
	if !ok {
		return Failed(registry.ErrValidation, fmt.Sprintf("Unsupported algorithm: %s", req.Algorithm))
	}
	entry, ok := d.registry.Lookup(id)
	if !ok {
		return Failed(registry.ErrValidation, fmt.Sprintf("Unsupported algorithm: %s", req.Algorithm))
	}

	var prim registry.Primitive
	switch dir {
	case registry.Encode:
		prim = entry.Forward
	case registry.Decode:
		if entry.Inverse == nil {
			return Failed(registry.ErrUnsupportedOperation,
				fmt.Sprintf("%s is a one-way transform and cannot be decoded", id))
		}
		prim = entry.Inverse
	default:
		return Failed(registry.ErrValidation, fmt.Sprintf("Unknown direction: %s", dir))
	}

	params, disclosure := d.registry.Resolve(req.Options)
	out, err := prim(req.Text, params)
	if err != nil {
		slog.Debug(fmt.Sprintf("%s - %s %s failed: %v", logPrefix, dir, id, err))
		return FailedWith(registry.Classify(err))
	}

	if !entry.UsesKey {
		disclosure = ""
	}
	return Succeeded(id, out, disclosure)
}

// Validate returns the ValidationError result for a request that no path may
// transform, or nil. Text must be non-empty UTF-8 since both remote codecs
// rewrite invalid bytes.
func Validate(req *registry.TransformRequest) *TransformResult {
	if req == nil || req.Text == "" || req.Algorithm == "" {
		return Failed(registry.ErrValidation, "Text and algorithm are required")
	}
	if !utf8.ValidString(req.Text) {
		return Failed(registry.ErrValidation, "Text must be valid UTF-8")
	}
	return nil
}

// WithDefaults returns a copy of req with every option resolved against this
// dispatcher's configuration, plus the key disclosure that resolution implies.
// A remote given the copy uses the caller's defaults instead of its own.
func (d *Dispatcher) WithDefaults(req *registry.TransformRequest) (*registry.TransformRequest, registry.KeyDisclosure) {
	p, disclosure := d.registry.Resolve(req.Options)
	cp := *req
	cp.Options = registry.Options{ShiftAmount: &p.Shift, Key: p.Key}
	return &cp, disclosure
}

// Dispatch routes an envelope to the matching method and returns a response.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) *Response {
	slog.Debug(fmt.Sprintf("%s - method=%s id=%s", logPrefix, req.Method, req.ID))
	ctx = WithRequestID(ctx, req.ID)

	switch req.Method {
	case MethodEncode:
		return d.handleTransform(ctx, req, registry.Encode)
	case MethodDecode:
		return d.handleTransform(ctx, req, registry.Decode)
	case MethodHealth:
		return &Response{ID: req.ID, Ok: true, Result: d.Health()}
	case MethodAlgorithms:
		return &Response{ID: req.ID, Ok: true, Result: d.registry.Algorithms()}
	default:
		return errorResponse(req.ID, "METHOD_NOT_FOUND", fmt.Sprintf("Unknown method: %s", req.Method), false)
	}
}

func (d *Dispatcher) handleTransform(ctx context.Context, req *Request, dir registry.Direction) *Response {
	var input registry.TransformRequest
	if len(req.Params) == 0 {
		return errorResponse(req.ID, string(registry.ErrValidation), "Text and algorithm are required", false)
	}
	if err := json.Unmarshal(req.Params, &input); err != nil {
		return errorResponse(req.ID, string(registry.ErrValidation), fmt.Sprintf("Failed to parse %s params", dir), false)
	}
	return ToResponse(req.ID, d.Transform(ctx, &input, dir))
}

// HealthOutput is the liveness probe payload.
type HealthOutput struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
	APIVersion string `json:"apiVersion"`
}

// Health reports liveness.
func (d *Dispatcher) Health() *HealthOutput {
	return &HealthOutput{
		Success:    true,
		Message:    healthMessage,
		Timestamp:  d.now().UTC().Format(isoMillis),
		APIVersion: APIVersion,
	}
}

// Algorithms lists the registry entries.
func (d *Dispatcher) Algorithms() []registry.Descriptor {
	return d.registry.Algorithms()
}

func errorResponse(id, code, message string, retryable bool) *Response {
	return &Response{
		ID: id,
		Ok: false,
		Error: &ErrorDetail{
			Code:      code,
			Message:   message,
			Retryable: retryable,
		},
	}
}
