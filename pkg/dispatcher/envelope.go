// Package dispatcher applies transformations and routes COMMS envelopes to them.
package dispatcher

import (
	"context"
	"encoding/json"
)

// Envelope methods.
const (
	MethodEncode     = "encode"
	MethodDecode     = "decode"
	MethodHealth     = "health"
	MethodAlgorithms = "algorithms"
)

// Request is the JSON envelope for incoming COMMS requests.
type Request struct {
	ID     string             `json:"id"`
	Type   string             `json:"type"`
	Method string             `json:"method"`
	Params json.RawMessage    `json:"params"`
	Ctx    *InvocationContext `json:"ctx,omitempty"`
}

// Response is the JSON envelope for COMMS responses.
type Response struct {
	ID     string       `json:"id"`
	Ok     bool         `json:"ok"`
	Result interface{}  `json:"result,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail holds structured error information. For transform methods Code
// is a registry.ErrorKind.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// InvocationContext holds context from the caller.
type InvocationContext struct {
	RequestID     string `json:"requestId,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	Caller        string `json:"caller,omitempty"`
	TimeoutMs     int    `json:"timeoutMs,omitempty"`
}

// TransformOutput is the Result payload of a successful encode or decode.
type TransformOutput struct {
	OutputText    string `json:"outputText"`
	Algorithm     string `json:"algorithm"`
	KeyDisclosure string `json:"keyDisclosure,omitempty"`
}

type requestIDKey struct{}

// WithRequestID attaches a request ID to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID attached by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
