package dispatcher

import (
	"encoding/json"
	"fmt"

	"github.com/morezero/textcipher/pkg/registry"
)

// TransformResult is the single response shape of a transformation. Build it
// with Succeeded or Failed; a result is never partially successful.
type TransformResult struct {
	Success       bool                   `json:"success"`
	OutputText    string                 `json:"outputText,omitempty"`
	Algorithm     registry.AlgorithmID   `json:"algorithm,omitempty"`
	KeyDisclosure registry.KeyDisclosure `json:"keyDisclosure,omitempty"`
	ErrorKind     registry.ErrorKind     `json:"errorKind,omitempty"`
	Message       string                 `json:"message,omitempty"`
}

// Succeeded builds a success result.
func Succeeded(alg registry.AlgorithmID, output string, disclosure registry.KeyDisclosure) *TransformResult {
	return &TransformResult{Success: true, OutputText: output, Algorithm: alg, KeyDisclosure: disclosure}
}

// Failed builds a failure result.
func Failed(kind registry.ErrorKind, message string) *TransformResult {
	return &TransformResult{Success: false, ErrorKind: kind, Message: message}
}

// FailedWith builds a failure result from a classified error.
func FailedWith(err *registry.TransformError) *TransformResult {
	return Failed(err.Kind, err.Message)
}

// Err returns the failure as a TransformError, or nil on success.
func (r *TransformResult) Err() *registry.TransformError {
	if r.Success {
		return nil
	}
	return registry.NewTransformError(r.ErrorKind, r.Message)
}

// Equivalent reports whether two results have the same classification, output and kind.
func (r *TransformResult) Equivalent(o *TransformResult) bool {
	if r == nil || o == nil {
		return r == o
	}
	return *r == *o
}

// ToResponse wraps a result in a COMMS envelope.
func ToResponse(id string, r *TransformResult) *Response {
	if !r.Success {
		return &Response{
			ID: id,
			Ok: false,
			Error: &ErrorDetail{
				Code:    string(r.ErrorKind),
				Message: r.Message,
			},
		}
	}
	return &Response{
		ID: id,
		Ok: true,
		Result: &TransformOutput{
			OutputText:    r.OutputText,
			Algorithm:     string(r.Algorithm),
			KeyDisclosure: string(r.KeyDisclosure),
		},
	}
}

type rawResponse struct {
	ID     string          `json:"id"`
	Ok     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorDetail    `json:"error,omitempty"`
}

// DecodeTransformResponse turns an encoded envelope back into a TransformResult.
// Any envelope that is not a well-formed transform answer (undecodable, unknown
// error code, missing result) is reported as an error.
func DecodeTransformResponse(data []byte) (*TransformResult, error) {
	var raw rawResponse
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("dispatcher:result - undecodable response: %w", err)
	}
	if !raw.Ok {
		if raw.Error == nil {
			return nil, fmt.Errorf("dispatcher:result - failure response without error detail")
		}
		kind := registry.ErrorKind(raw.Error.Code)
		if !registry.IsBusinessKind(kind) {
			return nil, fmt.Errorf("dispatcher:result - non-transform error %s: %s", raw.Error.Code, raw.Error.Message)
		}
		return Failed(kind, raw.Error.Message), nil
	}
	if len(raw.Result) == 0 {
		return nil, fmt.Errorf("dispatcher:result - success response without result")
	}
	var out TransformOutput
	if err := json.Unmarshal(raw.Result, &out); err != nil {
		return nil, fmt.Errorf("dispatcher:result - undecodable result: %w", err)
	}
	return Succeeded(registry.AlgorithmID(out.Algorithm), out.OutputText, registry.KeyDisclosure(out.KeyDisclosure)), nil
}
