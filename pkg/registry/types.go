// Package registry maps algorithm identifiers to their cipher primitives.
package registry

import (
	"encoding/json"
	"strings"
)

// AlgorithmID identifies a transformation. The set is closed; adding an
// algorithm means adding a registry entry.
type AlgorithmID string

const (
	AlgorithmShift     AlgorithmID = "shift"
	AlgorithmBase64    AlgorithmID = "base64"
	AlgorithmSymmetric AlgorithmID = "symmetric"
	AlgorithmHash      AlgorithmID = "hash"
)

// legacyAliases are the identifiers older web clients send.
var legacyAliases = map[string]AlgorithmID{
	"caesar": AlgorithmShift,
	"aes":    AlgorithmSymmetric,
	"sha256": AlgorithmHash,
}

// ParseAlgorithm maps a boundary identifier (canonical or legacy alias, case
// insensitive) to its AlgorithmID.
func ParseAlgorithm(name string) (AlgorithmID, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch id := AlgorithmID(n); id {
	case AlgorithmShift, AlgorithmBase64, AlgorithmSymmetric, AlgorithmHash:
		return id, true
	}
	id, ok := legacyAliases[n]
	return id, ok
}

// Direction selects the forward or inverse primitive.
type Direction string

const (
	Encode Direction = "encode"
	Decode Direction = "decode"
)

// Options is the algorithm-specific option bag. All fields are optional.
type Options struct {
	// ShiftAmount defaults to Config.DefaultShift when nil.
	ShiftAmount *int `json:"shiftAmount,omitempty"`
	// Key defaults to Config.DefaultKey when empty.
	Key string `json:"key,omitempty"`
}

// UnmarshalJSON accepts the legacy "shift" field as an alias of "shiftAmount".
func (o *Options) UnmarshalJSON(data []byte) error {
	var raw struct {
		ShiftAmount *int   `json:"shiftAmount"`
		Shift       *int   `json:"shift"`
		Key         string `json:"key"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.ShiftAmount = raw.ShiftAmount
	if o.ShiftAmount == nil {
		o.ShiftAmount = raw.Shift
	}
	o.Key = raw.Key
	return nil
}

// WithShift returns Options carrying a shift amount.
func WithShift(n int) Options {
	return Options{ShiftAmount: &n}
}

// TransformRequest is a single transformation call.
type TransformRequest struct {
	Text      string  `json:"text"`
	Algorithm string  `json:"algorithm"`
	Options   Options `json:"options,omitempty"`
}

// KeyDisclosure reports whether a key-consuming algorithm used the caller's key.
type KeyDisclosure string

const (
	KeyProvided KeyDisclosure = "provided"
	KeyDefault  KeyDisclosure = "default"
)

// ErrorKind classifies a failed transformation.
type ErrorKind string

const (
	ErrValidation           ErrorKind = "ValidationError"
	ErrUnsupportedOperation ErrorKind = "UnsupportedOperation"
	ErrMalformedInput       ErrorKind = "MalformedInput"
	ErrDecryptionFailed     ErrorKind = "DecryptionFailed"
	// ErrTransportFailure never reaches a caller; the executor recovers it locally.
	ErrTransportFailure ErrorKind = "TransportFailure"
)

// BusinessKinds are the kinds a dispatcher may report.
var BusinessKinds = []ErrorKind{ErrValidation, ErrUnsupportedOperation, ErrMalformedInput, ErrDecryptionFailed}

// IsBusinessKind reports whether k is one of BusinessKinds.
func IsBusinessKind(k ErrorKind) bool {
	for _, b := range BusinessKinds {
		if b == k {
			return true
		}
	}
	return false
}

// TransformError is a classified transformation failure.
type TransformError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *TransformError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// NewTransformError creates a new TransformError.
func NewTransformError(kind ErrorKind, message string) *TransformError {
	return &TransformError{Kind: kind, Message: message}
}

// Descriptor describes a registry entry for listings.
type Descriptor struct {
	Algorithm   AlgorithmID `json:"algorithm"`
	Aliases     []string    `json:"aliases,omitempty"`
	Description string      `json:"description"`
	Reversible  bool        `json:"reversible"`
	UsesKey     bool        `json:"usesKey"`
	UsesShift   bool        `json:"usesShift"`
}
