package dispatcher

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/morezero/textcipher/pkg/registry"
)

// WireResponse is the HTTP response body. Exactly one of EncodedText and
// DecodedText is set on success; Error is "<ErrorKind>: <message>" on failure.
type WireResponse struct {
	Success     bool    `json:"success"`
	EncodedText *string `json:"encodedText,omitempty"`
	DecodedText *string `json:"decodedText,omitempty"`
	Algorithm   string  `json:"algorithm,omitempty"`
	KeyUsed     string  `json:"keyUsed,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// ToWire renders a result for the HTTP boundary.
func ToWire(r *TransformResult, dir registry.Direction) *WireResponse {
	if !r.Success {
		return &WireResponse{Success: false, Error: FormatWireError(r.ErrorKind, r.Message)}
	}
	out := r.OutputText
	w := &WireResponse{Success: true, Algorithm: string(r.Algorithm), KeyUsed: string(r.KeyDisclosure)}
	if dir == registry.Decode {
		w.DecodedText = &out
	} else {
		w.EncodedText = &out
	}
	return w
}

// FromWire parses an HTTP response body back into a result. A body that is
// not a well-formed answer for dir is an error.
func FromWire(w *WireResponse, dir registry.Direction) (*TransformResult, error) {
	if w == nil {
		return nil, fmt.Errorf("dispatcher:wire - empty response")
	}
	if !w.Success {
		kind, msg, ok := ParseWireError(w.Error)
		if !ok {
			return nil, fmt.Errorf("dispatcher:wire - unclassified error %q", w.Error)
		}
		return Failed(kind, msg), nil
	}
	text := w.EncodedText
	if dir == registry.Decode {
		text = w.DecodedText
	}
	if text == nil {
		return nil, fmt.Errorf("dispatcher:wire - success response missing %s output", dir)
	}
	return Succeeded(registry.AlgorithmID(w.Algorithm), *text, registry.KeyDisclosure(w.KeyUsed)), nil
}

// FormatWireError renders a kind and message as a single prefixed string.
func FormatWireError(kind registry.ErrorKind, message string) string {
	return string(kind) + ": " + message
}

// ParseWireError recovers the kind from a FormatWireError string.
func ParseWireError(s string) (registry.ErrorKind, string, bool) {
	prefix, msg, found := strings.Cut(s, ": ")
	if !found {
		return "", "", false
	}
	kind := registry.ErrorKind(prefix)
	if !registry.IsBusinessKind(kind) {
		return "", "", false
	}
	return kind, msg, true
}

// HTTPStatus maps a result to its HTTP status code.
func HTTPStatus(r *TransformResult) int {
	if r.Success {
		return http.StatusOK
	}
	switch r.ErrorKind {
	case registry.ErrValidation, registry.ErrUnsupportedOperation:
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}
