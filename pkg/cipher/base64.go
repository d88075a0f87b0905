package cipher

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Base64Encode returns the standard Base64 encoding of the UTF-8 bytes of text.
func Base64Encode(text string) string {
	return base64.StdEncoding.EncodeToString([]byte(text))
}

// Base64Decode reverses Base64Encode. Surrounding whitespace is ignored.
func Base64Decode(text string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
	if err != nil {
		return "", fmt.Errorf("%w: invalid Base64 string", ErrMalformedInput)
	}
	if !utf8.Valid(decoded) {
		return "", fmt.Errorf("%w: decoded bytes are not valid UTF-8", ErrMalformedInput)
	}
	return string(decoded), nil
}
