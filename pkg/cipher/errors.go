// Package cipher implements the text transformation primitives: shift cipher,
// Base64 transcoding, passphrase-based symmetric encryption and SHA-256 hashing.
//
// Every primitive is a pure function of its arguments. Failures are returned as
// errors wrapping ErrMalformedInput or ErrDecryptionFailed so callers can
// classify them with errors.Is.
package cipher

import "errors"

var (
	// ErrMalformedInput is returned when input is not in the encoding a primitive expects.
	ErrMalformedInput = errors.New("malformed input")
	// ErrDecryptionFailed is returned when a token cannot be decrypted under the given key.
	ErrDecryptionFailed = errors.New("decryption failed")
)
