package cipher

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashHexLength is the length of a Hash digest.
const HashHexLength = sha256.Size * 2

// Hash returns the SHA-256 digest of the UTF-8 bytes of text as lowercase hex.
// There is no inverse.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
