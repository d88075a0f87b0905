package cipher

import "strings"

const alphabetSize = 26

// Shift moves every ASCII letter shift positions forward within its own
// case-preserving alphabet. Other characters pass through unchanged.
// Negative and out-of-range shifts wrap modulo 26, so Shift(Shift(t, s), -s) == t.
func Shift(text string, shift int) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z':
			return rotate(r, 'A', shift)
		case r >= 'a' && r <= 'z':
			return rotate(r, 'a', shift)
		default:
			return r
		}
	}, text)
}

func rotate(r, base rune, shift int) rune {
	offset := ((int(r-base)+shift)%alphabetSize + alphabetSize) % alphabetSize
	return base + rune(offset)
}
