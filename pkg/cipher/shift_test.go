package cipher

import "testing"

const shiftTestPrefix = "cipher:shift_test"

func TestShift_KnownVectors(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		shift int
		want  string
	}{
		{"classic", "Attack at dawn", 3, "Dwwdfn dw gdzq"},
		{"wrap upper", "XYZ", 3, "ABC"},
		{"wrap lower", "xyz", 3, "abc"},
		{"negative", "Dwwdfn dw gdzq", -3, "Attack at dawn"},
		{"full cycle", "Hello", 26, "Hello"},
		{"beyond alphabet", "abc", 29, "def"},
		{"large negative", "abc", -55, "xyz"},
		{"zero", "Zebra", 0, "Zebra"},
		{"non letters untouched", "123 !?-_ é", 7, "123 !?-_ é"},
		{"mixed", "Go 1.22, ok?", 13, "Tb 1.22, bx?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Shift(tt.text, tt.shift)
			if got != tt.want {
				t.Errorf("%s - Shift(%q, %d) = %q, want %q", shiftTestPrefix, tt.text, tt.shift, got, tt.want)
			}
		})
	}
}

func TestShift_RoundTrip(t *testing.T) {
	texts := []string{"", "Attack at dawn", "The Quick Brown Fox Jumps Over The Lazy Dog", "zZaA", "mixed 123 ünïcode"}
	for _, text := range texts {
		for shift := -60; shift <= 60; shift++ {
			encoded := Shift(text, shift)
			if got := Shift(encoded, -shift); got != text {
				t.Fatalf("%s - round trip with shift %d: got %q, want %q", shiftTestPrefix, shift, got, text)
			}
		}
	}
}

func TestShift_PreservesLengthAndCase(t *testing.T) {
	text := "AbCdEfGhIjKlMnOpQrStUvWxYz"
	got := Shift(text, 11)
	if len(got) != len(text) {
		t.Fatalf("%s - length changed: %d vs %d", shiftTestPrefix, len(got), len(text))
	}
	for i := range text {
		upperIn := text[i] >= 'A' && text[i] <= 'Z'
		upperOut := got[i] >= 'A' && got[i] <= 'Z'
		if upperIn != upperOut {
			t.Errorf("%s - case changed at %d: %q -> %q", shiftTestPrefix, i, text[i], got[i])
		}
	}
}
