package dispatcher

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/morezero/textcipher/pkg/cipher"
	"github.com/morezero/textcipher/pkg/registry"
)

const dispatcherTestPrefix = "dispatcher:dispatcher_test"

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(registry.NewRegistry(registry.DefaultConfig()))
}

func TestTransform_ShiftEncode(t *testing.T) {
	d := newTestDispatcher()

	res := d.Transform(context.Background(), &registry.TransformRequest{
		Text:      "Attack at dawn",
		Algorithm: "shift",
		Options:   registry.WithShift(3),
	}, registry.Encode)

	if !res.Success {
		t.Fatalf("%s - expected success, got %+v", dispatcherTestPrefix, res)
	}
	if res.OutputText != "Dwwdfn dw gdzq" {
		t.Errorf("%s - OutputText = %q, want %q", dispatcherTestPrefix, res.OutputText, "Dwwdfn dw gdzq")
	}
	if res.Algorithm != registry.AlgorithmShift {
		t.Errorf("%s - Algorithm = %q, want shift", dispatcherTestPrefix, res.Algorithm)
	}
	if res.KeyDisclosure != "" {
		t.Errorf("%s - shift must not report key disclosure, got %q", dispatcherTestPrefix, res.KeyDisclosure)
	}
}

func TestTransform_DefaultShiftAndLegacyAlias(t *testing.T) {
	d := newTestDispatcher()

	res := d.Transform(context.Background(), &registry.TransformRequest{Text: "abc", Algorithm: "caesar"}, registry.Encode)
	if !res.Success || res.OutputText != "def" {
		t.Fatalf("%s - expected default shift of 3, got %+v", dispatcherTestPrefix, res)
	}
	if res.Algorithm != registry.AlgorithmShift {
		t.Errorf("%s - alias should resolve to shift, got %q", dispatcherTestPrefix, res.Algorithm)
	}
}

func TestTransform_Validation(t *testing.T) {
	d := newTestDispatcher()

	tests := []struct {
		name string
		req  *registry.TransformRequest
		dir  registry.Direction
	}{
		{"nil request", nil, registry.Encode},
		{"empty text", &registry.TransformRequest{Algorithm: "base64"}, registry.Encode},
		{"missing algorithm", &registry.TransformRequest{Text: "hi"}, registry.Encode},
		{"unknown algorithm", &registry.TransformRequest{Text: "hi", Algorithm: "rot47"}, registry.Decode},
		{"unknown direction", &registry.TransformRequest{Text: "hi", Algorithm: "base64"}, registry.Direction("sideways")},
		{"invalid utf-8 hash", &registry.TransformRequest{Text: "\xff\xfe", Algorithm: "hash"}, registry.Encode},
		{"invalid utf-8 base64", &registry.TransformRequest{Text: "\xff", Algorithm: "base64"}, registry.Encode},
		{"invalid utf-8 shift decode", &registry.TransformRequest{Text: "ab\xc3", Algorithm: "shift"}, registry.Decode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := d.Transform(context.Background(), tt.req, tt.dir)
			if res.Success {
				t.Fatalf("%s - expected failure", dispatcherTestPrefix)
			}
			if res.ErrorKind != registry.ErrValidation {
				t.Errorf("%s - ErrorKind = %s, want ValidationError", dispatcherTestPrefix, res.ErrorKind)
			}
			if res.OutputText != "" || res.Algorithm != "" {
				t.Errorf("%s - failure must not carry success fields: %+v", dispatcherTestPrefix, res)
			}
		})
	}
}

func TestTransform_HashDecodeUnsupported(t *testing.T) {
	d := newTestDispatcher()
	digest := cipher.Hash("Attack at dawn")

	res := d.Transform(context.Background(), &registry.TransformRequest{Text: digest, Algorithm: "hash"}, registry.Decode)
	if res.Success {
		t.Fatalf("%s - decoding a hash must fail", dispatcherTestPrefix)
	}
	if res.ErrorKind != registry.ErrUnsupportedOperation {
		t.Errorf("%s - ErrorKind = %s, want UnsupportedOperation", dispatcherTestPrefix, res.ErrorKind)
	}
}

func TestTransform_HashEncode(t *testing.T) {
	d := newTestDispatcher()

	res := d.Transform(context.Background(), &registry.TransformRequest{Text: "hello", Algorithm: "sha256"}, registry.Encode)
	if !res.Success {
		t.Fatalf("%s - expected success, got %+v", dispatcherTestPrefix, res)
	}
	if res.OutputText != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Errorf("%s - unexpected digest %s", dispatcherTestPrefix, res.OutputText)
	}
}

func TestTransform_Base64MalformedInput(t *testing.T) {
	d := newTestDispatcher()

	res := d.Transform(context.Background(), &registry.TransformRequest{Text: "@@not-base64@@", Algorithm: "base64"}, registry.Decode)
	if res.Success || res.ErrorKind != registry.ErrMalformedInput {
		t.Fatalf("%s - expected MalformedInput, got %+v", dispatcherTestPrefix, res)
	}
	if res.Message == "" {
		t.Errorf("%s - expected a human readable message", dispatcherTestPrefix)
	}
}

func TestTransform_SymmetricKeyDisclosure(t *testing.T) {
	d := NewDispatcher(registry.NewRegistry(registry.Config{
		DefaultKey: "process-demo-key",
		SaltSource: bytes.NewReader(bytes.Repeat([]byte{7}, 16)),
	}))
	ctx := context.Background()

	withDefault := d.Transform(ctx, &registry.TransformRequest{Text: "secret", Algorithm: "symmetric"}, registry.Encode)
	if !withDefault.Success || withDefault.KeyDisclosure != registry.KeyDefault {
		t.Fatalf("%s - expected default key disclosure, got %+v", dispatcherTestPrefix, withDefault)
	}
	if strings.Contains(withDefault.OutputText, "process-demo-key") || strings.Contains(withDefault.Message, "process-demo-key") {
		t.Errorf("%s - default key leaked into result", dispatcherTestPrefix)
	}

	withKey := d.Transform(ctx, &registry.TransformRequest{
		Text: "secret", Algorithm: "aes", Options: registry.Options{Key: "caller-key"},
	}, registry.Encode)
	if !withKey.Success || withKey.KeyDisclosure != registry.KeyProvided {
		t.Fatalf("%s - expected provided key disclosure, got %+v", dispatcherTestPrefix, withKey)
	}
}

func TestTransform_SymmetricRoundTripAndWrongKey(t *testing.T) {
	d := NewDispatcher(registry.NewRegistry(registry.Config{
		SaltSource: bytes.NewReader([]byte{1, 2, 3, 4, 5, 6, 7, 8}),
	}))
	ctx := context.Background()

	enc := d.Transform(ctx, &registry.TransformRequest{Text: "Attack at dawn", Algorithm: "symmetric"}, registry.Encode)
	if !enc.Success {
		t.Fatalf("%s - encrypt failed: %+v", dispatcherTestPrefix, enc)
	}

	dec := d.Transform(ctx, &registry.TransformRequest{Text: enc.OutputText, Algorithm: "symmetric"}, registry.Decode)
	if !dec.Success || dec.OutputText != "Attack at dawn" {
		t.Fatalf("%s - decrypt = %+v", dispatcherTestPrefix, dec)
	}

	wrong := d.Transform(ctx, &registry.TransformRequest{
		Text: enc.OutputText, Algorithm: "symmetric", Options: registry.Options{Key: "not-the-key"},
	}, registry.Decode)
	if wrong.Success || wrong.ErrorKind != registry.ErrDecryptionFailed {
		t.Fatalf("%s - expected DecryptionFailed, got %+v", dispatcherTestPrefix, wrong)
	}

	garbage := d.Transform(ctx, &registry.TransformRequest{Text: "definitely not a token", Algorithm: "symmetric"}, registry.Decode)
	if garbage.Success || garbage.ErrorKind != registry.ErrDecryptionFailed {
		t.Fatalf("%s - expected DecryptionFailed for malformed token, got %+v", dispatcherTestPrefix, garbage)
	}
}

func TestTransform_RoundTripAllReversible(t *testing.T) {
	d := newTestDispatcher()
	ctx := context.Background()

	for _, alg := range []string{"shift", "base64", "symmetric"} {
		for _, text := range []string{"Attack at dawn", "Hello 世界", "x"} {
			opts := registry.WithShift(-29)
			opts.Key = "round-trip"
			enc := d.Transform(ctx, &registry.TransformRequest{Text: text, Algorithm: alg, Options: opts}, registry.Encode)
			if !enc.Success {
				t.Fatalf("%s - %s encode failed: %+v", dispatcherTestPrefix, alg, enc)
			}
			dec := d.Transform(ctx, &registry.TransformRequest{Text: enc.OutputText, Algorithm: alg, Options: opts}, registry.Decode)
			if !dec.Success || dec.OutputText != text {
				t.Errorf("%s - %s round trip = %+v, want %q", dispatcherTestPrefix, alg, dec, text)
			}
		}
	}
}

func TestHealth(t *testing.T) {
	d := newTestDispatcher()
	d.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 6_000_000, time.UTC) }

	h := d.Health()
	if !h.Success {
		t.Error("dispatcher:dispatcher_test - health should report success")
	}
	if h.Timestamp != "2025-01-02T03:04:05.006Z" {
		t.Errorf("dispatcher:dispatcher_test - Timestamp = %q", h.Timestamp)
	}
	if h.APIVersion != APIVersion {
		t.Errorf("dispatcher:dispatcher_test - APIVersion = %q", h.APIVersion)
	}
}

func TestWithObserver(t *testing.T) {
	type call struct {
		dir       registry.Direction
		kind      registry.ErrorKind
		requestID string
	}
	var calls []call

	base := newTestDispatcher()
	observed := base.WithObserver(func(ctx context.Context, _ *registry.TransformRequest, dir registry.Direction, res *TransformResult, elapsed time.Duration) {
		if elapsed < 0 {
			t.Errorf("%s - negative elapsed %v", dispatcherTestPrefix, elapsed)
		}
		calls = append(calls, call{dir: dir, kind: res.ErrorKind, requestID: RequestIDFromContext(ctx)})
	})

	observed.Transform(context.Background(), &registry.TransformRequest{Text: "hi", Algorithm: "base64"}, registry.Encode)
	observed.Dispatch(context.Background(), &Request{
		ID:     "env-7",
		Method: MethodDecode,
		Params: []byte(`{"text":"abc","algorithm":"hash"}`),
	})
	base.Transform(context.Background(), &registry.TransformRequest{Text: "hi", Algorithm: "base64"}, registry.Encode)

	if len(calls) != 2 {
		t.Fatalf("%s - expected 2 observed calls, got %d", dispatcherTestPrefix, len(calls))
	}
	if calls[0].dir != registry.Encode || calls[0].kind != "" || calls[0].requestID != "" {
		t.Errorf("%s - unexpected first call %+v", dispatcherTestPrefix, calls[0])
	}
	if calls[1].dir != registry.Decode || calls[1].kind != registry.ErrUnsupportedOperation || calls[1].requestID != "env-7" {
		t.Errorf("%s - unexpected second call %+v", dispatcherTestPrefix, calls[1])
	}
}

func TestValidate(t *testing.T) {
	if res := Validate(&registry.TransformRequest{Text: "Hello 世界", Algorithm: "anything"}); res != nil {
		t.Errorf("%s - valid text rejected: %+v", dispatcherTestPrefix, res)
	}
	res := Validate(&registry.TransformRequest{Text: "\xff", Algorithm: "hash"})
	if res == nil || res.ErrorKind != registry.ErrValidation || !strings.Contains(res.Message, "UTF-8") {
		t.Errorf("%s - invalid UTF-8 = %+v, want ValidationError", dispatcherTestPrefix, res)
	}
}

func TestWithDefaults(t *testing.T) {
	d := NewDispatcher(registry.NewRegistry(registry.Config{DefaultKey: "client-key", DefaultShift: 7}))

	req := &registry.TransformRequest{Text: "abc", Algorithm: "symmetric"}
	got, disclosure := d.WithDefaults(req)
	if got == req {
		t.Fatalf("%s - WithDefaults must return a copy", dispatcherTestPrefix)
	}
	if got.Options.Key != "client-key" || got.Options.ShiftAmount == nil || *got.Options.ShiftAmount != 7 {
		t.Errorf("%s - resolved options = %+v", dispatcherTestPrefix, got.Options)
	}
	if disclosure != registry.KeyDefault {
		t.Errorf("%s - disclosure = %s, want default", dispatcherTestPrefix, disclosure)
	}
	if req.Options.Key != "" || req.Options.ShiftAmount != nil {
		t.Errorf("%s - original request mutated: %+v", dispatcherTestPrefix, req.Options)
	}

	zero := registry.WithShift(0)
	zero.Key = "mine"
	got, disclosure = d.WithDefaults(&registry.TransformRequest{Text: "abc", Algorithm: "shift", Options: zero})
	if *got.Options.ShiftAmount != 0 || got.Options.Key != "mine" || disclosure != registry.KeyProvided {
		t.Errorf("%s - explicit options not kept: %+v %s", dispatcherTestPrefix, got.Options, disclosure)
	}
}
