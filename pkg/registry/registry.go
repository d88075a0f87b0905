package registry

import (
	"crypto/rand"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/morezero/textcipher/pkg/cipher"
)

const (
	defaultShift = 3
	// defaultKey is the demo passphrase; not a secret.
	defaultKey = "your-secret-key-32-chars-long!"
)

// Config holds registry configuration.
type Config struct {
	DefaultKey   string
	DefaultShift int
	// SaltSource feeds symmetric encryption salts. Nil means crypto/rand.
	// Other readers need not be safe for concurrent use; the registry
	// serialises reads from them.
	SaltSource io.Reader
}

// DefaultConfig returns the default registry configuration.
func DefaultConfig() Config {
	return Config{
		DefaultKey:   defaultKey,
		DefaultShift: defaultShift,
		SaltSource:   rand.Reader,
	}
}

// Params are the resolved options handed to a primitive.
type Params struct {
	Shift int
	Key   string
}

// Primitive is a single-direction transformation.
type Primitive func(text string, p Params) (string, error)

// Entry binds an algorithm to its forward and inverse primitives.
// A nil Inverse means the algorithm cannot be reversed.
type Entry struct {
	Algorithm   AlgorithmID
	Description string
	Forward     Primitive
	Inverse     Primitive
	UsesKey     bool
	UsesShift   bool
}

// Registry is the immutable algorithm table. It is safe for concurrent use.
type Registry struct {
	entries map[AlgorithmID]*Entry
	config  Config
}

// NewRegistry creates a Registry holding one entry per AlgorithmID.
func NewRegistry(cfg Config) *Registry {
	if cfg.DefaultKey == "" {
		cfg.DefaultKey = defaultKey
	}
	if cfg.DefaultShift == 0 {
		cfg.DefaultShift = defaultShift
	}
	if cfg.SaltSource == nil {
		cfg.SaltSource = rand.Reader
	}
	var salt io.Reader = cfg.SaltSource
	if salt != rand.Reader {
		salt = &lockedReader{r: salt}
	}

	entries := []*Entry{
		{
			Algorithm:   AlgorithmShift,
			Description: "Case-preserving shift cipher over A-Z and a-z",
			Forward:     func(text string, p Params) (string, error) { return cipher.Shift(text, p.Shift), nil },
			Inverse:     func(text string, p Params) (string, error) { return cipher.Shift(text, -p.Shift), nil },
			UsesShift:   true,
		},
		{
			Algorithm:   AlgorithmBase64,
			Description: "Standard Base64 transcoding of UTF-8 text",
			Forward:     func(text string, _ Params) (string, error) { return cipher.Base64Encode(text), nil },
			Inverse:     func(text string, _ Params) (string, error) { return cipher.Base64Decode(text) },
		},
		{
			Algorithm:   AlgorithmSymmetric,
			Description: "AES-256-CBC passphrase encryption (OpenSSL salted token)",
			Forward:     func(text string, p Params) (string, error) { return cipher.SymmetricEncrypt(text, p.Key, salt) },
			Inverse:     func(text string, p Params) (string, error) { return cipher.SymmetricDecrypt(text, p.Key) },
			UsesKey:     true,
		},
		{
			Algorithm:   AlgorithmHash,
			Description: "SHA-256 digest rendered as lowercase hex (one-way)",
			Forward:     func(text string, _ Params) (string, error) { return cipher.Hash(text), nil },
		},
	}

	r := &Registry{entries: make(map[AlgorithmID]*Entry, len(entries)), config: cfg}
	for _, e := range entries {
		r.entries[e.Algorithm] = e
	}
	return r
}

// Lookup returns the entry for id.
func (r *Registry) Lookup(id AlgorithmID) (*Entry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

// SupportsInverse reports whether id has an inverse primitive.
func (r *Registry) SupportsInverse(id AlgorithmID) bool {
	e, ok := r.entries[id]
	return ok && e.Inverse != nil
}

// Resolve merges caller options over the configured defaults.
func (r *Registry) Resolve(opts Options) (Params, KeyDisclosure) {
	p := Params{Shift: r.config.DefaultShift, Key: r.config.DefaultKey}
	if opts.ShiftAmount != nil {
		p.Shift = *opts.ShiftAmount
	}
	disclosure := KeyDefault
	if opts.Key != "" {
		p.Key = opts.Key
		disclosure = KeyProvided
	}
	return p, disclosure
}

// Algorithms lists the registry entries ordered by identifier.
func (r *Registry) Algorithms() []Descriptor {
	aliases := make(map[AlgorithmID][]string)
	for alias, id := range legacyAliases {
		aliases[id] = append(aliases[id], alias)
	}

	out := make([]Descriptor, 0, len(r.entries))
	for id, e := range r.entries {
		out = append(out, Descriptor{
			Algorithm:   id,
			Aliases:     aliases[id],
			Description: e.Description,
			Reversible:  e.Inverse != nil,
			UsesKey:     e.UsesKey,
			UsesShift:   e.UsesShift,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Algorithm < out[j].Algorithm })
	return out
}

// Classify translates a primitive error into a TransformError. The kinds
// are closed, so an internal fault such as an unreadable salt source is
// reported as MalformedInput with an "internal error" message.
func Classify(err error) *TransformError {
	var te *TransformError
	switch {
	case errors.As(err, &te):
		return te
	case errors.Is(err, cipher.ErrMalformedInput):
		return NewTransformError(ErrMalformedInput, err.Error())
	case errors.Is(err, cipher.ErrDecryptionFailed):
		return NewTransformError(ErrDecryptionFailed, err.Error())
	default:
		return NewTransformError(ErrMalformedInput, "internal error: "+err.Error())
	}
}

type lockedReader struct {
	mu sync.Mutex
	r  io.Reader
}

func (l *lockedReader) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return io.ReadFull(l.r, p)
}
