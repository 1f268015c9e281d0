// Package keygen produces access key tokens.
//
// Tokens are an HMAC-SHA256 over 32 bytes of crypto/rand plus the requesting
// identity and timestamp, hex-encoded and truncated to the configured length.
package keygen

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

const (
	// DefaultLength is the token length in hex characters.
	DefaultLength = 32
	// MinLength and MaxLength bound the configurable token length. 64 hex
	// characters is the full SHA-256 digest.
	MinLength = 16
	MaxLength = 64

	entropyBytes = 32
)

// Generator creates tokens. The zero value is not usable; use New.
type Generator struct {
	secret []byte
	length int
	rand   io.Reader
	now    func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithSecret sets the HMAC key mixed into every token.
func WithSecret(secret string) Option {
	return func(g *Generator) { g.secret = []byte(secret) }
}

// WithRandom replaces the entropy source.
func WithRandom(r io.Reader) Option {
	return func(g *Generator) { g.rand = r }
}

// WithNow replaces the time source mixed into the digest.
func WithNow(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// New returns a Generator producing tokens of the given length.
func New(length int, opts ...Option) (*Generator, error) {
	if length < MinLength || length > MaxLength {
		return nil, fmt.Errorf("key length must be between %d and %d, got %d", MinLength, MaxLength, length)
	}
	g := &Generator{
		length: length,
		rand:   rand.Reader,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Length returns the token length in characters.
func (g *Generator) Length() int { return g.length }

// Generate returns a new lowercase hex token. It fails only when the entropy
// source fails.
func (g *Generator) Generate(hwid, username string) (string, error) {
	buf := make([]byte, entropyBytes)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return "", fmt.Errorf("read entropy: %w", err)
	}

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(g.now().UnixNano()))

	mac := hmac.New(sha256.New, g.secret)
	mac.Write(buf)
	mac.Write([]byte(hwid))
	mac.Write([]byte{0})
	mac.Write([]byte(username))
	mac.Write(ts[:])

	return hex.EncodeToString(mac.Sum(nil))[:g.length], nil
}
