package keygen

import (
	"bytes"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexToken = regexp.MustCompile(`^[0-9a-f]+$`)

func TestGenerateLengthAndAlphabet(t *testing.T) {
	for _, length := range []int{MinLength, DefaultLength, 48, MaxLength} {
		g, err := New(length)
		require.NoError(t, err)

		tok, err := g.Generate("hw-1", "alice")
		require.NoError(t, err)
		assert.Len(t, tok, length)
		assert.Regexp(t, hexToken, tok)
	}
}

func TestNewRejectsLengthOutOfRange(t *testing.T) {
	for _, length := range []int{0, MinLength - 1, MaxLength + 1} {
		_, err := New(length)
		assert.Error(t, err, "length %d", length)
	}
}

func TestGenerateUnique(t *testing.T) {
	g, err := New(DefaultLength)
	require.NoError(t, err)

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		tok, err := g.Generate("hw-1", "alice")
		require.NoError(t, err)
		_, dup := seen[tok]
		require.False(t, dup, "duplicate token %s", tok)
		seen[tok] = struct{}{}
	}
}

func TestGenerateDeterministicForFixedInputs(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entropy := bytes.Repeat([]byte{0x42}, entropyBytes)

	newGen := func(secret string) *Generator {
		g, err := New(DefaultLength,
			WithSecret(secret),
			WithRandom(bytes.NewReader(entropy)),
			WithNow(func() time.Time { return fixed }))
		require.NoError(t, err)
		return g
	}

	a, err := newGen("s3cret").Generate("hw-1", "alice")
	require.NoError(t, err)
	b, err := newGen("s3cret").Generate("hw-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := newGen("other").Generate("hw-1", "alice")
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "secret must change the token")

	d, err := newGen("s3cret").Generate("hw-2", "alice")
	require.NoError(t, err)
	assert.NotEqual(t, a, d, "hwid must change the token")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGenerateEntropyFailure(t *testing.T) {
	g, err := New(DefaultLength, WithRandom(failingReader{}))
	require.NoError(t, err)

	_, err = g.Generate("hw-1", "alice")
	assert.ErrorContains(t, err, "entropy exhausted")
}
