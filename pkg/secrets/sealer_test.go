package secrets

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer("correct horse battery staple")
	require.NoError(t, err)

	sealed, err := s.Seal("smtp-passwort")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, Prefix))
	assert.NotContains(t, sealed, "smtp-passwort")

	again, err := s.Seal("smtp-passwort")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per seal")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "smtp-passwort", plain)
}

func TestSealer_PassThrough(t *testing.T) {
	s, err := NewSealer(DevelopmentKey)
	require.NoError(t, err)

	empty, err := s.Seal("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	legacy, err := s.Open("plaintext from before sealing")
	require.NoError(t, err)
	assert.Equal(t, "plaintext from before sealing", legacy)

	sealed, err := s.Seal("x")
	require.NoError(t, err)
	twice, err := s.Seal(sealed)
	require.NoError(t, err)
	assert.Equal(t, sealed, twice)
}

func TestSealer_WrongKey(t *testing.T) {
	a, err := NewSealer(base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef")))
	require.NoError(t, err)
	b, err := NewSealer("another key")
	require.NoError(t, err)

	sealed, err := a.Seal("SG.key")
	require.NoError(t, err)

	_, err = b.Open(sealed)
	assert.ErrorIs(t, err, ErrOpen)

	_, err = a.Open(Prefix + "AAAA")
	assert.ErrorIs(t, err, ErrOpen)

	_, err = a.Open(Prefix + "not base64!")
	assert.Error(t, err)
}

func TestNewSealer_RejectsEmptyKey(t *testing.T) {
	_, err := NewSealer("  ")
	assert.Error(t, err)
}
