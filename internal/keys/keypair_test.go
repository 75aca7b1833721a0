package keys

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndRoundTripFile(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "wallet", "id.json")
	require.NoError(t, WriteKeypairFile(path, kp))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadKeypairFile(path)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey(), loaded.PublicKey())
}

func TestFromBase58(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	parsed, err := Parse(kp.Base58())
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey(), parsed.PublicKey())
}

func TestFromBytes_Rejects(t *testing.T) {
	_, err := FromBytes(make([]byte, 10))
	assert.ErrorIs(t, err, ErrInvalidKeypair)

	kp, err := Generate()
	require.NoError(t, err)

	tampered := make([]byte, 64)
	copy(tampered, *kp.PrivateKey())
	other, err := Generate()
	require.NoError(t, err)
	pub := other.PublicKey()
	copy(tampered[32:], pub[:])

	_, err = FromBytes(tampered)
	assert.ErrorIs(t, err, ErrInvalidKeypair)
}

func TestParse_JSONOutOfRange(t *testing.T) {
	_, err := Parse("[256, 1, 2]")
	assert.ErrorIs(t, err, ErrInvalidKeypair)
}

func TestSigners(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	s := NewSigners(a, Keypair{})
	assert.Len(t, s, 1)
	assert.NotNil(t, s.Get(a.PublicKey()))
	assert.Nil(t, s.Get(b.PublicKey()))
}
