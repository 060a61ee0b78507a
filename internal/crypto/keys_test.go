package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSecret(t *testing.T) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return base58.Encode(priv)
}

func TestKeypairFromBase58(t *testing.T) {
	secret := newTestSecret(t)

	kp, err := KeypairFromBase58(secret)
	require.NoError(t, err)
	assert.NotEmpty(t, kp.PublicKey())

	// Signature verifies against the public key.
	msg := []byte("transfer 1 SOL")
	sig, err := base58.Decode(kp.Sign(msg))
	require.NoError(t, err)
	pub, err := base58.Decode(kp.PublicKey())
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(ed25519.PublicKey(pub), msg, sig))
}

func TestKeypairFromBase58Rejects(t *testing.T) {
	_, err := KeypairFromBase58("not-base58-0OIl")
	require.Error(t, err)

	// Valid base58 but wrong length.
	short := base58.Encode([]byte{1, 2, 3})
	_, err = KeypairFromBase58(short)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "64-byte")
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	secret := newTestSecret(t)

	blob, err := EncryptKey(secret, "hunter2")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, secret, got)

	_, err = DecryptKey(blob, "wrong")
	require.Error(t, err)
}

func TestLoadKeypairFromEncryptedFile(t *testing.T) {
	secret := newTestSecret(t)
	blob, err := EncryptKey(secret, "pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	kp, err := LoadKeypair(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	require.NoError(t, err)

	direct, err := KeypairFromBase58(secret)
	require.NoError(t, err)
	assert.Equal(t, direct.PublicKey(), kp.PublicKey())
}

func TestLoadKeypairNoSource(t *testing.T) {
	_, err := LoadKeypair(KeyConfig{})
	require.Error(t, err)
}
