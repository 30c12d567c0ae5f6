package sshutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func newKey(t *testing.T, passphrase string) []byte {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "test")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "test", []byte(passphrase))
	}
	require.NoError(t, err)
	return pem.EncodeToMemory(block)
}

func TestParsePrivateKey(t *testing.T) {
	info, err := ParsePrivateKey(newKey(t, ""))
	require.NoError(t, err)
	assert.Equal(t, ssh.KeyAlgoED25519, info.Type)
	assert.True(t, strings.HasPrefix(info.Fingerprint, "SHA256:"))
}

func TestParsePrivateKey_Encrypted(t *testing.T) {
	_, err := ParsePrivateKey(newKey(t, "hunter2"))
	var enc *EncryptedKeyError
	require.ErrorAs(t, err, &enc)
	assert.Contains(t, enc.Suggestion(), "ssh-keygen -p")
}

func TestParsePrivateKey_Invalid(t *testing.T) {
	_, err := ParsePrivateKey([]byte("   "))
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, err = ParsePrivateKey([]byte("not a key"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse private key")
}

func TestReadPrivateKey(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "id_ed25519")
	require.NoError(t, os.WriteFile(good, newKey(t, ""), 0600))

	content, info, err := ReadPrivateKey(good)
	require.NoError(t, err)
	assert.Contains(t, content, "OPENSSH PRIVATE KEY")
	assert.NotEmpty(t, info.Fingerprint)

	locked := filepath.Join(dir, "id_locked")
	require.NoError(t, os.WriteFile(locked, newKey(t, "pw"), 0600))
	_, _, err = ReadPrivateKey(locked)
	var enc *EncryptedKeyError
	require.ErrorAs(t, err, &enc)
	assert.Equal(t, locked, enc.Path)

	_, _, err = ReadPrivateKey(filepath.Join(dir, "missing"))
	assert.True(t, os.IsNotExist(err))
}
