package sshutil

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"
)

// EncryptedKeyError is returned when an SSH key requires a passphrase. The
// service installs unattended, so it cannot use such a key.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	if e.Path == "" {
		return "SSH key is encrypted (passphrase protected)"
	}
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// Suggestion returns how to produce a key the service can use.
func (e *EncryptedKeyError) Suggestion() string {
	path := e.Path
	if path == "" {
		path = "<key>"
	}
	return fmt.Sprintf("Use an unencrypted deploy key, or strip the passphrase from a copy: ssh-keygen -p -N '' -f %s", path)
}

// ErrEmptyKey is returned for blank key material.
var ErrEmptyKey = errors.New("private key is empty")

// KeyInfo describes a parsed private key.
type KeyInfo struct {
	Type        string
	Fingerprint string
}

// ParsePrivateKey checks that pem holds an unencrypted private key and
// returns its type and SHA256 fingerprint.
func ParsePrivateKey(pem []byte) (KeyInfo, error) {
	if len(bytes.TrimSpace(pem)) == 0 {
		return KeyInfo{}, ErrEmptyKey
	}

	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) ||
			strings.Contains(err.Error(), "encrypted") ||
			strings.Contains(err.Error(), "passphrase") ||
			isEncryptedPEM(pem) {
			return KeyInfo{}, &EncryptedKeyError{}
		}
		return KeyInfo{}, fmt.Errorf("parse private key: %w", err)
	}

	pub := signer.PublicKey()
	return KeyInfo{Type: pub.Type(), Fingerprint: ssh.FingerprintSHA256(pub)}, nil
}

// ReadPrivateKey loads and validates a key file. ~/ is expanded.
func ReadPrivateKey(path string) (string, KeyInfo, error) {
	path = expandPath(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", KeyInfo{}, err
	}

	info, err := ParsePrivateKey(data)
	if err != nil {
		var enc *EncryptedKeyError
		if errors.As(err, &enc) {
			enc.Path = path
		}
		return "", KeyInfo{}, err
	}
	return string(data), info, nil
}

func isEncryptedPEM(data []byte) bool {
	return bytes.Contains(data, []byte("ENCRYPTED"))
}
