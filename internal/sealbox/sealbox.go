// Package sealbox encrypts small secrets (session tokens) before they are
// written to disk.
//
// Keys are derived with HKDF-SHA256 from master key material; each Sealer is
// bound to a purpose string so a key derived for one store cannot open data
// written by another. Ciphertexts are XChaCha20-Poly1305 with a random
// 24-byte nonce prepended.
package sealbox

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// MasterKeyEnv is consulted when no master key file is configured.
const MasterKeyEnv = "NOTEHUB_MASTER_KEY"

var (
	ErrNoMasterKey = errors.New("sealbox: no master key configured")
	ErrCiphertext  = errors.New("sealbox: ciphertext too short")
)

// Sealer seals and opens byte strings with one derived key.
type Sealer struct {
	key []byte
}

// New derives a Sealer from master key material for purpose.
func New(master []byte, purpose string) (*Sealer, error) {
	if len(master) == 0 {
		return nil, ErrNoMasterKey
	}

	r := hkdf.New(sha256.New, master, nil, []byte("notehub/"+purpose))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	return &Sealer{key: key}, nil
}

// LoadMasterKey reads master key material from path, or from MasterKeyEnv
// when path is empty. Surrounding whitespace in the file is ignored.
func LoadMasterKey(path string) ([]byte, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read master key file: %w", err)
		}
		data = []byte(strings.TrimSpace(string(data)))
		if len(data) == 0 {
			return nil, ErrNoMasterKey
		}
		return data, nil
	}

	if env := os.Getenv(MasterKeyEnv); env != "" {
		return []byte(env), nil
	}

	return nil, ErrNoMasterKey
}

// GenerateMasterKeyFile writes 32 random bytes (hex) to path with 0600
// permissions unless the file already exists.
func GenerateMasterKeyFile(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, os.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create master key file: %w", err)
	}
	defer f.Close()

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("generate master key: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%x\n", raw); err != nil {
		return fmt.Errorf("write master key file: %w", err)
	}
	return nil
}

// Seal encrypts plaintext. additional is authenticated but not encrypted.
func (s *Sealer) Seal(plaintext, additional []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, additional), nil
}

// Open decrypts data produced by Seal with the same additional data.
func (s *Sealer) Open(sealed, additional []byte) ([]byte, error) {
	if len(sealed) < chacha20poly1305.NonceSizeX {
		return nil, ErrCiphertext
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}

	nonce, ct := sealed[:chacha20poly1305.NonceSizeX], sealed[chacha20poly1305.NonceSizeX:]
	plaintext, err := aead.Open(nil, nonce, ct, additional)
	if err != nil {
		return nil, fmt.Errorf("sealbox: open: %w", err)
	}
	return plaintext, nil
}
