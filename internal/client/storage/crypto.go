package storage

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	argon2MemoryKiB  uint32 = 64 * 1024
	argon2Iterations uint32 = 3
	saltLen                 = 32
)

// ErrInvalidKey is returned when key material has the wrong shape.
var ErrInvalidKey = errors.New("invalid storage key")

// NewAEAD builds the XChaCha20-Poly1305 cipher used for every document file.
func NewAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes", ErrInvalidKey, chacha20poly1305.KeySize)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return aead, nil
}

// DeriveKey stretches a passphrase into a document key with Argon2id.
func DeriveKey(passphrase, salt []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("%w: passphrase must not be empty", ErrInvalidKey)
	}
	if len(salt) < 16 {
		return nil, fmt.Errorf("%w: salt must be at least 16 bytes", ErrInvalidKey)
	}
	parallelism := runtime.NumCPU()
	if parallelism > 4 {
		parallelism = 4
	}
	return argon2.IDKey(passphrase, salt, argon2Iterations, argon2MemoryKiB, uint8(parallelism), chacha20poly1305.KeySize), nil
}

// LoadOrCreateSalt returns the installation salt stored at path, creating it on first use.
func LoadOrCreateSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil {
		if len(salt) != saltLen {
			return nil, fmt.Errorf("%w: salt file %s has %d bytes", ErrInvalidKey, path, len(salt))
		}
		return salt, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read salt: %w", err)
	}

	salt = make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create salt dir: %w", err)
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, fmt.Errorf("write salt: %w", err)
	}
	return salt, nil
}

// NewAEADFromPassphrase derives the document cipher from a passphrase and the salt file at saltPath.
func NewAEADFromPassphrase(passphrase []byte, saltPath string) (cipher.AEAD, error) {
	salt, err := LoadOrCreateSalt(saltPath)
	if err != nil {
		return nil, err
	}
	key, err := DeriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}
	return NewAEAD(key)
}
