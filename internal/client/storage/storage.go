// Package storage keeps single JSON documents (settings, user profile) in
// encrypted files on the local disk.
package storage

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// fileMagic prefixes every document file and is bound into the AEAD as additional data.
var fileMagic = []byte("PNS1")

// ErrCorrupt marks a document file that exists but cannot be decrypted or decoded.
var ErrCorrupt = errors.New("corrupt document")

// Store persists one document of type T in one encrypted file.
type Store[T any] struct {
	path string
	aead cipher.AEAD
	log  *zap.Logger
}

// New returns a Store writing to path with the given cipher.
func New[T any](path string, aead cipher.AEAD, log *zap.Logger) *Store[T] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store[T]{path: path, aead: aead, log: log.With(zap.String("file", filepath.Base(path)))}
}

// Path returns the document file location.
func (s *Store[T]) Path() string { return s.path }

// Save encrypts doc and replaces any prior file. The new content is written to a
// temporary file and renamed over the old one, so readers observe either the old or
// the new document.
func (s *Store[T]) Save(doc T) error {
	plain, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(fileMagic) + len(nonce) + len(plain) + s.aead.Overhead())
	buf.Write(fileMagic)
	buf.Write(nonce)
	buf.Write(s.aead.Seal(nil, nonce, plain, fileMagic))

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}

// Read decodes the stored document and classifies failures.
func (s *Store[T]) Read() Result[T] {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result[T]{Status: StatusAbsent}
		}
		return Result[T]{Status: StatusUnreadable, Err: fmt.Errorf("read document: %w", err)}
	}

	headerLen := len(fileMagic) + s.aead.NonceSize()
	if len(data) < headerLen || !bytes.Equal(data[:len(fileMagic)], fileMagic) {
		return Result[T]{Status: StatusCorrupt, Err: fmt.Errorf("%w: bad header", ErrCorrupt)}
	}
	nonce := data[len(fileMagic):headerLen]
	plain, err := s.aead.Open(nil, nonce, data[headerLen:], fileMagic)
	if err != nil {
		return Result[T]{Status: StatusCorrupt, Err: fmt.Errorf("%w: decrypt: %v", ErrCorrupt, err)}
	}

	var doc T
	if err := json.Unmarshal(plain, &doc); err != nil {
		return Result[T]{Status: StatusCorrupt, Err: fmt.Errorf("%w: decode: %v", ErrCorrupt, err)}
	}
	return Result[T]{Status: StatusFound, Doc: doc}
}

// Load is Read for callers that only care whether a document is available.
// Unreadable and corrupt files are logged and reported as missing.
func (s *Store[T]) Load() (T, bool) {
	res := s.Read()
	switch res.Status {
	case StatusFound:
		return res.Doc, true
	case StatusAbsent:
	default:
		s.log.Warn("document unavailable", zap.Stringer("status", res.Status), zap.Error(res.Err))
	}
	var zero T
	return zero, false
}

// Delete removes the document file. Deleting a missing file is not an error.
func (s *Store[T]) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
