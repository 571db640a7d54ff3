package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/photos-network/photos-sync/internal/models"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func newTestStore(t *testing.T) *Store[models.Settings] {
	t.Helper()
	aead, err := NewAEAD(testKey(1))
	require.NoError(t, err)
	return New[models.Settings](filepath.Join(t.TempDir(), "settings.bin"), aead, zap.NewNop())
}

func TestSaveThenRead(t *testing.T) {
	cases := []models.Settings{
		models.DefaultSettings(),
		{Host: "https://photos.example.com", ClientID: "client", ClientSecret: "s3cret", PrivacyState: models.PrivacyActive},
		{Host: "http://192.168.1.4:7777", ClientID: "ü-client", PrivacyState: models.PrivacyNone},
	}
	for _, want := range cases {
		t.Run(want.Host, func(t *testing.T) {
			s := newTestStore(t)
			require.NoError(t, s.Save(want))

			res := s.Read()
			require.Equal(t, StatusFound, res.Status)
			assert.Equal(t, want, res.Doc)
		})
	}
}

func TestSave_ReplacesPrevious(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(models.Settings{Host: "a"}))
	require.NoError(t, s.Save(models.Settings{Host: "b"}))

	res := s.Read()
	require.True(t, res.Found())
	assert.Equal(t, "b", res.Doc.Host)

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestSave_DoesNotStorePlaintext(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(models.Settings{ClientSecret: "very-secret-value"}))

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "very-secret-value")
}

func TestRead_Absent(t *testing.T) {
	s := newTestStore(t)
	res := s.Read()
	assert.Equal(t, StatusAbsent, res.Status)
	assert.NoError(t, res.Err)
}

func TestRead_Corrupt(t *testing.T) {
	cases := []struct {
		name    string
		content []byte
	}{
		{"empty", nil},
		{"garbage", []byte("not an encrypted document at all")},
		{"bad magic", append([]byte("XXXX"), make([]byte, 64)...)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestStore(t)
			require.NoError(t, os.WriteFile(s.Path(), tc.content, 0o600))

			res := s.Read()
			assert.Equal(t, StatusCorrupt, res.Status)
			assert.ErrorIs(t, res.Err, ErrCorrupt)
		})
	}
}

func TestRead_TamperedCiphertext(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(models.Settings{Host: "h"}))

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	require.NoError(t, os.WriteFile(s.Path(), raw, 0o600))

	assert.Equal(t, StatusCorrupt, s.Read().Status)
}

func TestRead_WrongKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "user.bin")

	a1, err := NewAEAD(testKey(1))
	require.NoError(t, err)
	a2, err := NewAEAD(testKey(2))
	require.NoError(t, err)

	require.NoError(t, New[models.User](path, a1, nil).Save(models.User{ID: "u1"}))
	res := New[models.User](path, a2, nil).Read()
	assert.Equal(t, StatusCorrupt, res.Status)
}

func TestRead_Unreadable(t *testing.T) {
	s := newTestStore(t)
	// a directory in place of the file cannot be read as one
	require.NoError(t, os.Mkdir(s.Path(), 0o700))

	res := s.Read()
	assert.Equal(t, StatusUnreadable, res.Status)
	assert.Error(t, res.Err)
}

func TestLoad_LogsCorruption(t *testing.T) {
	var buf bytes.Buffer
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(&buf),
		zapcore.DebugLevel,
	)
	aead, err := NewAEAD(testKey(1))
	require.NoError(t, err)
	s := New[models.Settings](filepath.Join(t.TempDir(), "settings.bin"), aead, zap.New(core))

	_, ok := s.Load()
	assert.False(t, ok)
	assert.Empty(t, buf.String(), "absent documents are not worth a warning")

	require.NoError(t, os.WriteFile(s.Path(), []byte("junk"), 0o600))
	_, ok = s.Load()
	assert.False(t, ok)
	assert.True(t, strings.Contains(buf.String(), "document unavailable"), "got %q", buf.String())
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(models.Settings{Host: "h"}))

	require.NoError(t, s.Delete())
	assert.Equal(t, StatusAbsent, s.Read().Status)

	// idempotent
	require.NoError(t, s.Delete())
	assert.Equal(t, StatusAbsent, s.Read().Status)
}
