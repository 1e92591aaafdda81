package credential

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestSealer(t *testing.T) *Sealer {
	t.Helper()
	s, err := NewSealer(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	return s
}

func TestSealer_SealOpen(t *testing.T) {
	s := newTestSealer(t)

	testCases := []struct {
		name      string
		plaintext string
	}{
		{"empty string", ""},
		{"simple api key", "sk-1234567890abcdef"},
		{"long key", strings.Repeat("a", 1000)},
		{"unicode content", "api-key-日本語-🔑"},
		{"special chars", "key!@#$%^&*()_+-=[]{}|;':\",./<>?"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sealed, err := s.Seal(tc.plaintext)
			if err != nil {
				t.Fatalf("seal failed: %v", err)
			}

			if tc.plaintext == "" {
				if sealed != "" {
					t.Errorf("empty string should not be sealed, got: %s", sealed)
				}
				return
			}

			if !IsSealed(sealed) {
				t.Errorf("sealed value should have prefix, got: %s", sealed)
			}
			if strings.Contains(sealed, tc.plaintext) {
				t.Error("sealed value leaks plaintext")
			}

			opened, err := s.Open(sealed)
			if err != nil {
				t.Fatalf("open failed: %v", err)
			}
			if opened != tc.plaintext {
				t.Errorf("opened value mismatch: got %q, want %q", opened, tc.plaintext)
			}
		})
	}
}

func TestSealer_NonceIsRandom(t *testing.T) {
	s := newTestSealer(t)
	a, _ := s.Seal("same")
	b, _ := s.Seal("same")
	if a == b {
		t.Error("sealing twice should produce different ciphertexts")
	}
}

func TestSealer_OpenPlaintextPassesThrough(t *testing.T) {
	s := newTestSealer(t)
	got, err := s.Open("http://localhost:11434")
	if err != nil || got != "http://localhost:11434" {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestSealer_OpenErrors(t *testing.T) {
	s := newTestSealer(t)

	if _, err := s.Open(SealedPrefix + "!!!"); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("bad base64: expected ErrInvalidFormat, got %v", err)
	}
	if _, err := s.Open(SealedPrefix + "AAAA"); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("short payload: expected ErrInvalidFormat, got %v", err)
	}

	other, _ := NewSealer(bytes.Repeat([]byte{9}, 32))
	sealed, _ := other.Seal("secret")
	if _, err := s.Open(sealed); !errors.Is(err, ErrOpenFailed) {
		t.Errorf("wrong key: expected ErrOpenFailed, got %v", err)
	}
}

func TestNewSealer_KeySize(t *testing.T) {
	if _, err := NewSealer([]byte("short")); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestLoadOrCreateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "secret.key")

	first, err := LoadOrCreateKey(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(first) != 32 {
		t.Fatalf("expected 32-byte key, got %d", len(first))
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
	}

	second, err := LoadOrCreateKey(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("key should be stable across loads")
	}

	os.WriteFile(path, []byte("truncated"), 0600)
	if _, err := LoadOrCreateKey(path); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey for damaged key file, got %v", err)
	}
}

func TestIsSecretKey(t *testing.T) {
	testCases := map[string]bool{
		"openai.api_key":  true,
		"gemini.api_key":  true,
		"github.token":    true,
		"ollama.base_url": false,
		"api_key_hint":    false,
	}
	for key, want := range testCases {
		if got := IsSecretKey(key); got != want {
			t.Errorf("IsSecretKey(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestMask(t *testing.T) {
	if got := Mask("short"); got != "****" {
		t.Errorf("got %q", got)
	}
	if got := Mask("sk-1234567890abcdef"); got != "sk-1...cdef" {
		t.Errorf("got %q", got)
	}
}
