package secrets

import (
	"path/filepath"
	"testing"
)

func TestSaveLocalThenLoadLocalRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.enc")
	want := Credentials{APIKey: "abc123", SecretKey: "topsecret"}

	if err := SaveLocal(path, want, "correct horse battery staple"); err != nil {
		t.Fatalf("SaveLocal: %v", err)
	}

	got, err := LoadLocal(path, "correct horse battery staple")
	if err != nil {
		t.Fatalf("LoadLocal: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestLoadLocalWrongPassphraseFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.enc")
	if err := SaveLocal(path, Credentials{APIKey: "k", SecretKey: "s"}, "right passphrase"); err != nil {
		t.Fatalf("SaveLocal: %v", err)
	}

	if _, err := LoadLocal(path, "wrong passphrase"); err == nil {
		t.Fatalf("expected decryption to fail with wrong passphrase")
	}
}

func TestLoadLocalMissingFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.enc")
	if _, err := LoadLocal(path, "whatever"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
