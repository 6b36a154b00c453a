package store

import (
	"path/filepath"
	"testing"
)

func TestSetGetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Set(KeyLanguage, "de"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := s.Get(KeyLanguage); got != "de" {
		t.Errorf("Get = %q, want %q", got, "de")
	}

	// Reopen from disk.
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := s2.Get(KeyLanguage); got != "de" {
		t.Errorf("reopened Get = %q, want %q", got, "de")
	}
}

func TestGetDefault(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := s.GetDefault(KeyPrompt, "fallback"); got != "fallback" {
		t.Errorf("GetDefault = %q, want fallback", got)
	}
	s.Set(KeyPrompt, "")
	if got := s.GetDefault(KeyPrompt, "fallback"); got != "" {
		t.Errorf("GetDefault after explicit empty = %q, want empty", got)
	}
}

func TestMissingFileIsEmptyStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "nested", "dir", "settings.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := s.Get(KeyCloud); got != "" {
		t.Errorf("Get on fresh store = %q, want empty", got)
	}
}

func TestHistoryRepository(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SaveHistory(`{"items":[]}`); err != nil {
		t.Fatalf("SaveHistory: %v", err)
	}
	blob, err := s.LoadHistory()
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if blob != `{"items":[]}` {
		t.Errorf("LoadHistory = %q", blob)
	}
}

func TestObfuscatorRoundTrip(t *testing.T) {
	o := NewObfuscator()
	for _, secret := range []string{"", "sk-abc123", "unicode-ключ"} {
		concealed := o.Conceal(secret)
		if secret != "" && concealed == secret {
			t.Errorf("Conceal(%q) did not change the value", secret)
		}
		revealed, err := o.Reveal(concealed)
		if err != nil {
			t.Fatalf("Reveal: %v", err)
		}
		if revealed != secret {
			t.Errorf("round trip of %q gave %q", secret, revealed)
		}
	}
}

func TestObfuscatorRejectsBadBase64(t *testing.T) {
	o := NewObfuscator()
	if _, err := o.Reveal("%%%not-base64%%%"); err == nil {
		t.Error("expected error for invalid base64")
	}
}

func TestObfuscatorSaltMatters(t *testing.T) {
	a := NewObfuscatorWithSalt("salt-a")
	b := NewObfuscatorWithSalt("salt-b")
	concealed := a.Conceal("secret")
	revealed, err := b.Reveal(concealed)
	if err == nil && revealed == "secret" {
		t.Error("different salt should not reveal the same plaintext")
	}
}
