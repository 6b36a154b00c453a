package config

import (
	"path/filepath"
	"testing"

	"jot/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(openStore(t), store.NewObfuscator())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Language != "en" {
		t.Errorf("Language = %q, want en", cfg.Language)
	}
	if !cfg.CloudEnable {
		t.Error("CloudEnable should default to true")
	}
	if cfg.AutoPaste {
		t.Error("AutoPaste should default to false")
	}
	if cfg.Creativity != 0.7 {
		t.Errorf("Creativity = %v, want 0.7", cfg.Creativity)
	}
	if cfg.HistoryCapacity != 25 {
		t.Errorf("HistoryCapacity = %d, want 25", cfg.HistoryCapacity)
	}
}

func TestLoadStoreLayering(t *testing.T) {
	s := openStore(t)
	if err := s.Set(store.KeyLanguage, "de"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(store.KeyTranslate, "true"); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(s, store.NewObfuscator())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Language != "de" {
		t.Errorf("Language = %q, want de", cfg.Language)
	}
	if !cfg.Translate {
		t.Error("Translate should come from the store")
	}
}

func TestEnvOverridesStore(t *testing.T) {
	s := openStore(t)
	if err := s.Set(store.KeyLanguage, "de"); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JOT_LANGUAGE", "ru")

	cfg, err := Load(s, store.NewObfuscator())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Language != "ru" {
		t.Errorf("Language = %q, want ru", cfg.Language)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	s := openStore(t)
	obf := store.NewObfuscator()

	in := Settings{
		Language:    "es",
		Prompt:      "hola",
		Translate:   true,
		AutoPaste:   true,
		CloudEnable: false,
		Sounds:      false,
		Creativity:  0.3,
		APIKey:      "sk-test",
	}
	if err := Save(in, s, obf); err != nil {
		t.Fatal(err)
	}

	out, err := Load(s, obf)
	if err != nil {
		t.Fatal(err)
	}
	if out.Language != in.Language || out.Prompt != in.Prompt {
		t.Errorf("strings did not round trip: %+v", out)
	}
	if !out.Translate || !out.AutoPaste || out.CloudEnable || out.Sounds {
		t.Errorf("bools did not round trip: %+v", out)
	}
	if out.Creativity != 0.3 {
		t.Errorf("Creativity = %v, want 0.3", out.Creativity)
	}
	if out.APIKey != "sk-test" {
		t.Errorf("APIKey = %q, want sk-test", out.APIKey)
	}
	if raw := s.Get(store.KeyCredential); raw == "sk-test" || raw == "" {
		t.Errorf("credential should be stored obfuscated, got %q", raw)
	}
}
