// Package config assembles the user settings snapshot the core reads:
// persisted values from the settings store, overridden by environment
// variables (JOT_*), with a .env file honored by main.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"

	"jot/store"
)

const envPrefix = "jot"

// Mode selects what happens to the transcript after transcription.
type Mode string

const (
	ModeTranscription Mode = "transcription"
	ModeInstruction   Mode = "instruction"
	ModeCreative      Mode = "creative"
)

// Settings is a value snapshot; the core never mutates it in place.
// Persistence goes through Save, not property observers.
type Settings struct {
	Language    string  `envconfig:"LANGUAGE" default:"en"`
	Prompt      string  `envconfig:"PROMPT" default:"Hello, nice to see you today!"`
	Translate   bool    `envconfig:"TRANSLATE" default:"false"`
	AutoPaste   bool    `envconfig:"AUTOPASTE" default:"false"`
	CloudEnable bool    `envconfig:"CLOUD" default:"true"`
	Sounds      bool    `envconfig:"SOUNDS" default:"true"`
	Creativity  float64 `envconfig:"CREATIVITY" default:"0.7"`

	// APIKey comes from JOT_API_KEY or the obfuscated store entry.
	APIKey string `envconfig:"API_KEY"`

	// HoldThreshold is how long the hotkey must stay down before its
	// release also stops the recording (press-and-hold usage). The
	// upstream value drifted between 0.7s and 2s, so it is tunable.
	HoldThreshold time.Duration `envconfig:"HOLD_THRESHOLD" default:"700ms"`

	HistoryCapacity int `envconfig:"HISTORY_CAPACITY" default:"25"`
}

// Load builds the settings snapshot. Precedence, highest first:
// environment variables, persisted store values, built-in defaults.
func Load(s *store.Store, obf *store.Obfuscator) (Settings, error) {
	var cfg Settings
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("reading environment: %w", err)
	}
	if s == nil {
		return cfg, nil
	}

	// Store values apply only where the environment stayed silent;
	// envconfig already folded env vars and defaults into cfg.
	if !envSet("LANGUAGE") {
		cfg.Language = s.GetDefault(store.KeyLanguage, cfg.Language)
	}
	if !envSet("PROMPT") {
		cfg.Prompt = s.GetDefault(store.KeyPrompt, cfg.Prompt)
	}
	if !envSet("TRANSLATE") {
		cfg.Translate = boolFrom(s, store.KeyTranslate, cfg.Translate)
	}
	if !envSet("AUTOPASTE") {
		cfg.AutoPaste = boolFrom(s, store.KeyAutoPaste, cfg.AutoPaste)
	}
	if !envSet("CLOUD") {
		cfg.CloudEnable = boolFrom(s, store.KeyCloud, cfg.CloudEnable)
	}
	if !envSet("SOUNDS") {
		cfg.Sounds = boolFrom(s, store.KeySounds, cfg.Sounds)
	}
	if !envSet("CREATIVITY") {
		if v := s.Get(store.KeyCreativity); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				cfg.Creativity = f
			}
		}
	}
	if cfg.APIKey == "" && obf != nil {
		key, err := obf.Reveal(s.Get(store.KeyCredential))
		if err != nil {
			return cfg, fmt.Errorf("revealing stored credential: %w", err)
		}
		cfg.APIKey = key
	}
	return cfg, nil
}

// Save writes the mutable settings back to the store. The credential is
// obfuscated at rest.
func Save(cfg Settings, s *store.Store, obf *store.Obfuscator) error {
	pairs := []struct{ key, value string }{
		{store.KeyLanguage, cfg.Language},
		{store.KeyPrompt, cfg.Prompt},
		{store.KeyTranslate, strconv.FormatBool(cfg.Translate)},
		{store.KeyAutoPaste, strconv.FormatBool(cfg.AutoPaste)},
		{store.KeyCloud, strconv.FormatBool(cfg.CloudEnable)},
		{store.KeySounds, strconv.FormatBool(cfg.Sounds)},
		{store.KeyCreativity, strconv.FormatFloat(cfg.Creativity, 'f', -1, 64)},
		{store.KeyCredential, obf.Conceal(cfg.APIKey)},
	}
	for _, p := range pairs {
		if err := s.Set(p.key, p.value); err != nil {
			return err
		}
	}
	return nil
}

func envSet(name string) bool {
	_, ok := os.LookupEnv("JOT_" + name)
	return ok
}

func boolFrom(s *store.Store, key string, def bool) bool {
	v := s.Get(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
