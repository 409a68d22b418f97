package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, envPrefix) || name == "MODEL_NAME" || name == "DECK_NAME" {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
}

func parseFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() returned an unexpected error: %v", err)
	}
	return fs
}

func TestLoadDefaultsAndFlags(t *testing.T) {
	clearEnv(t)
	fs := parseFlags(t, "--database", "/data/collection.anki2", "--model", "Basic", "--deck", "Korean")

	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}

	want := &Config{
		Database:    "/data/collection.anki2",
		MediaDir:    filepath.Join("/data", "collection.media"),
		Model:       "Basic",
		Deck:        "Korean",
		Ordinals:    []int{0, 1},
		MediaPrefix: "Generated_",
		MediaExt:    ".mp3",
		LogLevel:    "info",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "ankicol.yaml")
	yaml := `
database: /from/file.anki2
model: FileModel
deck: FileDeck
ordinals: [0]
log_level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ANKI_MODEL", "EnvModel")
	t.Setenv("ANKI_ORDINALS", "0 1 2")
	t.Setenv("ANKI_LEGACY_CHECKSUM", "true")
	t.Setenv("DECK_NAME", "LegacyDeck")

	fs := parseFlags(t, "--config", path, "--deck", "FlagDeck")
	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}

	if cfg.Database != "/from/file.anki2" {
		t.Errorf("Expected database from file, but got %q", cfg.Database)
	}
	if cfg.Model != "EnvModel" {
		t.Errorf("Expected env to override file model, but got %q", cfg.Model)
	}
	if cfg.Deck != "FlagDeck" {
		t.Errorf("Expected flag to override deck, but got %q", cfg.Deck)
	}
	if diff := cmp.Diff([]int{0, 1, 2}, cfg.Ordinals); diff != "" {
		t.Errorf("Ordinals mismatch (-want +got):\n%s", diff)
	}
	if !cfg.LegacyChecksum {
		t.Error("Expected legacy checksum to be enabled from env")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level from file, but got %q", cfg.LogLevel)
	}
}

func TestLoadLegacyEnvNames(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANKI_DATABASE", "/x/collection.anki2")
	t.Setenv("MODEL_NAME", "Basic")
	t.Setenv("DECK_NAME", "Test")

	cfg, err := Load(parseFlags(t))
	if err != nil {
		t.Fatalf("Load() returned an unexpected error: %v", err)
	}
	if cfg.Model != "Basic" || cfg.Deck != "Test" {
		t.Errorf("Expected legacy names to be read, but got model %q deck %q", cfg.Model, cfg.Deck)
	}
}

func TestLoadValidation(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{name: "Missing database", args: []string{"--model", "Basic", "--deck", "Test"}},
		{name: "Missing model", args: []string{"--database", "c.anki2", "--deck", "Test"}},
		{name: "Duplicate ordinals", args: []string{"--database", "c.anki2", "--model", "B", "--deck", "T", "--ordinals", "0,0"}},
		{name: "Negative ordinal", args: []string{"--database", "c.anki2", "--model", "B", "--deck", "T", "--ordinals", "-1"}},
		{name: "Bad log level", args: []string{"--database", "c.anki2", "--model", "B", "--deck", "T", "--log-level", "loud"}},
		{name: "Extension without dot", args: []string{"--database", "c.anki2", "--model", "B", "--deck", "T", "--media-ext", "mp3"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			if _, err := Load(parseFlags(t, tc.args...)); err == nil {
				t.Error("Expected a validation error, but got nil")
			}
		})
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	clearEnv(t)
	fs := parseFlags(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(fs); err == nil {
		t.Error("Expected an error for a missing config file, but got nil")
	}
}
