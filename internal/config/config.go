// Package config loads runtime settings from defaults, an optional YAML
// file, ANKI_* environment variables and command-line flags, in that order
// of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/ankicol/internal/media"
)

const envPrefix = "ANKI_"

// Config holds everything needed to open a collection and add cards to it.
type Config struct {
	Database       string `koanf:"database" validate:"required"`
	MediaDir       string `koanf:"media_dir"`
	Model          string `koanf:"model" validate:"required"`
	Deck           string `koanf:"deck" validate:"required"`
	Ordinals       []int  `koanf:"ordinals" validate:"required,min=1,unique,dive,min=0"`
	MediaPrefix    string `koanf:"media_prefix"`
	MediaExt       string `koanf:"media_ext" validate:"omitempty,startswith=."`
	LegacyChecksum bool   `koanf:"legacy_checksum"`
	SkipDuplicates bool   `koanf:"skip_duplicates"`
	LogLevel       string `koanf:"log_level" validate:"oneof=debug info warn error"`
}

var defaults = map[string]interface{}{
	"ordinals":     []int{0, 1},
	"media_prefix": "Generated_",
	"media_ext":    ".mp3",
	"log_level":    "info",
}

// legacyEnv maps unprefixed variable names still accepted for model and
// deck. The ANKI_* forms take precedence.
var legacyEnv = map[string]string{
	"MODEL_NAME": "model",
	"DECK_NAME":  "deck",
}

// RegisterFlags adds the configuration flags to fs. Flag names use dashes
// where config keys use underscores.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a YAML configuration file")
	fs.String("database", "", "Path to the collection database file")
	fs.String("media-dir", "", "Media folder (default: collection.media next to the database)")
	fs.String("model", "", "Note type name")
	fs.String("deck", "", "Deck name")
	fs.IntSlice("ordinals", nil, "Template ordinals that get a card (default 0,1)")
	fs.String("media-prefix", "", "Prefix for generated media file names")
	fs.String("media-ext", "", "Extension for generated media file names")
	fs.Bool("legacy-checksum", false, "Store the checksum older versions of this tool wrote")
	fs.Bool("skip-duplicates", false, "Skip cards whose front already exists for the model")
	fs.String("log-level", "", "Log level: debug, info, warn or error")
}

// Load merges all configuration layers. fs must have been populated by
// RegisterFlags and parsed.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	if path, _ := fs.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	for name, key := range legacyEnv {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			if err := k.Set(key, v); err != nil {
				return nil, err
			}
		}
	}
	err := k.Load(env.ProviderWithValue(envPrefix, ".", func(name, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		key := strings.ToLower(strings.TrimPrefix(name, envPrefix))
		if key == "ordinals" {
			return key, strings.Fields(strings.ReplaceAll(value, ",", " "))
		}
		return key, value
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	err = k.Load(posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
		if f.Name == "config" {
			return "", nil
		}
		return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(fs, f)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.MediaDir == "" && cfg.Database != "" {
		cfg.MediaDir = media.DefaultDir(cfg.Database)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
