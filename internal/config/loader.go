package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// modelFiles are the files every model directory must contain.
var modelFiles = []string{
	"cdec.ini",
	"sa.ini",
	"weights.final",
	"a.fwd_params",
	"a.fwd_err",
	"a.rev_params",
	"a.rev_err",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Model.TmpDir == "" {
		cfg.Model.TmpDir = os.TempDir()
	}
	if cfg.Model.CacheSize == 0 {
		cfg.Model.CacheSize = 5
	}
	if cfg.Model.DefaultContext == "" {
		cfg.Model.DefaultContext = "default"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Model.ConfigDir == "" {
		errs = append(errs, errors.New("model.config_dir is required"))
	} else if info, err := os.Stat(cfg.Model.ConfigDir); err != nil || !info.IsDir() {
		errs = append(errs, fmt.Errorf("model.config_dir %q is not a directory", cfg.Model.ConfigDir))
	} else {
		for _, name := range modelFiles {
			if _, err := os.Stat(filepath.Join(cfg.Model.ConfigDir, name)); err != nil {
				slog.Warn("model file missing from config_dir — startup will fail if it is needed",
					"config_dir", cfg.Model.ConfigDir,
					"file", name,
				)
			}
		}
	}

	if cfg.Model.CacheSize < 1 {
		errs = append(errs, fmt.Errorf("model.cache_size %d is invalid; must be at least 1", cfg.Model.CacheSize))
	}

	if cfg.Workers.Decoder == "" {
		errs = append(errs, errors.New("workers.decoder is required"))
	}
	if cfg.Workers.Extractor == "" {
		errs = append(errs, errors.New("workers.extractor is required"))
	}
	if cfg.Workers.FastAlign == "" {
		errs = append(errs, errors.New("workers.fast_align is required"))
	}
	if cfg.Workers.Atools == "" {
		errs = append(errs, errors.New("workers.atools is required"))
	}

	if cfg.Model.Normalize {
		if cfg.Workers.Tokenizer == "" {
			errs = append(errs, errors.New("workers.tokenizer is required when model.normalize is true"))
		}
		if cfg.Workers.Detokenizer == "" {
			errs = append(errs, errors.New("workers.detokenizer is required when model.normalize is true"))
		}
	}

	return errors.Join(errs...)
}
