package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// modelDir creates a directory with the full set of model files.
func modelDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range modelFiles {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func validYAML(dir string) string {
	return `
server:
  listen_addr: ":8642"
  log_level: info
model:
  config_dir: ` + dir + `
  cache_size: 3
workers:
  decoder: /opt/cdec/mira
  extractor: /opt/cdec/sa_extract
  fast_align: /opt/cdec/fast_align
  atools: /opt/cdec/atools
`
}

func TestLoadFromReaderValid(t *testing.T) {
	dir := modelDir(t)
	cfg, err := LoadFromReader(strings.NewReader(validYAML(dir)))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":8642" {
		t.Errorf("ListenAddr = %q, want :8642", cfg.Server.ListenAddr)
	}
	if cfg.Model.CacheSize != 3 {
		t.Errorf("CacheSize = %d, want 3", cfg.Model.CacheSize)
	}
	if cfg.Model.ConfigDir != dir {
		t.Errorf("ConfigDir = %q, want %q", cfg.Model.ConfigDir, dir)
	}
}

func TestLoadFromReaderDefaults(t *testing.T) {
	dir := modelDir(t)
	cfg, err := LoadFromReader(strings.NewReader(`
model:
  config_dir: ` + dir + `
workers:
  decoder: mira
  extractor: sa_extract
  fast_align: fast_align
  atools: atools
`))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Model.CacheSize != 5 {
		t.Errorf("default CacheSize = %d, want 5", cfg.Model.CacheSize)
	}
	if cfg.Model.DefaultContext != "default" {
		t.Errorf("default DefaultContext = %q, want %q", cfg.Model.DefaultContext, "default")
	}
	if cfg.Model.TmpDir == "" {
		t.Error("default TmpDir is empty, want system temp dir")
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	dir := modelDir(t)
	yaml := validYAML(dir) + "\nbogus_section:\n  x: 1\n"
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected an error for unknown top-level field")
	}
}

func TestValidate(t *testing.T) {
	dir := modelDir(t)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Server.LogLevel = "loud" },
			wantErr: "log_level",
		},
		{
			name:    "missing config dir",
			mutate:  func(c *Config) { c.Model.ConfigDir = "" },
			wantErr: "config_dir",
		},
		{
			name:    "config dir not a directory",
			mutate:  func(c *Config) { c.Model.ConfigDir = filepath.Join(dir, "cdec.ini") },
			wantErr: "config_dir",
		},
		{
			name:    "negative cache size",
			mutate:  func(c *Config) { c.Model.CacheSize = -1 },
			wantErr: "cache_size",
		},
		{
			name:    "missing decoder",
			mutate:  func(c *Config) { c.Workers.Decoder = "" },
			wantErr: "workers.decoder",
		},
		{
			name: "normalize without tokenizer",
			mutate: func(c *Config) {
				c.Model.Normalize = true
				c.Workers.Detokenizer = "detok"
			},
			wantErr: "workers.tokenizer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Model: ModelConfig{ConfigDir: dir, CacheSize: 5, TmpDir: os.TempDir(), DefaultContext: "default"},
				Workers: WorkersConfig{
					Decoder: "mira", Extractor: "sa", FastAlign: "fa", Atools: "at",
				},
			}
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
