// Package config provides the configuration schema and loader for the
// adaptran translation server.
package config

// Config is the root configuration structure for adaptran.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Model   ModelConfig   `yaml:"model"`
	Workers WorkersConfig `yaml:"workers"`
}

// ServerConfig holds network and logging settings for the server.
type ServerConfig struct {
	// ListenAddr is the TCP address the command server listens on
	// (e.g., ":8642"). Empty disables the TCP listener; with both the TCP
	// and the WebSocket listener disabled the server reads commands from
	// stdin, whether or not MetricsAddr is set.
	ListenAddr string `yaml:"listen_addr"`

	// WSListenAddr is the HTTP address serving the WebSocket command
	// endpoint at /translate. Empty disables it.
	WSListenAddr string `yaml:"ws_listen_addr"`

	// MetricsAddr is the HTTP address serving Prometheus metrics at
	// /metrics. Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel LogLevel `yaml:"log_level"`
}

// LogLevel is a slog-compatible verbosity name.
type LogLevel string

// Valid log levels.
const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is one of the known levels.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// ModelConfig locates the trained model and tunes runtime behaviour.
type ModelConfig struct {
	// ConfigDir is the model directory holding cdec.ini, sa.ini,
	// weights.final, and the aligner parameter/error files. All paths in
	// the templates are resolved against this directory.
	ConfigDir string `yaml:"config_dir"`

	// TmpDir is where the per-run scratch directory is created.
	// Defaults to the system temp directory.
	TmpDir string `yaml:"tmp_dir"`

	// CacheSize bounds the per-context grammar cache. Defaults to 5.
	CacheSize int `yaml:"cache_size"`

	// Normalize runs input through the tokenizer before translation and
	// the hypothesis through the detokenizer after.
	Normalize bool `yaml:"normalize"`

	// DefaultContext is the context name used by commands that do not name
	// one. Defaults to "default".
	DefaultContext string `yaml:"default_context"`
}

// WorkersConfig locates the worker child processes.
type WorkersConfig struct {
	// Decoder is the MIRA decoder executable.
	Decoder string `yaml:"decoder"`

	// Extractor is the online grammar extractor executable.
	Extractor string `yaml:"extractor"`

	// FastAlign and Atools are the forced-alignment executables.
	FastAlign string `yaml:"fast_align"`
	Atools    string `yaml:"atools"`

	// Tokenizer and Detokenizer are the normalization pipe command lines
	// (an executable with optional arguments, split on spaces). Required
	// only when model.normalize is true.
	Tokenizer   string `yaml:"tokenizer"`
	Detokenizer string `yaml:"detokenizer"`
}
