// Command adaptran is the main entry point for the adaptran realtime
// adaptive translation server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/MrWong99/adaptran/internal/config"
	"github.com/MrWong99/adaptran/internal/health"
	"github.com/MrWong99/adaptran/internal/modelcfg"
	"github.com/MrWong99/adaptran/internal/observe"
	"github.com/MrWong99/adaptran/internal/server"
	"github.com/MrWong99/adaptran/internal/translator"
	"github.com/MrWong99/adaptran/pkg/provider/aligner/fastalign"
	"github.com/MrWong99/adaptran/pkg/provider/decoder/cdec"
	"github.com/MrWong99/adaptran/pkg/provider/extractor/saext"
	"github.com/MrWong99/adaptran/pkg/provider/tokenizer/moses"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "adaptran: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "adaptran: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("adaptran starting",
		"config", *configPath,
		"model_dir", cfg.Model.ConfigDir,
		"normalize", cfg.Model.Normalize,
		"cache_size", cfg.Model.CacheSize,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Scratch directory ─────────────────────────────────────────────────────
	tmpRoot, err := os.MkdirTemp(cfg.Model.TmpDir, "adaptran.")
	if err != nil {
		slog.Error("failed to create scratch dir", "err", err)
		return 1
	}
	slog.Info("using scratch dir", "dir", tmpRoot)

	// ── Worker subsystems ─────────────────────────────────────────────────────
	deps, err := startWorkers(cfg, tmpRoot)
	if err != nil {
		slog.Error("failed to start workers", "err", err)
		os.RemoveAll(tmpRoot)
		return 1
	}

	tr, err := translator.New(cfg, tmpRoot, deps)
	if err != nil {
		slog.Error("failed to initialise translator", "err", err)
		os.RemoveAll(tmpRoot)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	// ── Serve ─────────────────────────────────────────────────────────────────
	probes := health.New(health.Checker{
		Name:  "translator",
		Check: func(context.Context) error { return tr.Healthy() },
	})
	srv := server.New(cfg.Server, tr, server.WithHealth(probes))
	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		closeTranslator(tr)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	if !closeTranslator(tr) {
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// closeTranslator closes gracefully with a deadline and falls back to a
// forced close when the deadline passes. Reports whether the graceful path
// succeeded.
func closeTranslator(tr *translator.Translator) bool {
	done := make(chan error, 1)
	go func() { done <- tr.Close(context.Background(), false) }()

	select {
	case err := <-done:
		if err != nil {
			slog.Error("shutdown error", "err", err)
			return false
		}
		return true
	case <-time.After(15 * time.Second):
		slog.Warn("graceful shutdown timed out — forcing")
		tr.Close(context.Background(), true)
		return false
	}
}

// ── Worker wiring ─────────────────────────────────────────────────────────────

// startWorkers launches the shared worker subsystems: the grammar extractor
// (against a path-patched copy of sa.ini), the forced aligner trio, and the
// normalization pipes when enabled. Already-started workers are stopped
// again when a later one fails.
func startWorkers(cfg *config.Config, tmpRoot string) (translator.Deps, error) {
	var deps translator.Deps
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	saIni, err := modelcfg.WriteExtractorConfig(cfg.Model.ConfigDir, tmpRoot)
	if err != nil {
		return deps, err
	}

	ext, err := saext.Start(cfg.Workers.Extractor, saIni)
	if err != nil {
		return deps, err
	}
	deps.Extractor = ext
	closers = append(closers, func() error { return ext.Close(true) })
	slog.Info("extractor started", "executable", cfg.Workers.Extractor, "config", saIni)

	al, err := fastalign.Start(fastalign.Config{
		FastAlign: cfg.Workers.FastAlign,
		Atools:    cfg.Workers.Atools,
		FwdParams: filepath.Join(cfg.Model.ConfigDir, "a.fwd_params"),
		FwdErr:    filepath.Join(cfg.Model.ConfigDir, "a.fwd_err"),
		RevParams: filepath.Join(cfg.Model.ConfigDir, "a.rev_params"),
		RevErr:    filepath.Join(cfg.Model.ConfigDir, "a.rev_err"),
	})
	if err != nil {
		cleanup()
		return deps, err
	}
	deps.Aligner = al
	closers = append(closers, func() error { return al.Close(true) })
	slog.Info("aligner started", "fast_align", cfg.Workers.FastAlign, "atools", cfg.Workers.Atools)

	if cfg.Model.Normalize {
		tok, err := moses.Start(cfg.Workers.Tokenizer)
		if err != nil {
			cleanup()
			return deps, err
		}
		deps.Tokenizer = tok
		closers = append(closers, func() error { return tok.Close(true) })

		detok, err := moses.Start(cfg.Workers.Detokenizer)
		if err != nil {
			cleanup()
			return deps, err
		}
		deps.Detokenizer = detok
		slog.Info("normalization pipes started")
	}

	deps.Decoder = cdec.NewLauncher(cfg.Workers.Decoder)
	return deps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         adaptran — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Model dir", cfg.Model.ConfigDir)
	printRow("Decoder", cfg.Workers.Decoder)
	printRow("Extractor", cfg.Workers.Extractor)
	printRow("Normalize", fmt.Sprintf("%t", cfg.Model.Normalize))
	printRow("Cache size", fmt.Sprintf("%d", cfg.Model.CacheSize))
	if cfg.Server.ListenAddr != "" {
		printRow("TCP addr", cfg.Server.ListenAddr)
	}
	if cfg.Server.WSListenAddr != "" {
		printRow("WS addr", cfg.Server.WSListenAddr)
	}
	if cfg.Server.MetricsAddr != "" {
		printRow("Metrics addr", cfg.Server.MetricsAddr)
	}
	if cfg.Server.ListenAddr == "" && cfg.Server.WSListenAddr == "" {
		printRow("Transport", "stdio")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
