package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/dhamidi/localchat/config"
	"github.com/dhamidi/localchat/history"
)

// die prints a formatted error message to stderr and exits with status 1.
func die(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format, a...)
	if !strings.HasSuffix(format, "\n") {
		fmt.Fprintln(os.Stderr)
	}
	os.Exit(1)
}

// app bundles what every command needs once configuration is loaded.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *history.Store
	closers []io.Closer
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("closing resource failed", "error", err)
		}
	}
}

func addConfigFlag(flags *pflag.FlagSet) *string {
	return flags.String("config", "", "Path to a YAML configuration file (default $LOCALCHAT_CONFIG)")
}

// setup loads configuration and opens the conversation store.
func setup(configPath string, override func(*config.Config)) *app {
	cfg, err := config.Load(configPath)
	if err != nil {
		die("Error loading configuration: %v", err)
	}
	if override != nil {
		override(cfg)
		if err := cfg.Validate(); err != nil {
			die("Error: %v", err)
		}
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}
	surface, err := openSurface(cfg)
	if err != nil {
		die("Error opening conversation store: %v", err)
	}
	if c, ok := surface.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	a.store = history.NewStore(surface,
		history.WithCapacity(cfg.Store.Capacity),
		history.WithLogger(logger.With("component", "history")))
	return a
}

func newLogger(cfg *config.Config) *slog.Logger {
	level, _ := cfg.LogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func openSurface(cfg *config.Config) (history.Surface, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return history.NewMemorySurface(), nil
	case config.BackendFile:
		return history.NewFileSurface(afero.NewOsFs(), cfg.Store.Path), nil
	default:
		return history.OpenSQLiteSurface(cfg.Store.Path)
	}
}
