package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/oukeidos/fictra/internal/cleanup"
	"github.com/oukeidos/fictra/internal/config"
	"github.com/oukeidos/fictra/internal/credentials"
	"github.com/oukeidos/fictra/internal/files"
	"github.com/oukeidos/fictra/internal/logger"
	"github.com/oukeidos/fictra/internal/providers"
)

// Seams replaced in tests.
var (
	lookupEnv  = os.LookupEnv
	newFactory = func(cfg config.Config) providers.Factory {
		return providers.NewFactory(cfg.ProviderOptions())
	}
)

// setup loads the configuration and installs the global logger. Flags
// override the configured log settings.
func (o *rootOptions) setup() (config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return config.Config{}, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFile != "" {
		cfg.LogFile = o.logFile
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, err
	}

	var logFileW io.Writer
	if cfg.LogFile != "" {
		if err := files.RejectSymlinkPath(cfg.LogFile); err != nil {
			return config.Config{}, err
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to open log file: %w", err)
		}
		cleanup.Register("log file", f.Close)
		logFileW = f
	}
	logger.Init(logger.Options{Level: level, JSON: o.logJSON, File: logFileW})
	return cfg, nil
}

// envKeys reads provider keys from the environment and logs where each
// came from, never the key itself.
func envKeys() map[string]string {
	keys, sources := credentials.FromEnv(lookupEnv)
	for _, s := range sources {
		logger.Info("Using API key", "provider", s.Provider, "source", s.Variable)
	}
	return keys
}

// signalContext cancels on SIGINT/SIGTERM and calls onSignal first, if set.
func signalContext(onSignal func()) (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("Cancellation requested")
			if onSignal != nil {
				onSignal()
			}
			cancel()
		case <-ctx.Done():
		}
	}()
	stop := func() {
		signal.Stop(sigCh)
		cancel()
	}
	return ctx, stop
}
