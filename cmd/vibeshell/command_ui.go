package main

import (
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"

	"vibeshell/internal/app"
	"vibeshell/internal/config"
	"vibeshell/internal/logging"
	"vibeshell/internal/store"
)

type uiRunner func(ctx context.Context, opts app.Options) error

type UICommand struct {
	stderr     io.Writer
	loadConfig configLoader
	newCore    coreFactory
	runUI      uiRunner
}

func NewUICommand(stderr io.Writer, loadConfig configLoader, newCore coreFactory, run uiRunner) *UICommand {
	return &UICommand{
		stderr:     stderr,
		loadConfig: loadConfig,
		newCore:    newCore,
		runUI:      run,
	}
}

func (c *UICommand) Run(args []string) error {
	fs := flag.NewFlagSet("ui", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	template := fs.String("template", "", "template to start with: default|minimal|cherry")
	noSignal := fs.Bool("no-signal", false, "do not watch the command signal file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog := openUILogger(cfg, c.stderr)
	defer closeLog()

	core, err := c.newCore(cfg, logger)
	if err != nil {
		return err
	}
	defer core.Close()

	prefs := openPreferenceStore(logger)
	opts := app.Options{
		Core:     core,
		Title:    cfg.SessionTitle(),
		Template: cfg.Template(),
		Logger:   logger,
	}
	if *template != "" {
		opts.Template = *template
	}
	if prefs != nil {
		defer prefs.Close()
		opts.Preferences = prefs
	}
	if cfg.SignalEnabled() && !*noSignal {
		opts.SignalPath = cfg.SignalPath()
		opts.SignalInterval = cfg.SignalPollInterval()
	}

	ctx, stop := signalContext()
	defer stop()
	logger.Info("ui starting", logging.F("server", cfg.ServerURL()), logging.F("title", cfg.SessionTitle()))
	return c.runUI(ctx, opts)
}

func runUI(ctx context.Context, opts app.Options) error {
	return app.Run(ctx, opts)
}

// openUILogger writes to the configured log file so the terminal stays
// clean. It falls back to a no-op logger when the file cannot be opened.
func openUILogger(cfg config.Config, stderr io.Writer) (logging.Logger, func()) {
	level, _ := logging.ParseLevel(cfg.LogLevel())
	path, err := cfg.LogPath()
	if err != nil {
		return logging.Nop(), func() {}
	}
	logger, closer, err := logging.OpenFile(path, level)
	if err != nil {
		logging.New(stderr, logging.Warn).Warn("ui log unavailable", logging.F("path", path), logging.Err(err))
		return logging.Nop(), func() {}
	}
	return logger, func() { _ = closer.Close() }
}

// openPreferenceStore returns nil when neither backend can be opened; the UI
// then runs without persisted preferences.
func openPreferenceStore(logger logging.Logger) store.PreferenceStore {
	dbPath, err := config.StatePath()
	if err != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		logger.Warn("data dir unavailable", logging.Err(err))
		return nil
	}
	jsonPath := filepath.Join(filepath.Dir(dbPath), "preferences.json")
	prefs, err := store.OpenPreferences(dbPath, jsonPath, logger)
	if err != nil {
		logger.Warn("preferences unavailable", logging.Err(err))
		return nil
	}
	return prefs
}
