package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"vibeshell/internal/config"
	"vibeshell/internal/logging"
)

type configLoader func() (config.Config, error)

func exitOnErr(label string, err error, stderr io.Writer) {
	if err == nil {
		return
	}
	fmt.Fprintf(stderr, "%s error: %v\n", label, err)
	os.Exit(1)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// stderrLogger keeps one-shot commands quiet at the default level; debug
// still gets through.
func stderrLogger(stderr io.Writer, cfg config.Config) logging.Logger {
	level, _ := logging.ParseLevel(cfg.LogLevel())
	if level == logging.Info {
		level = logging.Warn
	}
	return logging.New(stderr, level)
}
