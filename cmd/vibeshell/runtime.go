package main

import (
	"context"

	"vibeshell/internal/app"
	"vibeshell/internal/config"
	"vibeshell/internal/launcher"
	"vibeshell/internal/logging"
	"vibeshell/internal/opencode"
	"vibeshell/internal/provenance"
	"vibeshell/internal/session"
	"vibeshell/internal/stream"
	"vibeshell/internal/types"
)

// sessionCore is the session machine as the commands use it.
type sessionCore interface {
	app.Core
	Close()
}

type coreFactory func(cfg config.Config, logger logging.Logger) (sessionCore, error)

type clientFactory func(cfg config.Config) (statusClient, error)

type statusClient interface {
	BaseURL() string
	Health(ctx context.Context) (bool, error)
	ListSessions(ctx context.Context) ([]types.Session, error)
}

func newOpenCodeClient(cfg config.Config, logger logging.Logger) (*opencode.Client, error) {
	return opencode.New(opencode.Config{
		BaseURL:  cfg.ServerURL(),
		Username: cfg.ServerUsername(),
		Password: cfg.ServerPassword(),
		Timeout:  cfg.RequestTimeout(),
		Logger:   logger,
	})
}

func newStatusClient(cfg config.Config) (statusClient, error) {
	return newOpenCodeClient(cfg, logging.Nop())
}

// newRuntime assembles the session machine: transport, provenance tagger,
// stream manager and launcher.
func newRuntime(cfg config.Config, logger logging.Logger) (sessionCore, error) {
	client, err := newOpenCodeClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	tagger := provenance.NewTagger()
	events := stream.NewManager(stream.ClientSource(client), stream.Options{
		Policy:     retryPolicy(cfg),
		Classifier: tagger,
		Logger:     logger,
	})
	apps := launcher.New(launcher.Options{
		Terminal: cfg.Terminal(),
		Aliases:  cfg.AppAliases(),
		Logger:   logger,
	})
	return session.New(session.Config{
		Transport:         client,
		Stream:            events,
		Launcher:          apps,
		Tagger:            tagger,
		Title:             cfg.SessionTitle(),
		CorrelateMessages: cfg.CorrelateMessages(),
		HealthAttempts:    cfg.HealthAttempts(),
		HealthInterval:    cfg.HealthInterval(),
		Logger:            logger,
	}), nil
}

func retryPolicy(cfg config.Config) stream.RetryPolicy {
	if cfg.StreamBackoff() == config.BackoffExponential {
		return stream.ExponentialRetry{Base: cfg.ReconnectDelay(), Max: cfg.ReconnectMaxDelay()}
	}
	return stream.FixedRetry{Interval: cfg.ReconnectDelay()}
}
