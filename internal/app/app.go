package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/broker/redis"
	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/log"
	transporthttp "github.com/vovakirdan/wirechat-relay/internal/transport/http"
)

const localBrokerBuffer = 256

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	broker          core.Broker
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	broker, err := newBroker(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init broker: %w", err)
	}
	logger.Info().Str("broker", cfg.Broker.Kind).Bool("echo", cfg.Echo).Msg("broker initialized")

	hub := core.NewHub(broker, core.PolicyFromEcho(cfg.Echo), log.Component(logger, "hub"))
	server := transporthttp.NewServer(hub, cfg, log.Component(logger, "http"))

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		broker:          broker,
		log:             logger,
	}, nil
}

func newBroker(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (core.Broker, error) {
	switch cfg.Broker.Kind {
	case config.BrokerRedis:
		return redis.New(ctx, cfg.Broker.RedisURL, cfg.Broker.Channel, log.Component(logger, "redis"))
	case config.BrokerLocal, "":
		return core.NewLocalBroker(localBrokerBuffer), nil
	default:
		return nil, fmt.Errorf("unknown broker kind %q", cfg.Broker.Kind)
	}
}

// Handler exposes the HTTP handler, mostly for tests.
func (a *App) Handler() stdhttp.Handler {
	return a.server.Handler
}

// Run starts the hub and HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)
	hubErr := make(chan error, 1)

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()

	go func() {
		hubErr <- a.hub.Run(hubCtx)
	}()

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		stopHub()
		a.cleanup()
		return err
	case err := <-hubErr:
		if ctx.Err() != nil && err == nil {
			shutdownErr := a.shutdown()
			a.cleanup()
			if shutdownErr != nil {
				return shutdownErr
			}
			return <-serverErr
		}
		a.log.Error().Err(err).Msg("relay hub stopped unexpectedly")
		_ = a.shutdown()
		a.cleanup()
		if err == nil {
			err = core.ErrHubClosed
		}
		return err
	case <-ctx.Done():
		err := a.shutdown()
		stopHub()
		a.cleanup()
		if err != nil {
			return err
		}
		return <-serverErr
	}
}

func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	a.log.Info().Msg("shutting down http server")
	return a.server.Shutdown(shutdownCtx)
}

// cleanup closes the broker and waits for the hub to release its sessions.
func (a *App) cleanup() {
	select {
	case <-a.hub.Done():
	case <-time.After(a.shutdownTimeout):
		a.log.Warn().Msg("hub did not stop in time")
	}
	if err := a.broker.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close broker")
	} else {
		a.log.Info().Msg("broker closed")
	}
}
