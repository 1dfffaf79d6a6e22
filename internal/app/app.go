package app

import (
	"context"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/store"
	"github.com/vovakirdan/wirechat-relay/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirechat-relay/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	// The presence log is optional; interfaces stay nil when it is off.
	var (
		st       store.Store
		presence store.PresenceStore
	)
	if cfg.PresenceDBPath != "" {
		sqliteStore, err := sqlite.New(cfg.PresenceDBPath)
		if err != nil {
			return nil, fmt.Errorf("init presence store: %w", err)
		}
		st, presence = sqliteStore, sqliteStore
		logger.Info().Str("db_path", cfg.PresenceDBPath).Msg("presence log enabled")
	}

	var (
		metrics  *core.Metrics
		gatherer prometheus.Gatherer
	)
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = core.NewMetrics(reg)
		gatherer = reg
	}

	hub := core.NewHub(core.Options{
		Logger:            logger,
		Metrics:           metrics,
		Presence:          presence,
		StrictSender:      cfg.StrictSender,
		NotifyDisplaced:   cfg.NotifyDisplaced,
		NackUndeliverable: cfg.NackUndeliverable,
	})
	server := transporthttp.NewServer(hub, presence, gatherer, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	// Hijacked WebSocket connections outlive Shutdown; tie them to ctx instead.
	a.server.BaseContext = func(net.Listener) context.Context { return ctx }

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Int("connections", a.hub.Connections()).Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		// Shutdown does not wait for hijacked WebSocket sessions. Their
		// leave events must reach the store before it closes.
		if err := a.hub.Wait(shutdownCtx); err != nil {
			a.log.Warn().Err(err).Int("connections", a.hub.Connections()).Msg("sessions still open at shutdown")
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
