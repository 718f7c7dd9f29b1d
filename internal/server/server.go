package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"vsnplyr/internal/config"
	"vsnplyr/internal/gateway"
	"vsnplyr/internal/live"
	"vsnplyr/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// Pinger reports whether the store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// PlaylistServer serves the RPC methods, the live subscriptions and the
// health check
type PlaylistServer struct {
	gw         *gateway.Gateway
	db         Pinger
	bus        *live.Bus
	registry   *session.Registry
	config     *config.Config
	logger     *logrus.Logger
	methods    map[string]methodHandler
	httpServer *http.Server

	// baseCtx parents every request context; cancelled on Shutdown so
	// open subscriptions end.
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// NewPlaylistServer creates a server instance
func NewPlaylistServer(cfg *config.Config, gw *gateway.Gateway, db Pinger, bus *live.Bus, registry *session.Registry, logger *logrus.Logger) *PlaylistServer {
	baseCtx, cancel := context.WithCancel(context.Background())
	ps := &PlaylistServer{
		gw:         gw,
		db:         db,
		bus:        bus,
		registry:   registry,
		config:     cfg,
		logger:     logger,
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
	ps.methods = ps.methodTable()
	ps.httpServer = &http.Server{
		Addr:         cfg.GetAddress(),
		Handler:      ps.Router(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return baseCtx
		},
	}
	return ps
}

// Router builds the HTTP routes
func (ps *PlaylistServer) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(ps.panicRecoveryMiddleware)
	r.Use(ps.requestLoggingMiddleware)
	r.Use(ps.corsMiddleware)

	r.Get("/health", ps.handleHealthCheck)
	r.Post("/rpc/{method}", ps.handleRPC)
	r.Get("/ws/playlists", ps.handleWatchPlaylists)
	r.Get("/ws/playlists/{id}/songs", ps.handleWatchPlaylistSongs)

	return r
}

// Start listens on the configured address until Shutdown is called
func (ps *PlaylistServer) Start() error {
	ps.logger.WithField("address", ps.config.GetAddress()).Info("vsnplyr server starting")

	if err := ps.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server and ends open subscriptions
func (ps *PlaylistServer) Shutdown(ctx context.Context) error {
	ps.logger.Info("Shutting down playlist server...")
	ps.cancelBase()
	if err := ps.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	ps.logger.Info("Playlist server shutdown complete")
	return nil
}
