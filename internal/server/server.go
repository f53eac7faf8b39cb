// Package server wires storage, the bridge host, plugins and transports
// into the long-running brainoverflow process.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/grpc"

	"github.com/lewisedginton/brainoverflow/internal/app"
	"github.com/lewisedginton/brainoverflow/internal/bridge"
	appconfig "github.com/lewisedginton/brainoverflow/internal/config"
	"github.com/lewisedginton/brainoverflow/internal/events"
	"github.com/lewisedginton/brainoverflow/internal/journal"
	"github.com/lewisedginton/brainoverflow/internal/journal/sqlc"
	"github.com/lewisedginton/brainoverflow/internal/middleware"
	"github.com/lewisedginton/brainoverflow/internal/monitoring"
	"github.com/lewisedginton/brainoverflow/internal/scripting"
	"github.com/lewisedginton/brainoverflow/internal/snippets"
	"github.com/lewisedginton/brainoverflow/internal/storage_manager"
	"github.com/lewisedginton/brainoverflow/internal/transport/httpapi"
	"github.com/lewisedginton/brainoverflow/pkg/health"
	"github.com/lewisedginton/brainoverflow/pkg/httpmiddleware"
	"github.com/lewisedginton/brainoverflow/pkg/logger"
	"github.com/lewisedginton/brainoverflow/pkg/metrics"
	"github.com/lewisedginton/brainoverflow/pkg/utils"
)

const closeTimeout = 30 * time.Second

// Server encapsulates all components and their lifecycle.
type Server struct {
	cfg *appconfig.AppConfig
	log logger.Logger

	storageManager *storage_manager.StorageManager
	hub            *events.Hub
	metrics        *metrics.Metrics
	pool           *pgxpool.Pool
	healthMonitor  *monitoring.HealthMonitor
	app            *app.App
}

// New builds every component. Nothing listens and no hosted service runs
// until Run.
func New(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger) (*Server, error) {
	s := &Server{
		cfg: cfg,
		log: log,
		hub: events.NewHub(events.DefaultBufferSize, log),
		metrics: metrics.NewMetrics(
			cfg.Metrics.EnableHTTPMetrics,
			cfg.GRPCPort > 0,
			cfg.Metrics.EnableBridgeMetrics,
			log,
		),
	}

	var err error
	s.storageManager, err = storage_manager.New(ctx, cfg.Storage.ManagerConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage manager: %w", err)
	}

	host := bridge.NewHost(
		bridge.WithLogger(log),
		bridge.WithCallTimeout(cfg.CallTimeout),
		bridge.WithMiddleware(
			middleware.Metrics(s.metrics),
			middleware.Logging(log),
		),
	)

	builder := app.New(app.Services{
		Host:    host,
		Events:  s.hub,
		Storage: s.storageManager,
		Logger:  log,
	}).InvokeHandler()

	observeInterval := time.Duration(0)
	if cfg.Observer.Enabled {
		observeInterval = cfg.Observer.Interval
	}
	builder.Plugin(snippets.Plugin{ObserveInterval: observeInterval})

	if cfg.Scripting.Dir != "" {
		builder.Plugin(scripting.Plugin{Dir: cfg.Scripting.Dir, Timeout: cfg.Scripting.Timeout})
	}

	if cfg.Database.Enabled() {
		s.pool, err = journal.Open(ctx, cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal database: %w", err)
		}
		builder.Plugin(journal.Plugin{Journal: journal.New(sqlc.New(s.pool), journal.DefaultBufferSize, log)})
	}

	s.app, err = builder.Build()
	if err != nil {
		s.closePool()
		return nil, err
	}

	monitorCfg := monitoring.Config{
		Logger:           log,
		Store:            s.storageManager,
		Timeout:          cfg.Health.Timeout,
		FailureThreshold: cfg.Health.FailureThreshold,
	}
	if s.pool != nil {
		monitorCfg.Database = s.pool
	}
	s.healthMonitor = monitoring.NewHealthMonitor(monitorCfg)

	log.Info("Server components ready",
		logger.StringField("controllers", fmt.Sprint(host.Controllers())),
		logger.StringField("hosted_services", fmt.Sprint(s.app.HostedServices())))

	return s, nil
}

// App returns the built application.
func (s *Server) App() *app.App {
	return s.app
}

// Run starts hosted services, then the transports, and blocks until a
// signal, ctx cancellation or a component failure. Hosted services start
// first so a failing one prevents any transport from listening.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.Close()

	hostedErrs, err := s.app.Start(ctx)
	if err != nil {
		return err
	}

	listeners := []chan error{hostedErrs}
	fail := func(err error) error {
		cancel()
		for range utils.MergeErrorChans(listeners...) {
		}
		return err
	}

	httpErrs, err := s.listenHTTP(ctx)
	if err != nil {
		return fail(err)
	}
	listeners = append(listeners, httpErrs)

	if s.cfg.GRPCPort > 0 {
		grpcErrs, err := s.listenGRPC(ctx)
		if err != nil {
			return fail(err)
		}
		listeners = append(listeners, grpcErrs)
	}

	if s.cfg.Metrics.ExposeMetrics {
		listeners = append(listeners, s.metrics.Listen(ctx, s.cfg.Metrics.Port))
	}

	s.log.Info("Server started",
		logger.IntField("http_port", s.cfg.HTTP.Port),
		logger.IntField("grpc_port", s.cfg.GRPCPort),
		logger.StringField("store", s.cfg.Storage.Path()))

	errs := utils.MergeErrorChans(listeners...)

	var runErr error
	select {
	case <-ctx.Done():
		s.log.Info("Shutdown signal received")
	case err, ok := <-errs:
		if ok {
			runErr = err
			s.log.Error("Component failed, shutting down", logger.ErrorField(err))
		}
	}

	s.healthMonitor.MarkShuttingDown()
	cancel()

	for err := range errs {
		if runErr == nil {
			runErr = err
			continue
		}
		s.log.Error("Component failed during shutdown", logger.ErrorField(err))
	}

	s.log.Info("Server stopped")
	return runErr
}

// Close pushes pending store changes and releases the database.
func (s *Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := s.storageManager.Close(ctx); err != nil {
		s.log.Error("Failed to flush store", logger.ErrorField(err))
	}
	s.hub.Close()
	s.closePool()
}

func (s *Server) closePool() {
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
}

func (s *Server) listenHTTP(ctx context.Context) (chan error, error) {
	mw := httpmiddleware.DefaultConfig()
	mw.Logger = s.log
	mw.EnableLogging = true
	mw.Extra = []func(http.Handler) http.Handler{s.metrics.HTTPMiddleware()}
	if len(s.cfg.Security.CORSAllowedOrigins) > 0 {
		mw.CORS.AllowedOrigins = s.cfg.Security.CORSAllowedOrigins
	}
	if s.cfg.Security.PathPrefix != "" {
		mw.StripPrefix = s.cfg.Security.PathPrefix
		mw.EnableStripPrefix = true
	}

	router := httpapi.NewRouter(httpapi.Options{
		Commands:     s.app.Commands(),
		Events:       s.hub.WebsocketHandler(),
		Health:       s.healthMonitor,
		Middleware:   mw,
		MaxBodyBytes: s.cfg.HTTP.MaxBodyBytes,
		Logger:       s.log,
	})

	srv := &http.Server{
		Addr:           s.cfg.HTTP.Addr(),
		Handler:        router,
		ReadTimeout:    s.cfg.HTTP.ReadTimeout(),
		WriteTimeout:   s.cfg.HTTP.WriteTimeout(),
		IdleTimeout:    s.cfg.HTTP.IdleTimeout(),
		MaxHeaderBytes: s.cfg.HTTP.MaxHeaderBytes,
	}
	return utils.ListenHTTP(ctx, srv, s.log)
}

func (s *Server) listenGRPC(ctx context.Context) (chan error, error) {
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		logger.UnaryServerInterceptor(s.log),
		s.metrics.UnaryServerInterceptor(),
	))
	s.healthMonitor.Checker().RegisterWithGRPC(ctx, grpcServer, health.DefaultGRPCUpdateInterval)

	errs, err := utils.ListenGRPC(ctx, grpcServer, s.cfg.GRPCPort, s.log)
	if err != nil {
		return nil, fmt.Errorf("failed to start gRPC server: %w", err)
	}
	return errs, nil
}

// Invoke runs one command in-process without starting any transport.
// Hosted services run for the duration of the call and are drained before
// Invoke returns.
func (s *Server) Invoke(ctx context.Context, command, request string) (string, error) {
	var out string
	err := s.app.Exec(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.app.Commands().InvokeContext(ctx, command, request)
		return err
	})
	if errors.Is(err, bridge.ErrUnknownCommand) {
		return "", fmt.Errorf("%w (available: %v)", err, s.app.Commands().Names())
	}
	return out, err
}
