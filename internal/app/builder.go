package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/pagepulse/comment-sync/internal/api"
	v1 "github.com/pagepulse/comment-sync/internal/api/v1"
	"github.com/pagepulse/comment-sync/internal/app/storage"
	"github.com/pagepulse/comment-sync/internal/config"
	"github.com/pagepulse/comment-sync/internal/detect"
	"github.com/pagepulse/comment-sync/internal/sources"
	"github.com/pagepulse/comment-sync/internal/status"
	pkgsync "github.com/pagepulse/comment-sync/internal/sync"
	"github.com/pagepulse/comment-sync/internal/sync/coordinator"
	"github.com/pagepulse/comment-sync/internal/telemetry"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second
)

// CommentSyncAppOptions is a function that configures the app builder
type CommentSyncAppOptions func(*commentSyncAppConfig) error

// commentSyncAppConfig collects the builder inputs.
// Component overrides exist mainly for testing; production uses the defaults built from config.
type commentSyncAppConfig struct {
	config *config.Config

	// Optional component overrides
	storageFactory storage.Factory
	source         sources.Source
	syncManager    pkgsync.Manager

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metricsHandler http.Handler
}

func baseConfig(opts ...CommentSyncAppOptions) (*commentSyncAppConfig, error) {
	cfg := &commentSyncAppConfig{
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// NewCommentSyncApp wires the cursor store, sink, sync manager, coordinator
// and admin HTTP server described by the configuration.
func NewCommentSyncApp(
	ctx context.Context,
	opts ...CommentSyncAppOptions,
) (*CommentSyncApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.address == "" {
		cfg.address = cfg.config.GetAdminAddress()
	}

	// Single decision point for database vs local storage
	if cfg.storageFactory == nil {
		cfg.storageFactory, err = storage.NewStorageFactory(ctx, cfg.config)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
	}

	components := &AppComponents{}
	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			if err := closeComponents(components, cfg.storageFactory); err != nil {
				slog.Error("Failed to release components", "error", err)
			}
		}
	}()

	components.CursorStore, err = cfg.storageFactory.CreateCursorStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create cursor store: %w", err)
	}

	components.Sink, err = cfg.storageFactory.CreateSink(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create sink: %w", err)
	}

	components.StatusTracker = status.NewTracker(nil)

	components.SyncCoordinator, err = buildSyncComponents(cfg, components)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}

	var httpServer *http.Server
	if cfg.config.AdminEnabled() {
		httpServer, err = buildHTTPServer(cfg, components)
		if err != nil {
			return nil, fmt.Errorf("failed to build HTTP server: %w", err)
		}
	} else {
		slog.Info("Admin HTTP server disabled")
	}

	appCtx, cancel := context.WithCancel(ctx)

	// The app owns cleanup from here on
	cleanupNeeded = false

	return &CommentSyncApp{
		config:         cfg.config,
		components:     components,
		storageFactory: cfg.storageFactory,
		httpServer:     httpServer,
		ctx:            appCtx,
		cancelFunc:     cancel,
		done:           make(chan struct{}),
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) CommentSyncAppOptions {
	return func(cfg *commentSyncAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address, overriding admin.address
func WithAddress(addr string) CommentSyncAppOptions {
	return func(cfg *commentSyncAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) CommentSyncAppOptions {
	return func(cfg *commentSyncAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory (for testing)
func WithStorageFactory(f storage.Factory) CommentSyncAppOptions {
	return func(cfg *commentSyncAppConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithSource allows injecting a custom comment source (for testing)
func WithSource(s sources.Source) CommentSyncAppOptions {
	return func(cfg *commentSyncAppConfig) error {
		cfg.source = s
		return nil
	}
}

// WithSyncManager allows injecting a custom sync manager (for testing)
func WithSyncManager(sm pkgsync.Manager) CommentSyncAppOptions {
	return func(cfg *commentSyncAppConfig) error {
		cfg.syncManager = sm
		return nil
	}
}

// WithMeterProvider enables sync and HTTP metrics
func WithMeterProvider(mp metric.MeterProvider) CommentSyncAppOptions {
	return func(cfg *commentSyncAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider enables tracing of sync passes and HTTP requests
func WithTracerProvider(tp trace.TracerProvider) CommentSyncAppOptions {
	return func(cfg *commentSyncAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// WithMetricsHandler serves h at /metrics on the admin server
func WithMetricsHandler(h http.Handler) CommentSyncAppOptions {
	return func(cfg *commentSyncAppConfig) error {
		cfg.metricsHandler = h
		return nil
	}
}

// buildSyncComponents builds the sync manager and the coordinator that schedules it
func buildSyncComponents(
	b *commentSyncAppConfig,
	components *AppComponents,
) (coordinator.Coordinator, error) {
	slog.Info("Initializing sync components")

	if b.syncManager == nil {
		if b.source == nil {
			source, err := sources.NewSourceFromConfig(b.config)
			if err != nil {
				return nil, fmt.Errorf("failed to create source: %w", err)
			}
			b.source = source
		}

		classifier, err := detect.NewClassifier(b.config.Sync.GetStrategy())
		if err != nil {
			return nil, err
		}

		b.syncManager = pkgsync.NewDefaultSyncManager(
			b.source,
			components.CursorStore,
			classifier,
			components.Sink,
			pkgsync.WithServerSideSince(b.config.Source.Facebook.UseServerSideSince()),
			pkgsync.WithPhaseObserver(components.StatusTracker.Observe),
			pkgsync.WithTracerProvider(b.tracerProvider),
		)
	}

	coordOpts := []coordinator.Option{
		coordinator.WithStatusTracker(components.StatusTracker),
	}

	if persistence := b.storageFactory.CreateStatusPersistence(); persistence != nil {
		coordOpts = append(coordOpts, coordinator.WithStatusPersistence(persistence))
		slog.Info("Sync status persistence enabled", "path", b.config.Sync.StatusFile)
	}

	if b.meterProvider != nil {
		syncMetrics, err := telemetry.NewSyncMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create sync metrics: %w", err)
		}
		if syncMetrics != nil {
			coordOpts = append(coordOpts, coordinator.WithSyncMetrics(syncMetrics))
			slog.Info("Sync metrics enabled")
		}
	}

	syncCoordinator := coordinator.New(b.syncManager, b.config, coordOpts...)
	slog.Info("Sync components initialized successfully",
		"strategy", b.config.Sync.GetStrategy(),
		"interval", b.config.Sync.GetInterval())

	return syncCoordinator, nil
}

// buildHTTPServer builds the admin HTTP server with router and middleware
func buildHTTPServer(
	b *commentSyncAppConfig,
	components *AppComponents,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Telemetry middlewares go first so they see every request
	var telemetryMiddlewares []func(http.Handler) http.Handler
	if b.meterProvider != nil {
		metricsMiddleware, err := telemetry.MetricsMiddleware(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		if metricsMiddleware != nil {
			telemetryMiddlewares = append(telemetryMiddlewares, metricsMiddleware)
			slog.Info("HTTP metrics middleware enabled")
		}
	}
	if b.tracerProvider != nil {
		telemetryMiddlewares = append(telemetryMiddlewares, telemetry.TracingMiddleware(b.tracerProvider))
		slog.Info("HTTP tracing middleware enabled")
	}
	b.middlewares = append(telemetryMiddlewares, b.middlewares...)

	routes := v1.NewRoutes(
		components.CursorStore,
		components.Sink,
		v1.WithCoordinator(components.SyncCoordinator),
	)

	router := api.NewServer(routes,
		api.WithMiddlewares(b.middlewares...),
		api.WithMetricsHandler(b.metricsHandler),
	)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}

// closeComponents closes the store and sink before releasing the factory's shared resources
func closeComponents(components *AppComponents, factory storage.Factory) error {
	var errs []error
	if components != nil {
		if components.Sink != nil {
			if err := components.Sink.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close sink: %w", err))
			}
		}
		if components.CursorStore != nil {
			if err := components.CursorStore.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close cursor store: %w", err))
			}
		}
	}
	if factory != nil {
		factory.Cleanup()
	}
	return errors.Join(errs...)
}
