package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/medops/triage/internal/config"
	"github.com/medops/triage/internal/domain/triage"
	"github.com/medops/triage/internal/domain/vitals"
	"github.com/medops/triage/internal/platform/auth"
	"github.com/medops/triage/internal/platform/db"
	"github.com/medops/triage/internal/platform/events"
	"github.com/medops/triage/internal/platform/logging"
	"github.com/medops/triage/internal/platform/middleware"
	"github.com/medops/triage/internal/platform/websocket"
)

const shutdownTimeout = 10 * time.Second

// app is a fully wired server. Closers run in reverse order on Close.
type app struct {
	cfg     *config.Config
	echo    *echo.Echo
	hub     *websocket.Hub
	ingest  *vitals.MQTTIngest
	closers []func() error
	logger  zerolog.Logger
}

// newApp connects the store and the event sinks and mounts every route.
// Nothing listens until run is called.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, migrate bool) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	var (
		store triage.Store
		repo  vitals.Repository
		pool  *pgxpool.Pool
	)
	switch cfg.StoreBackend {
	case config.StorePostgres:
		var err error
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBSchema, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		logger.Info().Str("schema", cfg.DBSchema).Msg("connected to database")

		if migrate {
			n, err := db.NewMigrator(pool, db.Migrations()).Up(ctx, cfg.DBSchema)
			if err != nil {
				a.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			logger.Info().Int("applied", n).Msg("migrations up to date")
		}
		store = triage.NewStorePG(pool)
		repo = vitals.NewRepoPG(pool)
	default:
		store = triage.NewMemoryStore()
		repo = vitals.NewMemoryRepo()
	}

	a.hub = websocket.NewHub(logger)
	publishers := events.Fanout{a.hub}

	if cfg.EventsRedisAddr != "" {
		client, err := events.NewRedisClient(ctx, cfg.EventsRedisAddr, cfg.EventsRedisPassword, cfg.EventsRedisDB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		publishers = append(publishers, events.NewRedisPublisher(client, cfg.EventsRedisChannel))
		logger.Info().Str("channel", cfg.EventsRedisChannel).Msg("relaying events over redis")
	}
	if len(cfg.EventsKafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.EventsKafkaBrokers, cfg.EventsKafkaTopic))
		a.closers = append(a.closers, kp.Close)
		publishers = append(publishers, kp)
		logger.Info().Str("topic", cfg.EventsKafkaTopic).Msg("handing alerts to kafka")
	}

	triageSvc := triage.NewService(triage.NewQueue(store), publishers, logger)
	vitalsSvc := vitals.NewService(repo, publishers, logger)

	if cfg.MQTTBroker != "" {
		a.ingest = vitals.NewMQTTIngest(vitals.MQTTConfig{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
			Topic:    cfg.MQTTVitalsTopic,
			QoS:      1,
		}, vitalsSvc, logger)
	}

	a.echo = newEcho(cfg, logger, pool, a.hub, triageSvc, vitalsSvc)
	return a, nil
}

func newEcho(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, hub *websocket.Hub, triageSvc *triage.Service, vitalsSvc *vitals.Service) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(echomw.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Auth middleware
	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.AuthSigningKey),
		Skipper:    auth.AuthSkipper,
	}
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":            "ok",
			"store":             cfg.StoreBackend,
			"websocket_clients": hub.ClientCount(),
		})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool, cfg.DBSchema))
	}

	apiV1 := e.Group("/api/v1", middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	triage.NewHandler(triageSvc).RegisterRoutes(apiV1)
	vitals.NewHandler(vitalsSvc).RegisterRoutes(apiV1)

	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(e.Group(""),
		auth.RequireRole(auth.RoleAdmin, auth.RolePhysician, auth.RoleNurse))

	return e
}

// Close releases every connection newApp opened.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn().Err(err).Msg("close")
		}
	}
	a.closers = nil
}

// run serves until ctx is cancelled, then drains in-flight requests.
func (a *app) run(ctx context.Context) error {
	if a.ingest != nil {
		if err := a.ingest.Start(ctx); err != nil {
			return err
		}
		defer a.ingest.Stop()
	}

	addr := a.cfg.Addr()
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", addr).Str("store", a.cfg.StoreBackend).Msg("starting triage server")
		var err error
		if a.cfg.TLSEnabled {
			err = a.echo.StartTLS(addr, a.cfg.TLSCertFile, a.cfg.TLSKeyFile)
		} else {
			err = a.echo.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.echo.Shutdown(shutdownCtx)
}

func newLogger(cfg *config.Config, stdout io.Writer) (zerolog.Logger, io.Closer, error) {
	return logging.New(logging.Options{
		Level:      cfg.LogLevel,
		Console:    cfg.IsDev(),
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	}, stdout)
}

func runServer(migrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, logCloser, err := newLogger(cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, migrate)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		return err
	}
	defer a.Close()

	if err := a.run(ctx); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
