package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"pickup-games/internal"
	"pickup-games/internal/config"
	"pickup-games/internal/notify"
	"pickup-games/internal/participation"
	"pickup-games/internal/sessionlock"
	"pickup-games/internal/storage/sqlstore"
	"pickup-games/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.Tracing{
		ServiceName:    "pickup-games",
		ServiceVersion: cfg.ServiceVersion,
		Endpoint:       cfg.OTELEndpoint,
		SampleRatio:    cfg.OTELSampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	var db *sqlstore.Store
	switch cfg.StoreDriver {
	case sqlstore.DriverSQLite:
		db, err = sqlstore.OpenSQLite(ctx, cfg.SQLitePath)
	default:
		db, err = sqlstore.OpenPostgres(ctx, cfg.DatabaseURL)
	}
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("store ready", "driver", db.Driver())

	var locker participation.Locker = sessionlock.NewKeyed()
	if cfg.LockBackend == config.LockRedis {
		client, err := sessionlock.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		locker = sessionlock.NewRedis(client, cfg.LockTTL, logger)
	}

	hub := notify.NewHub(logger)
	dispatcher := notify.NewDispatcher(db, notify.DispatcherOptions{
		QueueSize: cfg.NotifyQueueSize,
		Publisher: hub,
		Logger:    logger,
	})

	policy, err := participation.ParseReservePolicy(cfg.ReservePolicy)
	if err != nil {
		return err
	}
	engine := participation.NewEngine(db, participation.Options{
		Locker:        locker,
		Notifier:      dispatcher,
		Events:        db,
		ReservePolicy: policy,
		Logger:        logger,
	})

	if cfg.GRPCHealthAddr != "" {
		hs, err := telemetry.NewHealthServer(cfg.GRPCHealthAddr, db, 0, logger)
		if err != nil {
			return err
		}
		go func() {
			if err := hs.Serve(ctx); err != nil {
				logger.Error("health server stopped", "error", err)
			}
		}()
		logger.Info("gRPC health listening", "addr", hs.Addr())
	}

	gin.SetMode(gin.ReleaseMode)
	router := internal.NewRouter(internal.Deps{
		Store:  db,
		Engine: engine,
		Inbox:  notify.NewInbox(db, nil),
		Hub:    hub,
		Auth: internal.AuthConfig{
			Secret:       cfg.JWTSecret,
			AdminEmail:   cfg.AdminEmail,
			CookieSecure: cfg.CookieSecure,
		},
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("notification drain", "error", err)
	}
	return nil
}
