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

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"famledger/internal/auth"
	"famledger/internal/config"
	"famledger/internal/core"
	"famledger/internal/docstore"
	"famledger/internal/docstore/memory"
	"famledger/internal/docstore/sqlite"
	"famledger/internal/export"
	"famledger/internal/feed"
	feedamqp "famledger/internal/feed/amqp"
	apphttp "famledger/internal/http"
	applog "famledger/internal/log"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Level: logLevel(), Component: applog.ComponentApp})
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	bus := feed.NewBus()
	shape := core.TaxonomyShape(cfg.TaxonomyShape)

	var (
		store  docstore.Store
		closer func() error
	)
	switch cfg.DataBackend {
	case "sqlite":
		st, err := sqlite.New(cfg.SQLiteDBPath, shape, bus)
		if err != nil {
			logger.Error("Failed to open SQLite store", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		store, closer = st, st.Close
		logger.Info("Initialized SQLite backend", "path", cfg.SQLiteDBPath)
	default:
		store = memory.New(shape, bus)
		logger.Info("Initialized memory backend")
	}
	if closer != nil {
		defer closer()
	}

	// Forward store notifications to RabbitMQ so worker processes (the
	// sheets mirror) see the same feed the in-process sessions do.
	if cfg.AMQPURL != "" {
		amqpClient, err := feedamqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to connect to AMQP", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		bus.Subscribe(func(ctx context.Context, n feed.Notification) error {
			if err := amqpClient.Publish(ctx, n); err != nil {
				// Sessions already reconciled; the worker catches up on
				// its next periodic pass.
				logger.WarnContext(ctx, "Failed to forward notification to AMQP", "error", err)
			}
			return nil
		})
		logger.Info("Forwarding notifications to AMQP", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	}

	provider := auth.NewLocal(store, cfg.JWTSecret, cfg.SessionTTL, logger.Logger)

	srv := apphttp.NewServer(":"+cfg.Port, store, provider, bus,
		cfg.CurrencySymbol, export.Variant(cfg.ExportVariant), cfg.SessionTTL)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting famledger server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"taxonomy_shape", cfg.TaxonomyShape)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func logLevel() slog.Level {
	if os.Getenv("LOG_LEVEL") == "debug" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
