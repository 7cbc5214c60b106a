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

	"tabload/internal/config"
	"tabload/internal/metrics"
	"tabload/internal/metrics/datadog"
	"tabload/internal/server"
	"tabload/internal/session"

	// register all file decoders and warehouse backends.
	_ "tabload/internal/ingest/decoder/all"
	_ "tabload/internal/warehouse/all"
)

func main() {
	// Local .env wins over inherited environment, same as running the
	// server from a checkout with a dev config.
	_ = godotenv.Overload()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsBackend == "datadog" {
		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName: cfg.JobName,
			Tags:    datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS")),
		})
		if err != nil {
			log.Warn("metrics: datadog init failed, using nop", "err", err)
		} else {
			metrics.SetBackend(b)
			defer func() {
				if err := b.Close(); err != nil {
					log.Warn("metrics: close/flush", "err", err)
				}
			}()
		}
	}

	sess, closeSess := buildSession(ctx, log, cfg)
	defer closeSess()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.New(log, cfg, sess).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.ListenAddr, "warehouse", cfg.WarehouseKind)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown", "err", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("serve", "err", err)
			os.Exit(1)
		}
	}
}

// buildSession picks the session provider. Postgres destinations get a live
// catalog; everything else reports the configured static target.
func buildSession(ctx context.Context, log *slog.Logger, cfg *config.Config) (session.Provider, func()) {
	static := &session.Static{
		Ctx: session.Context{Database: cfg.Database, Schema: cfg.Schema},
	}

	if cfg.WarehouseKind != "postgres" {
		return static, func() {}
	}

	dsn := cfg.SessionDSN
	if dsn == "" {
		dsn = cfg.WarehouseDSN
	}
	p, err := session.NewPostgres(ctx, dsn)
	if err != nil {
		log.Warn("session catalog unavailable, using static", "err", err)
		return static, func() {}
	}
	return p, p.Close
}
