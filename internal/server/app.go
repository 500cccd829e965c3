package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/pricewatch/core/logger"
	"github.com/m3rciful/pricewatch/internal/server/api"
	"github.com/m3rciful/pricewatch/internal/server/auth"
	"github.com/m3rciful/pricewatch/internal/server/maintenance"
	"github.com/m3rciful/pricewatch/internal/server/media"
	"github.com/m3rciful/pricewatch/internal/server/pricesource"
	"github.com/m3rciful/pricewatch/internal/server/storage"
)

const shutdownTimeout = 10 * time.Second

// App owns the backend's lifecycle.
type App struct {
	cfg     *Config
	http    *http.Server
	sweeper *maintenance.Sweeper
	redis   *redis.Client
}

// NewApp connects the dependencies and builds the HTTP server. The caller
// supplies an already migrated database handle.
func NewApp(ctx context.Context, cfg *Config, db *sqlx.DB) (*App, error) {
	store := storage.New(db)

	issuer, err := auth.NewIssuer(cfg.Auth)
	if err != nil {
		return nil, err
	}

	var wbOpts []pricesource.Option
	if cfg.Source.CardURL != "" {
		wbOpts = append(wbOpts, pricesource.WithCardURL(cfg.Source.CardURL))
	}
	var source pricesource.Source = pricesource.NewWildberries(wbOpts...)

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		source = pricesource.NewCached(source, rdb, cfg.Redis.TTL())
	}

	mediaStore, err := media.NewS3(ctx, cfg.Media)
	if err != nil {
		return nil, err
	}

	handler := api.NewHandler(store, issuer, source, mediaStore)
	app := &App{
		cfg:     cfg,
		redis:   rdb,
		sweeper: maintenance.NewSweeper(store, cfg.Maintenance),
		http: &http.Server{
			Addr:              cfg.Listen,
			Handler:           handler.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	return app, nil
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.sweeper.Start(); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "server", "listening", slog.String("addr", a.cfg.Listen))
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.sweeper.Stop()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := a.http.Shutdown(shutdownCtx)
	a.sweeper.Stop()
	if a.redis != nil {
		_ = a.redis.Close()
	}
	logger.Info(logger.Background(), "server", "stopped")
	return err
}
