// Package api exposes the tracking backend's HTTP contract.
package api

import (
	"context"
	"net/http"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/m3rciful/pricewatch/core/logger"
	"github.com/m3rciful/pricewatch/internal/models"
	"github.com/m3rciful/pricewatch/internal/passhash"
	"github.com/m3rciful/pricewatch/internal/server/auth"
	"github.com/m3rciful/pricewatch/internal/server/media"
	"github.com/m3rciful/pricewatch/internal/server/pricesource"
	"github.com/m3rciful/pricewatch/internal/server/storage"
)

// Store is the slice of the storage layer the handlers use.
type Store interface {
	CreateUser(ctx context.Context, in models.AccountCreate, hashedPassword string) (*models.Account, error)
	UserByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	UserByTelegramID(ctx context.Context, telegramID int64) (*models.Account, error)
	UserByEmail(ctx context.Context, email string) (*models.Account, error)
	UpdateUser(ctx context.Context, id uuid.UUID, patch models.AccountUpdate, hashedPassword *string) (*models.Account, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error

	Tracks(ctx context.Context, f storage.TrackFilter) ([]models.Track, error)
	TrackByID(ctx context.Context, id int64) (*models.Track, error)
	CreateTrack(ctx context.Context, tr models.Track) (*models.Track, error)
	UpdateTrack(ctx context.Context, id int64, patch models.TrackUpdate) (*models.Track, error)
	DeleteTrack(ctx context.Context, id int64) (*models.Track, error)

	History(ctx context.Context, trackID int64) ([]models.PriceHistoryEntry, error)
	AppendHistory(ctx context.Context, trackID int64, price decimal.Decimal) (*models.PriceHistoryEntry, error)

	SaveToken(ctx context.Context, userID uuid.UUID, accessToken string) error
}

// Handler wires the HTTP routes to storage, auth, the price source, and
// media storage.
type Handler struct {
	store  Store
	issuer *auth.Issuer
	source pricesource.Source
	media  media.Store

	hashParams passhash.Params
}

func NewHandler(store Store, issuer *auth.Issuer, source pricesource.Source, mediaStore media.Store) *Handler {
	return &Handler{
		store:      store,
		issuer:     issuer,
		source:     source,
		media:      mediaStore,
		hashParams: passhash.DefaultParams,
	}
}

// Router assembles the full route tree.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Post("/auth/register", h.register)
	r.Post("/auth/jwt/login", h.login)
	r.Post("/users/check-telegram-id", h.checkTelegramID)
	r.Post("/users/check-email", h.checkEmail)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Get("/users/me", h.me)
		r.Patch("/users/me", h.updateMe)
		r.Patch("/users/me/refresh", h.refreshToken)
		r.Post("/users/me/avatar", h.uploadAvatar)
		r.Delete("/users/{id}", h.deleteUser)

		r.Get("/tracks", h.listTracks)
		r.Post("/tracks", h.createTrack)
		r.Patch("/tracks/refresh/{id}", h.refreshTrack)
		r.Get("/tracks/compare-price/{id}", h.comparePrice)
		r.Patch("/tracks/{id}", h.updateTrack)
		r.Delete("/tracks/{id}", h.deleteTrack)

		r.Get("/price-history/{id}", h.listHistory)
		r.Post("/price-history/{id}", h.appendHistory)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.LogEvent(r.Context(), logger.SRV, slog.LevelInfo, "http_request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", logger.Took(start)),
		)
	})
}
