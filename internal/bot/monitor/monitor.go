// Package monitor runs the per-user recurring price check: on every tick
// it refreshes each of the user's tracks through the backend, notifies the
// chat exactly once when a price crosses its target, and appends a price
// history sample.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/pricewatch/core/logger"
	"github.com/m3rciful/pricewatch/internal/bot/backend"
	"github.com/m3rciful/pricewatch/internal/models"
)

const (
	priceReachedText = "🎉 Цена на товар %s опустилась до нужной!"
	tokenExpiredText = "⛔ Срок действия токена истёк. Авторизуйтесь снова."
	fetchFailedText  = "⛔ Ошибка получения данных: %v"
)

// TrackAPI is the slice of the backend client a tick needs.
type TrackAPI interface {
	Tracks(ctx context.Context, token string) ([]models.Track, error)
	RefreshTrack(ctx context.Context, token string, id int64) (*models.Track, error)
	UpdateTrack(ctx context.Context, token string, id int64, in models.TrackUpdate) (*models.Track, error)
	AppendPriceHistory(ctx context.Context, token string, trackID int64) error
}

// Notifier delivers a plain-text message to a chat. The bot runtime
// backs it with the outbound dispatcher.
type Notifier interface {
	Notify(chatID int64, text string) error
}

// Checker performs one monitoring pass for a single user.
type Checker struct {
	api    TrackAPI
	notify Notifier
}

// NewChecker wires a Checker over the backend client and the outbound
// notifier.
func NewChecker(api TrackAPI, notify Notifier) *Checker {
	return &Checker{api: api, notify: notify}
}

// ErrTokenExpired aborts the job: the stored bearer token was rejected
// by the backend and no further tick can succeed.
var ErrTokenExpired = errors.New("monitor: token expired")

// Check runs one tick for a user's tracks. A failure on one track skips
// only that track; ErrTokenExpired is returned after the chat has been
// told to re-authenticate, and the caller must deregister the job.
func (c *Checker) Check(ctx context.Context, chatID int64, token string) error {
	tracks, err := c.api.Tracks(ctx, token)
	if errors.Is(err, backend.ErrUnauthorized) {
		return c.expire(ctx, chatID)
	}
	if err != nil {
		c.send(ctx, chatID, fmt.Sprintf(fetchFailedText, err))
		return fmt.Errorf("list tracks: %w", err)
	}

	for _, tr := range tracks {
		if !tr.IsActive {
			continue
		}
		if err := c.checkTrack(ctx, chatID, token, tr); err != nil {
			if errors.Is(err, backend.ErrUnauthorized) {
				return c.expire(ctx, chatID)
			}
			logger.Warn(ctx, "monitor", "track_check_failed",
				slog.Int64("track_id", tr.ID),
				slog.String("article", tr.Article),
				slog.Any("err", err))
		}
	}
	return nil
}

// checkTrack refreshes one track and applies the notify-once rule. The
// notified flag is flipped in the store before the message is sent, so a
// delivery failure never turns into a resend storm.
func (c *Checker) checkTrack(ctx context.Context, chatID int64, token string, tr models.Track) error {
	updated, err := c.api.RefreshTrack(ctx, token, tr.ID)
	if err != nil {
		return fmt.Errorf("refresh track %d: %w", tr.ID, err)
	}

	if updated.ThresholdReached() && !updated.Notified {
		notified := true
		if _, err := c.api.UpdateTrack(ctx, token, tr.ID, models.TrackUpdate{Notified: &notified}); err != nil {
			return fmt.Errorf("mark notified %d: %w", tr.ID, err)
		}
		c.send(ctx, chatID, fmt.Sprintf(priceReachedText, updated.Article))
		logger.Info(ctx, "monitor", "price_reached",
			slog.Int64("track_id", tr.ID),
			slog.String("article", updated.Article),
			slog.String("price", updated.CurrentPrice.String()),
			slog.String("target_price", updated.TargetPrice.String()))
	}

	if err := c.api.AppendPriceHistory(ctx, token, tr.ID); err != nil {
		return fmt.Errorf("append history %d: %w", tr.ID, err)
	}
	return nil
}

func (c *Checker) expire(ctx context.Context, chatID int64) error {
	c.send(ctx, chatID, tokenExpiredText)
	logger.Warn(ctx, "monitor", "token_expired", slog.Int64("chat_id", chatID))
	return ErrTokenExpired
}

func (c *Checker) send(ctx context.Context, chatID int64, text string) {
	if err := c.notify.Notify(chatID, text); err != nil {
		logger.Warn(ctx, "monitor", "notify_failed",
			slog.Int64("chat_id", chatID),
			slog.Any("err", err))
	}
}
