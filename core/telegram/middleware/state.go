package middleware

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/pricewatch/core/logger"
	tghelpers "github.com/m3rciful/pricewatch/core/telegram/helpers"
)

// StateGetter is the minimal view of the dialogue session manager needed
// for routing decisions.
type StateGetter interface {
	CurrentState(chatID int64) string
}

// RequireState gates a handler on the chat being in the expected dialogue
// state; updates in any other state are silently dropped.
func RequireState(mgr StateGetter, expected string) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chatID := c.Chat().ID
			current := mgr.CurrentState(chatID)
			ctx := tghelpers.BuildContext(c)
			if current == expected {
				return next(c)
			}
			logger.Debug(ctx, "tg", "dialog.state_skip",
				slog.String("state", current),
				slog.String("expected", expected),
			)
			return nil
		}
	}
}
