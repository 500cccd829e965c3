package helpers

import (
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/pricewatch/core/logger"
	"github.com/m3rciful/pricewatch/core/telegram/sender"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by the helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	disp := globalDispatcher.Load()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	if err := disp.Enqueue(ctx, action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

// SendText sends raw text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	return sendAsync(c, "send.text", "sendMessage", func() error {
		if sendOpts != nil {
			return c.Send(text, sendOpts)
		}
		return c.Send(text)
	})
}

// SendMD sends a message with Markdown parse mode and optional reply markup.
func SendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	return SendText(c, text, mdOptions(markup))
}

// EditMD edits the current message with Markdown parse mode.
func EditMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	return c.Edit(text, mdOptions(markup))
}

// EditOrSendMD tries to edit the message or sends a new one if edit fails.
func EditOrSendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	return c.EditOrSend(text, mdOptions(markup))
}

// SendTracked sends a Markdown message directly (bypassing the async queue)
// and returns the sent message so dialogue flows can queue it for cleanup.
func SendTracked(c tele.Context, text string, markup ...*tele.ReplyMarkup) (*tele.Message, error) {
	return c.Bot().Send(c.Recipient(), text, mdOptions(markup))
}

// DeleteMessages best-effort deletes the given message ids in the current
// chat. Deletion failures are logged and skipped: transient prompts may
// already be gone.
func DeleteMessages(c tele.Context, ids []int) {
	if len(ids) == 0 || c.Chat() == nil {
		return
	}
	ctx := BuildContext(c)
	for _, id := range ids {
		msg := tele.StoredMessage{MessageID: strconv.Itoa(id), ChatID: c.Chat().ID}
		if err := c.Bot().Delete(msg); err != nil {
			logger.Debug(ctx, "tg", "cleanup.delete_failed",
				slog.Int("message_id", id),
				slog.String("err", err.Error()),
			)
		}
	}
}

func mdOptions(markup []*tele.ReplyMarkup) *tele.SendOptions {
	var rm *tele.ReplyMarkup
	if len(markup) > 0 {
		rm = markup[0]
	}
	return &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: rm}
}
