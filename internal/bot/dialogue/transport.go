package dialogue

import (
	"io"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/pricewatch/core/telegram/helpers"
)

// botTransport backs Transport with a live telebot instance.
type botTransport struct {
	bot *tele.Bot
}

// NewBotTransport wraps a telebot bot as the engine's Transport.
func NewBotTransport(bot *tele.Bot) Transport {
	return &botTransport{bot: bot}
}

func (t *botTransport) Prompt(chatID int64, text string, markup *tele.ReplyMarkup) (int, error) {
	msg, err := t.bot.Send(tele.ChatID(chatID), text, &tele.SendOptions{ReplyMarkup: markup})
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

func (t *botTransport) Delete(chatID int64, messageIDs []int) {
	for _, id := range messageIDs {
		// Best effort: transient prompts may already be gone.
		_ = t.bot.Delete(tele.StoredMessage{MessageID: strconv.Itoa(id), ChatID: chatID})
	}
}

func (t *botTransport) Download(file *tele.File) (io.ReadCloser, error) {
	return t.bot.File(file)
}

// HandleUpdate adapts an incoming telebot update into a pipeline pass.
// The message router calls it for every text/photo update belonging to a
// chat with an active session.
func (e *Engine) HandleUpdate(c tele.Context) error {
	if c.Chat() == nil {
		return nil
	}
	in := Input{ChatID: c.Chat().ID, Text: strings.TrimSpace(c.Text())}
	if msg := c.Message(); msg != nil {
		in.MessageID = msg.ID
		in.Photo = msg.Photo
	}
	if c.Sender() != nil {
		in.UserID = c.Sender().ID
	}
	return e.Handle(helpers.BuildContext(c), in)
}
