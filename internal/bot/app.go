package bot

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/pricewatch/core/logger"
	coretelegram "github.com/m3rciful/pricewatch/core/telegram"
	"github.com/m3rciful/pricewatch/core/telegram/router"
	"github.com/m3rciful/pricewatch/core/telegram/state"
	"github.com/m3rciful/pricewatch/internal/bot/account"
	"github.com/m3rciful/pricewatch/internal/bot/backend"
	"github.com/m3rciful/pricewatch/internal/bot/dialogue"
	"github.com/m3rciful/pricewatch/internal/bot/monitor"
)

// App owns the bot's long-lived components. The telebot instance itself
// appears only at runtime, so the outbound surfaces hold it through an
// atomic pointer filled in OnStart.
type App struct {
	cfg      *Config
	api      *backend.Client
	accounts *account.Cache
	sessions state.Manager
	engine   *dialogue.Engine
	jobs     *monitor.Registry

	bot atomic.Pointer[tele.Bot]
}

// NewApp wires the application from configuration.
func NewApp(cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bot: nil config")
	}

	app := &App{
		cfg:      cfg,
		accounts: account.NewCache(),
		sessions: state.NewMemoryManager(),
	}

	var opts []backend.Option
	if cfg.Backend.CallTimeoutMS > 0 {
		opts = append(opts, backend.WithCallTimeout(time.Duration(cfg.Backend.CallTimeoutMS)*time.Millisecond))
	}
	app.api = backend.New(cfg.Backend.BaseURL, opts...)

	app.jobs = monitor.NewRegistry(
		monitor.NewChecker(app.api, app),
		cfg.Monitor.Interval(),
		cfg.Monitor.InitialDelay(),
	)
	app.engine = dialogue.New(app.sessions, app.api, app.accounts, app, app.jobs)

	return app, nil
}

// TelegramRunOptions builds the runtime wiring for the cmd runner.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	a.registerCommands(reg)
	if err := a.registerCallbacks(reg); err != nil {
		return coretelegram.RunOptions{}, err
	}

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: a.cfg.Core.Telegram.AdminID})
	routes = append(routes, router.TextRoutes(a.engine, reg, router.TextOptions{})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))

	return coretelegram.RunOptions{
		Config:      &a.cfg.Core,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(&a.cfg.Core, nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			a.bot.Store(rt.Bot)
			coretelegram.InitBotCommands(rt.Bot, reg)
			return nil
		},
		OnStop: func(ctx context.Context, rt coretelegram.Runtime) error {
			a.jobs.Shutdown()
			return nil
		},
	}, nil
}

// --- outbound surfaces ---

// Notify implements monitor.Notifier.
func (a *App) Notify(chatID int64, text string) error {
	bot := a.bot.Load()
	if bot == nil {
		return fmt.Errorf("bot not started")
	}
	_, err := bot.Send(tele.ChatID(chatID), text)
	return err
}

// Prompt implements dialogue.Transport.
func (a *App) Prompt(chatID int64, text string, markup *tele.ReplyMarkup) (int, error) {
	bot := a.bot.Load()
	if bot == nil {
		return 0, fmt.Errorf("bot not started")
	}
	msg, err := bot.Send(tele.ChatID(chatID), text, &tele.SendOptions{ReplyMarkup: markup})
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

// Delete implements dialogue.Transport.
func (a *App) Delete(chatID int64, messageIDs []int) {
	bot := a.bot.Load()
	if bot == nil {
		return
	}
	dialogue.NewBotTransport(bot).Delete(chatID, messageIDs)
}

// Download implements dialogue.Transport.
func (a *App) Download(file *tele.File) (io.ReadCloser, error) {
	bot := a.bot.Load()
	if bot == nil {
		return nil, fmt.Errorf("bot not started")
	}
	return bot.File(file)
}

// Shutdown releases background resources outside the bot lifecycle.
func (a *App) Shutdown() {
	a.jobs.Shutdown()
	logger.Info(logger.Background(), "app", "stopped")
}
