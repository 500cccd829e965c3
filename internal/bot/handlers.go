package bot

import (
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	coretelegram "github.com/m3rciful/pricewatch/core/telegram"
	"github.com/m3rciful/pricewatch/core/telegram/callbacks"
	"github.com/m3rciful/pricewatch/core/telegram/commands"
	"github.com/m3rciful/pricewatch/core/telegram/format"
	"github.com/m3rciful/pricewatch/core/telegram/helpers"
	"github.com/m3rciful/pricewatch/core/telegram/keyboard"
	"github.com/m3rciful/pricewatch/core/telegram/middleware"
	"github.com/m3rciful/pricewatch/core/telegram/state"
	"github.com/m3rciful/pricewatch/internal/bot/backend"
	"github.com/m3rciful/pricewatch/internal/bot/dialogue"
	"github.com/m3rciful/pricewatch/internal/models"
)

const (
	infoText = `Проект Price Watcher
_______________
Здесь вы можете отслеживать цены по интересующим вас товарам
на популярных маркетплейсах и получать уведомления,
если цена упала до желаемой!

/start - запуск бота
/info - информация о боте
/menu - меню товаров
/auth - авторизация
/account_settings - настройки аккаунта`

	greetingText = `Привет, %s! Чем я тебе могу помочь? 👋
/info - информация о боте
/auth - пройти авторизацию`

	notRegisteredText = "Вы не зарегистрированы!"
	authRequiredText  = "Перед просмотром отслеживаемых товаров необходимо пройти /auth авторизацию ⚠️"
	staleAuthText     = "Повторите авторизацию! /auth\nСрок действия истек 😢"
	emptyTracksText   = "У вас пока нет отслеживаемых товаров 😢"
	showAllErrText    = "Что-то пошло не так при загрузке отслеживаемых товаров! ❌\nПопробуйте еще раз!"
	historyErrText    = "Ошибка при загрузке истории товара! ❌"
	emptyHistoryText  = "История товара пуста("
	dataReloadedText  = "Данные аккаунта успешно обновлены! ✅"
	monitorOnText     = "Мониторинг цен запущен 🔔"

	settingsText = `⚙️ Настройки аккаунта
━━━━━━━━━━━━━━━━━━
🔄 /load_data – обновить данные аккаунта
✏️ /edit_account – редактировать аккаунт
🗑️ /delete_account – удалить аккаунт
👤 /account_data – просмотреть данные аккаунта`

	accountDataText = `*👤 Данные аккаунта*
━━━━━━━━━━━━━━━━━━
Имя: %s
Фамилия: %s
Почта: %s
Telegram ID: %d

Активен: %s`

	trackSummaryText = `📊 Итого:
_____________________________________
📦 Всего отслеживаемых товаров: %d
📉 Цена ниже желаемой: %d
📈 Цена выше желаемой: %d`

	shortTrackCardText = `🛒 *%s*  %s
━━━━━━━━━━━━━━━━━━
💸 Текущая цена: %s₽
🎯 Желаемая цена: %s₽
🏷️ Статус: %s
━━━━━━━━━━━━━━━━━━
ID: %d`

	historyEntryText = "💰 Цена: %s₽\n📅 Дата: %s"
)

func (a *App) registerCommands(reg *coretelegram.Registry) {
	reg.RegisterCommand("/start", commands.Command{Handler: a.handleStart, Description: "Запуск бота"})
	reg.RegisterCommand("/info", commands.Command{Handler: a.handleInfo, Description: "Информация о боте"})
	reg.RegisterCommand("/menu", commands.Command{Handler: a.handleMenu, Description: "Меню товаров"})
	reg.RegisterCommand("/auth", commands.Command{Handler: a.handleAuth, Description: "Авторизация"})
	reg.RegisterCommand("/cancel", commands.Command{Handler: a.handleCancel, Description: "Отменить текущее действие", Hidden: true})
	reg.RegisterCommand("/account_settings", commands.Command{Handler: a.handleAccountSettings, Description: "Настройки аккаунта"})
	reg.RegisterCommand("/account_data", commands.Command{Handler: a.handleAccountData, Description: "Данные аккаунта", Hidden: true})
	reg.RegisterCommand("/load_data", commands.Command{Handler: a.handleLoadData, Description: "Обновить данные аккаунта", Hidden: true})
	reg.RegisterCommand("/edit_account", commands.Command{Handler: a.handleEditAccount, Description: "Редактировать аккаунт", Hidden: true})
	reg.RegisterCommand("/delete_account", commands.Command{Handler: a.handleDeleteAccount, Description: "Удалить аккаунт", Hidden: true})
}

func (a *App) registerCallbacks(reg *coretelegram.Registry) error {
	// gate drops buttons pressed outside the dialogue state that owns
	// them: stale keyboards stay on screen after the flow moves on.
	gate := func(expected state.State, h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RequireState(a.engine, string(expected))(h)
	}
	cbs := map[string]tele.HandlerFunc{
		"start_registration": func(c tele.Context) error {
			return a.engine.StartRegistration(helpers.BuildContext(c), c.Chat().ID)
		},
		"authorization":  a.handleAuth,
		"base_menu":      a.handleMenu,
		"track_show_all": a.handleShowTracks,
		"track_add_track": func(c tele.Context) error {
			return a.engine.StartAddTrack(helpers.BuildContext(c), c.Chat().ID)
		},
		"marketplace": gate(dialogue.StateTrackMarketplace, func(c tele.Context) error {
			return a.engine.ChooseMarketplace(helpers.BuildContext(c), c.Chat().ID, callbacks.PayloadString(c))
		}),
		"track_target_price_refresh": func(c tele.Context) error {
			id, err := callbacks.PayloadInt64(c)
			if err != nil {
				return err
			}
			return a.engine.StartEditTargetPrice(helpers.BuildContext(c), c.Chat().ID, id)
		},
		"track_delete": func(c tele.Context) error {
			id, err := callbacks.PayloadInt64(c)
			if err != nil {
				return err
			}
			return a.engine.StartDeleteTrack(helpers.BuildContext(c), c.Chat().ID, id)
		},
		"confirm_track_delete": gate(dialogue.StateTrackDeleteConfirm, func(c tele.Context) error {
			return a.engine.ConfirmDeleteTrack(helpers.BuildContext(c), c.Chat().ID)
		}),
		"cancel_track_delete": gate(dialogue.StateTrackDeleteConfirm, func(c tele.Context) error {
			return a.engine.CancelDeleteTrack(helpers.BuildContext(c), c.Chat().ID)
		}),
		"track_check_history": a.handleTrackHistory,
		"account_settings":    a.handleAccountSettings,
		"edit_field": gate(dialogue.StateEditChooseField, func(c tele.Context) error {
			return a.engine.ChooseEditField(helpers.BuildContext(c), c.Chat().ID, callbacks.PayloadString(c))
		}),
		"finish_edit": gate(dialogue.StateEditChooseField, func(c tele.Context) error {
			return a.engine.FinishEditAccount(helpers.BuildContext(c), c.Chat().ID)
		}),
		"start_notifications": a.handleStartMonitoring,
	}
	for key, h := range cbs {
		if err := reg.RegisterCallback(key, h); err != nil {
			return err
		}
	}
	return nil
}

// --- commands ---

func (a *App) handleStart(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	entry, err := a.accounts.Load(ctx, a.api, c.Chat().ID, c.Sender().ID)
	if err != nil && !errors.Is(err, backend.ErrNotFound) {
		return err
	}
	if entry == nil || errors.Is(err, backend.ErrNotFound) {
		return helpers.SendText(c, notRegisteredText, &tele.SendOptions{
			ReplyMarkup: keyboard.InlineButtons([]keyboard.InlineBtn{{Text: "Начать регистрацию", Unique: "start_registration"}}),
		})
	}
	return helpers.SendText(c, fmt.Sprintf(greetingText, entry.Account.Name))
}

func (a *App) handleInfo(c tele.Context) error {
	return helpers.SendText(c, infoText)
}

func (a *App) handleMenu(c tele.Context) error {
	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "Мои товары 📦", Unique: "track_show_all"},
			{Text: "Добавить товар ➕", Unique: "track_add_track"},
		},
		[]keyboard.InlineBtn{
			{Text: "🔐 Авторизация", Unique: "authorization"},
			{Text: "Ваш аккаунт 📱", Unique: "account_settings"},
		},
	)
	return helpers.SendText(c, "Меню 📦", &tele.SendOptions{ReplyMarkup: markup})
}

func (a *App) handleAuth(c tele.Context) error {
	return a.engine.StartAuthorization(helpers.BuildContext(c), c.Chat().ID, c.Sender().ID)
}

func (a *App) handleCancel(c tele.Context) error {
	a.engine.Cancel(helpers.BuildContext(c), c.Chat().ID)
	return nil
}

func (a *App) handleAccountSettings(c tele.Context) error {
	return helpers.SendText(c, settingsText, &tele.SendOptions{
		ReplyMarkup: keyboard.InlineButtons([]keyboard.InlineBtn{{Text: "Меню", Unique: "base_menu"}}),
	})
}

func (a *App) handleAccountData(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	entry, err := a.accounts.Load(ctx, a.api, c.Chat().ID, c.Sender().ID)
	if err != nil && !errors.Is(err, backend.ErrNotFound) {
		return err
	}
	if entry == nil || errors.Is(err, backend.ErrNotFound) {
		return helpers.SendText(c, notRegisteredText)
	}
	acc := entry.Account
	active := "❌"
	if acc.IsActive {
		active = "✅"
	}
	return helpers.SendMD(c,
		fmt.Sprintf(accountDataText,
			format.EscapeMarkdown(acc.Name), format.EscapeMarkdown(acc.Surname),
			format.EscapeMarkdown(acc.Email), acc.TelegramID, active),
		keyboard.InlineButtons([]keyboard.InlineBtn{{Text: "Меню 📦", Unique: "base_menu"}}))
}

func (a *App) handleLoadData(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	if _, err := a.accounts.Load(ctx, a.api, c.Chat().ID, c.Sender().ID); err != nil && !errors.Is(err, backend.ErrNotFound) {
		return err
	}
	return helpers.SendText(c, dataReloadedText, &tele.SendOptions{
		ReplyMarkup: keyboard.InlineButtons([]keyboard.InlineBtn{{Text: "Меню 📦", Unique: "base_menu"}}),
	})
}

func (a *App) handleEditAccount(c tele.Context) error {
	return a.engine.StartEditAccount(helpers.BuildContext(c), c.Chat().ID, c.Sender().ID)
}

func (a *App) handleDeleteAccount(c tele.Context) error {
	return a.engine.StartDeleteAccount(helpers.BuildContext(c), c.Chat().ID, c.Sender().ID)
}

// --- track callbacks ---

func (a *App) handleShowTracks(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	entry := a.accounts.Get(c.Chat().ID)
	if !entry.Authorized() {
		return helpers.SendText(c, authRequiredText)
	}

	tracks, err := a.api.Tracks(ctx, entry.Token)
	if errors.Is(err, backend.ErrUnauthorized) {
		return helpers.SendText(c, staleAuthText)
	}
	if err != nil {
		return helpers.SendText(c, showAllErrText)
	}
	if len(tracks) == 0 {
		return helpers.SendText(c, emptyTracksText)
	}

	below, above := 0, 0
	for _, tr := range tracks {
		if tr.ThresholdReached() {
			below++
		} else {
			above++
		}
		if err := helpers.SendMD(c, shortTrackCard(tr), trackKeyboard(tr.ID)); err != nil {
			return err
		}
	}
	return helpers.SendText(c,
		fmt.Sprintf(trackSummaryText, len(tracks), below, above),
		&tele.SendOptions{ReplyMarkup: keyboard.InlineButtons([]keyboard.InlineBtn{{Text: "Добавить товар ➕", Unique: "track_add_track"}})})
}

func (a *App) handleTrackHistory(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	entry := a.accounts.Get(c.Chat().ID)
	if !entry.Authorized() {
		return helpers.SendText(c, authRequiredText)
	}
	trackID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return err
	}

	hist, err := a.api.PriceHistory(ctx, entry.Token, trackID)
	if errors.Is(err, backend.ErrUnauthorized) {
		return helpers.SendText(c, staleAuthText)
	}
	if err != nil {
		return helpers.SendText(c, historyErrText)
	}
	backMarkup := keyboard.InlineButtons([]keyboard.InlineBtn{{Text: "Назад к товарам", Unique: "track_show_all"}})
	if len(hist) == 0 {
		return helpers.SendText(c, emptyHistoryText, &tele.SendOptions{ReplyMarkup: backMarkup})
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "*📊 История товара %d*\n━━━━━━━━━━━━━━━━━━\n", trackID)
	for _, h := range hist {
		fmt.Fprintf(&sb, historyEntryText+"\n\n", h.Price.String(), h.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return helpers.SendMD(c, sb.String(), backMarkup)
}

// handleStartMonitoring opts the chat into the recurring price check.
func (a *App) handleStartMonitoring(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	entry := a.accounts.Get(c.Chat().ID)
	if !entry.Authorized() {
		return helpers.SendText(c, authRequiredText)
	}
	a.jobs.Start(ctx, entry.Account.ID, c.Chat().ID, entry.Token)
	return helpers.SendText(c, monitorOnText)
}

// shortTrackCard renders one track as a Markdown message. The title comes
// from the marketplace and may contain Markdown control characters.
func shortTrackCard(tr models.Track) string {
	status := "❌"
	if tr.Notified {
		status = "✅"
	}
	card := fmt.Sprintf(shortTrackCardText,
		format.EscapeMarkdown(tr.Title), tr.Article,
		tr.CurrentPrice.String(), tr.TargetPrice.String(), status, tr.ID)
	if img := format.DerefString(tr.ImageURL, ""); img != "" {
		card += "\n[Фото товара](" + img + ")"
	}
	return card
}

func trackKeyboard(trackID int64) *tele.ReplyMarkup {
	id := fmt.Sprintf("%d", trackID)
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "Изменить цену 🎯", Unique: "track_target_price_refresh", Data: id},
			{Text: "История 📊", Unique: "track_check_history", Data: id},
		},
		[]keyboard.InlineBtn{
			{Text: "Удалить 🗑️", Unique: "track_delete", Data: id},
			{Text: "Мониторинг 🔔", Unique: "start_notifications"},
		},
	)
}
