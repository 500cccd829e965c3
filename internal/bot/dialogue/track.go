package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/pricewatch/core/telegram/format"
	"github.com/m3rciful/pricewatch/core/telegram/keyboard"
	"github.com/m3rciful/pricewatch/core/telegram/state"
	"github.com/m3rciful/pricewatch/internal/bot/backend"
	"github.com/m3rciful/pricewatch/internal/bot/validate"
	"github.com/m3rciful/pricewatch/internal/models"
)

const (
	selectMarketplaceText = "Выберите маркетплэйс для поиска товара 🛍️"
	selectArticleText     = "Укажите артикул товара 🏷️"
	selectTargetPriceText = "Укажите желаемую цену 🧾"

	trackCreatedText     = "Новый товар добавлен! ✅"
	trackCreateErrText   = "Ошибка при создании нового товара ⚠️"
	trackBadRequestText  = "%s\nПопробуйте указать данные для товара заново."
	staleAuthText        = "Повторите авторизацию! /auth\nСрок действия истек 😢"
	needAuthText         = "Перед работой с товарами необходимо пройти /auth авторизацию ⚠️"
	newTargetPriceText   = "Укажите новую желаемую цену 🏷️"
	targetPriceSavedText = "Цена успешно обновлена на %s! ✅"
	trackRefreshErrText  = "Что-то пошло не так при обновлении отслеживаемого товара! ❌\nПопробуйте еще раз!"
	confirmDeleteText    = "Вы точно хотите удалить товар с id = %d?"
	deleteCancelledText  = "Удаление товара с id = %d отменено!"
	deletedText          = "Товар с id = %d успешно удален! ✅"
	trackDeleteErrText   = "Ошибка при удалении товара из отслеживаемых ⚠️"

	trackCardText = `%s - %s
_________________________
💸 Текущая цена: %s
🎯 Желаемая цена: %s`
)

func (e *Engine) registerTrackSteps() {
	e.steps[StateTrackMarketplace] = step{fn: e.stepAwaitMarketplace, failText: trackCreateErrText}
	e.steps[StateTrackArticle] = step{fn: e.stepTrackArticle, failText: trackCreateErrText}
	e.steps[StateTrackTargetPrice] = step{fn: e.stepTrackTargetPrice, failText: trackCreateErrText}
	e.steps[StateTrackNewPrice] = step{fn: e.stepTrackNewPrice, failText: trackRefreshErrText}
	e.steps[StateTrackDeleteConfirm] = step{fn: e.stepAwaitDeleteConfirm, failText: trackDeleteErrText}
}

// StartAddTrack opens the add-track flow with the marketplace keyboard.
func (e *Engine) StartAddTrack(ctx context.Context, chatID int64) error {
	defer e.lockChat(chatID)()

	if _, ok := e.token(chatID); !ok {
		e.say(chatID, needAuthText)
		return nil
	}
	s := e.begin(chatID, StateTrackMarketplace)
	e.prompt(s, selectMarketplaceText, marketplaceKeyboard())
	return nil
}

// ChooseMarketplace handles the marketplace button while the flow waits
// on StateTrackMarketplace.
func (e *Engine) ChooseMarketplace(ctx context.Context, chatID int64, marketplace string) error {
	defer e.lockChat(chatID)()

	if e.sessions.CurrentState(chatID) != StateTrackMarketplace {
		return nil
	}
	if !models.Marketplace(marketplace).Valid() {
		return fmt.Errorf("unknown marketplace %q", marketplace)
	}
	s := e.sessions.Get(chatID)
	e.tp.Delete(chatID, s.DrainCleanup())
	return e.finish(ctx, chatID, s, e.steps[StateTrackMarketplace], func() (state.State, error) {
		if err := s.SetField(fieldMarketplace, marketplace); err != nil {
			return state.StateIdle, err
		}
		e.prompt(s, selectArticleText, nil)
		return StateTrackArticle, nil
	})
}

// stepAwaitMarketplace rejects free text while the marketplace keyboard
// is pending.
func (e *Engine) stepAwaitMarketplace(ctx context.Context, in Input, s *state.Session) (state.State, error) {
	e.prompt(s, selectMarketplaceText, marketplaceKeyboard())
	return StateTrackMarketplace, nil
}

func (e *Engine) stepTrackArticle(ctx context.Context, in Input, s *state.Session) (state.State, error) {
	article, err := validate.Article(in.Text)
	if err != nil {
		e.prompt(s, err.Error(), nil)
		return StateTrackArticle, nil
	}
	if err := s.SetField(fieldArticle, article); err != nil {
		return state.StateIdle, err
	}
	e.prompt(s, selectTargetPriceText, nil)
	return StateTrackTargetPrice, nil
}

// stepTrackTargetPrice is the committing step of the add-track flow.
func (e *Engine) stepTrackTargetPrice(ctx context.Context, in Input, s *state.Session) (state.State, error) {
	price, err := validate.Price(in.Text)
	if err != nil {
		e.prompt(s, err.Error(), nil)
		return StateTrackTargetPrice, nil
	}
	token, ok := e.token(in.ChatID)
	if !ok {
		e.say(in.ChatID, staleAuthText)
		return state.StateIdle, nil
	}

	track, err := e.api.CreateTrack(ctx, token, models.TrackCreate{
		Marketplace: models.Marketplace(s.FieldOr(fieldMarketplace, "")),
		Article:     s.FieldOr(fieldArticle, ""),
		TargetPrice: price,
	})
	switch {
	case errors.Is(err, backend.ErrUnauthorized):
		e.say(in.ChatID, staleAuthText)
		return state.StateIdle, nil
	case err != nil:
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Status == 400 {
			// Duplicate or unknown article: restart input from scratch.
			e.say(in.ChatID, fmt.Sprintf(trackBadRequestText, apiErr.Detail))
			fresh := e.begin(in.ChatID, StateTrackMarketplace)
			e.prompt(fresh, selectMarketplaceText, marketplaceKeyboard())
			return StateTrackMarketplace, nil
		}
		return state.StateIdle, err
	}

	e.prompt(s, trackCreatedText, nil)
	e.prompt(s, trackCard(track), trackActionsKeyboard(track.ID))
	return state.StateIdle, nil
}

// StartEditTargetPrice opens the single-step price edit for one track.
func (e *Engine) StartEditTargetPrice(ctx context.Context, chatID, trackID int64) error {
	defer e.lockChat(chatID)()

	if _, ok := e.token(chatID); !ok {
		e.say(chatID, needAuthText)
		return nil
	}
	s := e.begin(chatID, StateTrackNewPrice)
	if err := s.SetField(fieldTrackID, strconv.FormatInt(trackID, 10)); err != nil {
		return err
	}
	e.prompt(s, newTargetPriceText, nil)
	return nil
}

// stepTrackNewPrice commits the new target price.
func (e *Engine) stepTrackNewPrice(ctx context.Context, in Input, s *state.Session) (state.State, error) {
	price, err := validate.Price(in.Text)
	if err != nil {
		e.prompt(s, err.Error(), nil)
		return StateTrackNewPrice, nil
	}
	token, ok := e.token(in.ChatID)
	if !ok {
		e.say(in.ChatID, staleAuthText)
		return state.StateIdle, nil
	}
	trackID, err := strconv.ParseInt(s.FieldOr(fieldTrackID, ""), 10, 64)
	if err != nil {
		return state.StateIdle, fmt.Errorf("bad track id in session: %w", err)
	}

	if _, err := e.api.UpdateTrack(ctx, token, trackID, models.TrackUpdate{TargetPrice: format.Ptr(price)}); err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			e.say(in.ChatID, staleAuthText)
			return state.StateIdle, nil
		}
		return state.StateIdle, err
	}

	e.prompt(s, fmt.Sprintf(targetPriceSavedText, price.String()),
		keyboard.InlineButtons([]keyboard.InlineBtn{{Text: "Назад к товарам", Unique: "track_show_all"}}))
	return state.StateIdle, nil
}

// StartDeleteTrack asks for confirmation before removing a track.
func (e *Engine) StartDeleteTrack(ctx context.Context, chatID, trackID int64) error {
	defer e.lockChat(chatID)()

	if _, ok := e.token(chatID); !ok {
		e.say(chatID, needAuthText)
		return nil
	}
	s := e.begin(chatID, StateTrackDeleteConfirm)
	if err := s.SetField(fieldTrackID, strconv.FormatInt(trackID, 10)); err != nil {
		return err
	}
	payload := strconv.FormatInt(trackID, 10)
	e.prompt(s, fmt.Sprintf(confirmDeleteText, trackID), keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "Удалить 🗑️", Unique: "confirm_track_delete", Data: payload},
			{Text: "Отмена", Unique: "cancel_track_delete", Data: payload},
		},
	))
	return nil
}

// ConfirmDeleteTrack handles the confirmation button.
func (e *Engine) ConfirmDeleteTrack(ctx context.Context, chatID int64) error {
	defer e.lockChat(chatID)()

	if e.sessions.CurrentState(chatID) != StateTrackDeleteConfirm {
		return nil
	}
	s := e.sessions.Get(chatID)
	e.tp.Delete(chatID, s.DrainCleanup())
	return e.finish(ctx, chatID, s, e.steps[StateTrackDeleteConfirm], func() (state.State, error) {
		trackID, err := strconv.ParseInt(s.FieldOr(fieldTrackID, ""), 10, 64)
		if err != nil {
			return state.StateIdle, fmt.Errorf("bad track id in session: %w", err)
		}
		token, ok := e.token(chatID)
		if !ok {
			e.say(chatID, staleAuthText)
			return state.StateIdle, nil
		}
		if err := e.api.DeleteTrack(ctx, token, trackID); err != nil {
			if errors.Is(err, backend.ErrUnauthorized) {
				e.say(chatID, staleAuthText)
				return state.StateIdle, nil
			}
			return state.StateIdle, err
		}
		e.say(chatID, fmt.Sprintf(deletedText, trackID),
			keyboard.InlineButtons([]keyboard.InlineBtn{{Text: "Назад к товарам", Unique: "track_show_all"}}))
		return state.StateIdle, nil
	})
}

// CancelDeleteTrack handles the cancel button of the confirmation prompt.
func (e *Engine) CancelDeleteTrack(ctx context.Context, chatID int64) error {
	defer e.lockChat(chatID)()

	if e.sessions.CurrentState(chatID) != StateTrackDeleteConfirm {
		return nil
	}
	s := e.sessions.Get(chatID)
	trackID, _ := strconv.ParseInt(s.FieldOr(fieldTrackID, "0"), 10, 64)
	e.tp.Delete(chatID, e.sessions.End(chatID))
	e.say(chatID, fmt.Sprintf(deleteCancelledText, trackID))
	return nil
}

// stepAwaitDeleteConfirm re-shows the confirmation when the user types
// instead of pressing a button.
func (e *Engine) stepAwaitDeleteConfirm(ctx context.Context, in Input, s *state.Session) (state.State, error) {
	trackID, _ := strconv.ParseInt(s.FieldOr(fieldTrackID, "0"), 10, 64)
	payload := strconv.FormatInt(trackID, 10)
	e.prompt(s, fmt.Sprintf(confirmDeleteText, trackID), keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "Удалить 🗑️", Unique: "confirm_track_delete", Data: payload},
			{Text: "Отмена", Unique: "cancel_track_delete", Data: payload},
		},
	))
	return StateTrackDeleteConfirm, nil
}

func marketplaceKeyboard() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "Wildberries", Unique: "marketplace", Data: string(models.MarketplaceWildberries)},
		{Text: "Ozon", Unique: "marketplace", Data: string(models.MarketplaceOzon)},
	})
}

func trackActionsKeyboard(trackID int64) *tele.ReplyMarkup {
	id := strconv.FormatInt(trackID, 10)
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "Изменить цену 🎯", Unique: "track_target_price_refresh", Data: id},
			{Text: "История 📊", Unique: "track_check_history", Data: id},
		},
		[]keyboard.InlineBtn{
			{Text: "Удалить 🗑️", Unique: "track_delete", Data: id},
			{Text: "Запустить мониторинг 🔔", Unique: "start_notifications"},
		},
	)
}

func trackCard(t *models.Track) string {
	return fmt.Sprintf(trackCardText, t.Title, t.Article, t.CurrentPrice.String(), t.TargetPrice.String())
}
