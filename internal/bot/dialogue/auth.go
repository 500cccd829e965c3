package dialogue

import (
	"context"
	"errors"

	"github.com/m3rciful/pricewatch/core/telegram/keyboard"
	"github.com/m3rciful/pricewatch/core/telegram/state"
	"github.com/m3rciful/pricewatch/internal/bot/backend"
	"github.com/m3rciful/pricewatch/internal/passhash"
)

const (
	askAccountPasswordText = "Введите пароль от вашего аккаунта:"
	wrongPasswordText      = "Вы ввели неправильный пароль 🚫\nПопробуйте еще раз."
	notRegisteredText      = "Вы не зарегистрированы!"
	authorizedText         = "Авторизация выполнена 🔐"
	authErrorText          = "Ошибка при получении JWT-токена. Повторите регистрацию! 🚫"
	tokenSaveErrorText     = "Ошибка при сохранении нового токена в БД 🚫"
)

func (e *Engine) registerAuthSteps() {
	e.steps[StateAuthPassword] = step{fn: e.stepAuthPassword, failText: authErrorText}
}

// StartAuthorization opens the password prompt, refreshing the cached
// account first. Unregistered users are pointed at registration instead.
func (e *Engine) StartAuthorization(ctx context.Context, chatID, telegramID int64) error {
	defer e.lockChat(chatID)()

	entry, err := e.accounts.Load(ctx, e.api, chatID, telegramID)
	if errors.Is(err, backend.ErrNotFound) || (err == nil && entry == nil) {
		e.say(chatID, notRegisteredText,
			keyboard.InlineButtons([]keyboard.InlineBtn{{Text: "Начать регистрацию", Unique: "start_registration"}}))
		return nil
	}
	if err != nil {
		e.say(chatID, authErrorText)
		return err
	}
	s := e.begin(chatID, StateAuthPassword)
	e.prompt(s, askAccountPasswordText, nil)
	return nil
}

// stepAuthPassword verifies the password against the stored hash, then
// exchanges it for a bearer token and persists the token server-side so
// the monitoring job can keep using it.
func (e *Engine) stepAuthPassword(ctx context.Context, in Input, s *state.Session) (state.State, error) {
	entry := e.accounts.Get(in.ChatID)
	if entry == nil {
		return state.StateIdle, errors.New("no cached account for chat")
	}

	ok, err := passhash.Verify(in.Text, entry.Account.HashedPassword)
	if err != nil {
		return state.StateIdle, err
	}
	if !ok {
		e.prompt(s, wrongPasswordText, nil)
		e.prompt(s, askAccountPasswordText, nil)
		return StateAuthPassword, nil
	}

	grant, err := e.api.Login(ctx, entry.Account.Email, in.Text)
	if err != nil {
		return state.StateIdle, err
	}
	e.accounts.SetToken(in.ChatID, grant.AccessToken)

	if err := e.api.RefreshToken(ctx, grant.AccessToken); err != nil {
		e.say(in.ChatID, tokenSaveErrorText)
		return state.StateIdle, nil
	}

	e.prompt(s, authorizedText,
		keyboard.InlineButtons([]keyboard.InlineBtn{{Text: "Меню 📦", Unique: "base_menu"}}))
	return state.StateIdle, nil
}
