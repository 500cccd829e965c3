package dialogue

import (
	"context"
	"errors"
	"fmt"

	"github.com/m3rciful/pricewatch/core/telegram/keyboard"
	"github.com/m3rciful/pricewatch/core/telegram/state"
	"github.com/m3rciful/pricewatch/internal/bot/backend"
	"github.com/m3rciful/pricewatch/internal/bot/validate"
)

const (
	askFullNameText = "Укажите Ваше имя и фамилию через пробел:"
	askEmailText    = "Укажите Вашу почту:"
	askPasswordText = "Придумайте пароль:"

	registrationDoneText  = "Регистрация закончена!"
	registrationErrorText = "Возникла ошибка при регистрации пользователя! 🚫"
	greetRegisteredText   = "Привет, %s! Вот твой id: %s"
)

func (e *Engine) registerRegistrationSteps() {
	e.steps[StateRegFullName] = step{fn: e.stepRegFullName, failText: registrationErrorText}
	e.steps[StateRegEmail] = step{fn: e.stepRegEmail, failText: registrationErrorText}
	e.steps[StateRegPassword] = step{fn: e.stepRegPassword, failText: registrationErrorText}
}

// StartRegistration opens the registration flow for a chat.
func (e *Engine) StartRegistration(ctx context.Context, chatID int64) error {
	defer e.lockChat(chatID)()

	s := e.begin(chatID, StateRegFullName)
	e.prompt(s, askFullNameText, nil)
	return nil
}

func (e *Engine) stepRegFullName(ctx context.Context, in Input, s *state.Session) (state.State, error) {
	full, err := validate.FullName(in.Text)
	if err != nil {
		e.prompt(s, err.Error(), nil)
		return StateRegFullName, nil
	}
	name, surname := splitFullName(full)
	if err := s.SetField(fieldName, name); err != nil {
		return state.StateIdle, err
	}
	if err := s.SetField(fieldSurname, surname); err != nil {
		return state.StateIdle, err
	}
	e.prompt(s, askEmailText, nil)
	return StateRegEmail, nil
}

func (e *Engine) stepRegEmail(ctx context.Context, in Input, s *state.Session) (state.State, error) {
	email, err := validate.Email(ctx, in.Text, e.emailTaken)
	if err != nil {
		e.prompt(s, err.Error(), nil)
		return StateRegEmail, nil
	}
	if err := s.SetField(fieldEmail, email); err != nil {
		return state.StateIdle, err
	}
	e.prompt(s, askPasswordText, nil)
	return StateRegPassword, nil
}

// stepRegPassword is the committing step: it performs the register call
// and always lands on a terminal state.
func (e *Engine) stepRegPassword(ctx context.Context, in Input, s *state.Session) (state.State, error) {
	password, err := validate.Password(in.Text)
	if err != nil {
		e.prompt(s, err.Error(), nil)
		return StateRegPassword, nil
	}

	acc, err := e.api.Register(ctx, accountCreateFrom(s, in.UserID, password))
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			e.say(in.ChatID, apiErr.Detail)
			return state.StateIdle, nil
		}
		return state.StateIdle, err
	}

	e.accounts.Put(in.ChatID, *acc)
	e.prompt(s, registrationDoneText, nil)
	e.prompt(s, fmt.Sprintf(greetRegisteredText, acc.Name, acc.ID),
		keyboard.InlineButtons([]keyboard.InlineBtn{{Text: "Авторизация", Unique: "authorization"}}))
	return state.StateIdle, nil
}

// emailTaken adapts the backend lookup to the validator callback: a found
// account means the address is taken, not-found means it is free.
func (e *Engine) emailTaken(ctx context.Context, email string) (bool, error) {
	_, err := e.api.AccountByEmail(ctx, email)
	if errors.Is(err, backend.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
