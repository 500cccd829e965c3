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
	"github.com/m3rciful/pricewatch/internal/passhash"
)

const (
	chooseEditFieldText = "Выберите поле для редактирования ⏳\nПосле редактирования нажмите применить!"
	askNewFullNameText  = "Введите ваши фамилию и имя:"
	askNewEmailText     = "Введите обновленную почту:"
	askNewPasswordText  = "Введите новый пароль:"
	askAvatarText       = "Загрузите ваше фото для профиля:"
	needPhotoText       = "Нужно отправить фотографию 🚫\nПопробуйте еще раз:"

	fullNameSavedText = "Новое имя и фамилия сохранены!"
	emailSavedText    = "Новая почта сохранена!"
	passwordSavedText = "Новый пароль сохранен!"
	avatarSavedText   = "Новая аватарка успешно загружена!"
	fieldRepeatText   = "Это поле уже изменено в текущей сессии ♻️"

	editAppliedText  = "Данные обновлены ✅"
	editErrorText    = "Ошибка при сохранении изменений аккаунта 🚫"
	fieldErrorText   = "Ошибка при выборе поля редактирования! 🚫"
	avatarErrorText  = "Ошибка при сохранении аватарки 🚫"
	needAuthEditText = "Для редактирования аккаунта необходима авторизация"

	accountDeletedText   = "Ваш аккаунт удален!\nВы можете зарегистрироваться снова - /start"
	deleteAccountErrText = "Ошибка при удалении аккаунта! 🚫"
	needAuthDeleteText   = "Для удаления аккаунта необходима авторизация"

	userCardText = `👤 Полное имя: %s
📧 Почта: %s
🆔 Telegram ID: %d`
)

func (e *Engine) registerAccountSteps() {
	e.steps[StateEditGatePassword] = step{fn: e.stepEditGatePassword, failText: fieldErrorText}
	e.steps[StateEditChooseField] = step{fn: e.stepAwaitEditField, failText: fieldErrorText}
	e.steps[StateEditFullName] = step{fn: e.stepEditFullName, failText: editErrorText}
	e.steps[StateEditEmail] = step{fn: e.stepEditEmail, failText: editErrorText}
	e.steps[StateEditPassword] = step{fn: e.stepEditPassword, failText: editErrorText}
	e.steps[StateEditAvatar] = step{fn: e.stepEditAvatar, failText: avatarErrorText}
	e.steps[StateDeletePassword] = step{fn: e.stepDeletePassword, failText: deleteAccountErrText}
}

// StartEditAccount gates the edit flow behind the account password.
func (e *Engine) StartEditAccount(ctx context.Context, chatID, telegramID int64) error {
	defer e.lockChat(chatID)()

	if _, err := e.accounts.Load(ctx, e.api, chatID, telegramID); err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			e.say(chatID, notRegisteredText)
			return nil
		}
		return err
	}
	s := e.begin(chatID, StateEditGatePassword)
	e.prompt(s, askAccountPasswordText, nil)
	return nil
}

func (e *Engine) stepEditGatePassword(ctx context.Context, in Input, s *state.Session) (state.State, error) {
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
		return StateEditGatePassword, nil
	}
	if !entry.Authorized() {
		e.say(in.ChatID, needAuthEditText)
		return state.StateIdle, nil
	}
	e.prompt(s, chooseEditFieldText, editFieldsKeyboard())
	return StateEditChooseField, nil
}

// ChooseEditField routes the field-selection buttons.
func (e *Engine) ChooseEditField(ctx context.Context, chatID int64, field string) error {
	defer e.lockChat(chatID)()

	if e.sessions.CurrentState(chatID) != StateEditChooseField {
		return nil
	}
	s := e.sessions.Get(chatID)
	e.tp.Delete(chatID, s.DrainCleanup())
	return e.finish(ctx, chatID, s, e.steps[StateEditChooseField], func() (state.State, error) {
		switch field {
		case "full_name":
			e.prompt(s, askNewFullNameText, nil)
			return StateEditFullName, nil
		case "email":
			e.prompt(s, askNewEmailText, nil)
			return StateEditEmail, nil
		case "password":
			e.prompt(s, askNewPasswordText, nil)
			return StateEditPassword, nil
		case "avatar":
			e.prompt(s, askAvatarText, nil)
			return StateEditAvatar, nil
		default:
			return state.StateIdle, fmt.Errorf("unknown edit field %q", field)
		}
	})
}

// stepAwaitEditField re-shows the keyboard on stray text input.
func (e *Engine) stepAwaitEditField(ctx context.Context, in Input, s *state.Session) (state.State, error) {
	e.prompt(s, chooseEditFieldText, editFieldsKeyboard())
	return StateEditChooseField, nil
}

func (e *Engine) stepEditFullName(ctx context.Context, in Input, s *state.Session) (state.State, error) {
	full, err := validate.FullName(in.Text)
	if err != nil {
		e.prompt(s, err.Error(), nil)
		return StateEditFullName, nil
	}
	name, surname := splitFullName(full)
	if err := s.SetField(fieldNewName, name); err != nil {
		return e.fieldRepeat(s)
	}
	if err := s.SetField(fieldNewSurname, surname); err != nil {
		return e.fieldRepeat(s)
	}
	e.prompt(s, fullNameSavedText, nil)
	e.prompt(s, chooseEditFieldText, editFieldsKeyboard())
	return StateEditChooseField, nil
}

func (e *Engine) stepEditEmail(ctx context.Context, in Input, s *state.Session) (state.State, error) {
	email, err := validate.Email(ctx, in.Text, e.emailTaken)
	if err != nil {
		e.prompt(s, err.Error(), nil)
		return StateEditEmail, nil
	}
	if err := s.SetField(fieldNewEmail, email); err != nil {
		return e.fieldRepeat(s)
	}
	e.prompt(s, emailSavedText, nil)
	e.prompt(s, chooseEditFieldText, editFieldsKeyboard())
	return StateEditChooseField, nil
}

func (e *Engine) stepEditPassword(ctx context.Context, in Input, s *state.Session) (state.State, error) {
	password, err := validate.Password(in.Text)
	if err != nil {
		e.prompt(s, err.Error(), nil)
		return StateEditPassword, nil
	}
	if err := s.SetField(fieldNewPassword, password); err != nil {
		return e.fieldRepeat(s)
	}
	e.prompt(s, passwordSavedText, nil)
	e.prompt(s, chooseEditFieldText, editFieldsKeyboard())
	return StateEditChooseField, nil
}

// stepEditAvatar uploads the chat photo and stores the resulting URL for
// the final apply.
func (e *Engine) stepEditAvatar(ctx context.Context, in Input, s *state.Session) (state.State, error) {
	if in.Photo == nil {
		e.prompt(s, needPhotoText, nil)
		return StateEditAvatar, nil
	}
	token, ok := e.token(in.ChatID)
	if !ok {
		e.say(in.ChatID, needAuthEditText)
		return state.StateIdle, nil
	}

	body, err := e.tp.Download(&in.Photo.File)
	if err != nil {
		return state.StateIdle, fmt.Errorf("download photo: %w", err)
	}
	defer body.Close()

	url, err := e.api.UploadAvatar(ctx, token, strconv.FormatInt(in.UserID, 10)+".jpg", body)
	if err != nil {
		e.prompt(s, avatarErrorText+"\nПовторите отправку!", nil)
		return StateEditAvatar, nil
	}
	if err := s.SetField(fieldAvatarURL, url); err != nil {
		return e.fieldRepeat(s)
	}
	e.prompt(s, avatarSavedText, nil)
	e.prompt(s, chooseEditFieldText, editFieldsKeyboard())
	return StateEditChooseField, nil
}

// FinishEditAccount applies the accumulated edits in one PATCH.
func (e *Engine) FinishEditAccount(ctx context.Context, chatID int64) error {
	defer e.lockChat(chatID)()

	if e.sessions.CurrentState(chatID) != StateEditChooseField {
		return nil
	}
	s := e.sessions.Get(chatID)
	e.tp.Delete(chatID, s.DrainCleanup())
	return e.finish(ctx, chatID, s, step{failText: editErrorText}, func() (state.State, error) {
		token, ok := e.token(chatID)
		if !ok {
			e.say(chatID, needAuthEditText)
			return state.StateIdle, nil
		}
		acc, err := e.api.UpdateMe(ctx, token, accountUpdateFrom(s))
		if err != nil {
			if errors.Is(err, backend.ErrUnauthorized) {
				e.say(chatID, staleAuthText)
				return state.StateIdle, nil
			}
			return state.StateIdle, err
		}
		e.accounts.Put(chatID, *acc)
		e.say(chatID, editAppliedText+"\n"+userCard(acc),
			keyboard.InlineButtons([]keyboard.InlineBtn{{Text: "Назад", Unique: "account_settings"}}))
		return state.StateIdle, nil
	})
}

// StartDeleteAccount gates account deletion behind the password.
func (e *Engine) StartDeleteAccount(ctx context.Context, chatID, telegramID int64) error {
	defer e.lockChat(chatID)()

	if _, err := e.accounts.Load(ctx, e.api, chatID, telegramID); err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			e.say(chatID, notRegisteredText)
			return nil
		}
		return err
	}
	s := e.begin(chatID, StateDeletePassword)
	e.prompt(s, "🔐 "+askAccountPasswordText, nil)
	return nil
}

// stepDeletePassword verifies the password and commits the deletion. The
// monitoring job for the account is stopped before the account goes away.
func (e *Engine) stepDeletePassword(ctx context.Context, in Input, s *state.Session) (state.State, error) {
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
		e.prompt(s, "🔐 "+askAccountPasswordText, nil)
		return StateDeletePassword, nil
	}
	if !entry.Authorized() {
		e.say(in.ChatID, needAuthDeleteText)
		return state.StateIdle, nil
	}

	e.stopJob(in.ChatID)
	if err := e.api.DeleteAccount(ctx, entry.Token, entry.Account.ID); err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			e.say(in.ChatID, staleAuthText)
			return state.StateIdle, nil
		}
		return state.StateIdle, err
	}
	e.accounts.Clear(in.ChatID)
	e.say(in.ChatID, accountDeletedText)
	return state.StateIdle, nil
}

// fieldRepeat handles a second write to a write-once field: the user is
// sent back to the field keyboard without touching the stored value.
func (e *Engine) fieldRepeat(s *state.Session) (state.State, error) {
	e.prompt(s, fieldRepeatText, nil)
	e.prompt(s, chooseEditFieldText, editFieldsKeyboard())
	return StateEditChooseField, nil
}

func editFieldsKeyboard() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "Добавить фото", Unique: "edit_field", Data: "avatar"}},
		[]keyboard.InlineBtn{
			{Text: "Полное имя", Unique: "edit_field", Data: "full_name"},
			{Text: "Почта", Unique: "edit_field", Data: "email"},
			{Text: "Пароль", Unique: "edit_field", Data: "password"},
		},
		[]keyboard.InlineBtn{{Text: "Применить ✅", Unique: "finish_edit"}},
	)
}

func accountUpdateFrom(s *state.Session) models.AccountUpdate {
	var upd models.AccountUpdate
	if v, ok := s.Field(fieldNewName); ok {
		upd.Name = format.Ptr(v)
	}
	if v, ok := s.Field(fieldNewSurname); ok {
		upd.Surname = format.Ptr(v)
	}
	if v, ok := s.Field(fieldNewEmail); ok {
		upd.Email = format.Ptr(v)
	}
	if v, ok := s.Field(fieldNewPassword); ok {
		upd.Password = format.Ptr(v)
	}
	if v, ok := s.Field(fieldAvatarURL); ok {
		upd.AvatarURL = format.Ptr(v)
	}
	return upd
}

func userCard(acc *models.Account) string {
	return fmt.Sprintf(userCardText, acc.FullName(), acc.Email, acc.TelegramID)
}
