// Package dialogue drives the per-chat multi-turn flows: registration,
// authorization, track creation and editing, and account maintenance.
// Every step runs through the same pipeline: drain the queued transient
// messages, execute the step, and on failure push the flow to a terminal
// state with a user-visible message so no session is ever left hanging.
package dialogue

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/pricewatch/core/logger"
	"github.com/m3rciful/pricewatch/core/telegram/state"
	"github.com/m3rciful/pricewatch/internal/bot/account"
	"github.com/m3rciful/pricewatch/internal/models"
)

// Dialogue states. Each flow owns a contiguous group.
const (
	StateRegFullName state.State = "reg_full_name"
	StateRegEmail    state.State = "reg_email"
	StateRegPassword state.State = "reg_password"

	StateAuthPassword state.State = "auth_password"

	StateTrackMarketplace   state.State = "track_marketplace"
	StateTrackArticle       state.State = "track_article"
	StateTrackTargetPrice   state.State = "track_target_price"
	StateTrackNewPrice      state.State = "track_new_price"
	StateTrackDeleteConfirm state.State = "track_delete_confirm"

	StateEditGatePassword state.State = "edit_gate_password"
	StateEditChooseField  state.State = "edit_choose_field"
	StateEditFullName     state.State = "edit_full_name"
	StateEditEmail        state.State = "edit_email"
	StateEditPassword     state.State = "edit_password"
	StateEditAvatar       state.State = "edit_avatar"

	StateDeletePassword state.State = "delete_password"
)

// Session field keys.
const (
	fieldName        = "name"
	fieldSurname     = "surname"
	fieldEmail       = "email"
	fieldPassword    = "password"
	fieldMarketplace = "marketplace"
	fieldArticle     = "article"
	fieldTrackID     = "track_id"
	fieldNewName     = "new_name"
	fieldNewSurname  = "new_surname"
	fieldNewEmail    = "new_email"
	fieldNewPassword = "new_password"
	fieldAvatarURL   = "avatar_url"
)

// Input is one normalized incoming update for a chat with an active
// session.
type Input struct {
	ChatID    int64
	UserID    int64
	MessageID int
	Text      string
	Photo     *tele.Photo
}

// Transport is the outbound surface the engine needs from the bot.
type Transport interface {
	// Prompt sends a message and returns its id for later cleanup.
	Prompt(chatID int64, text string, markup *tele.ReplyMarkup) (int, error)
	// Delete best-effort removes messages from a chat.
	Delete(chatID int64, messageIDs []int)
	// Download fetches a file's payload from the bot platform.
	Download(file *tele.File) (io.ReadCloser, error)
}

// Backend is the slice of the tracking-service client the flows use.
type Backend interface {
	AccountByTelegramID(ctx context.Context, telegramID int64) (*models.Account, error)
	AccountByEmail(ctx context.Context, email string) (*models.Account, error)
	Register(ctx context.Context, in models.AccountCreate) (*models.Account, error)
	Login(ctx context.Context, email, password string) (*models.TokenGrant, error)
	RefreshToken(ctx context.Context, token string) error
	UpdateMe(ctx context.Context, token string, in models.AccountUpdate) (*models.Account, error)
	DeleteAccount(ctx context.Context, token string, id uuid.UUID) error
	UploadAvatar(ctx context.Context, token, filename string, r io.Reader) (string, error)
	CreateTrack(ctx context.Context, token string, in models.TrackCreate) (*models.Track, error)
	UpdateTrack(ctx context.Context, token string, id int64, in models.TrackUpdate) (*models.Track, error)
	DeleteTrack(ctx context.Context, token string, id int64) error
}

// JobControl stops a user's monitoring job when their account goes away
// or their token expires.
type JobControl interface {
	Stop(ownerID uuid.UUID, chatID int64)
}

type stepFunc func(ctx context.Context, in Input, s *state.Session) (state.State, error)

type step struct {
	fn       stepFunc
	failText string
}

// Engine owns the dialogue state machines for all chats.
type Engine struct {
	sessions state.Manager
	api      Backend
	accounts *account.Cache
	tp       Transport
	jobs     JobControl
	steps    map[state.State]step

	mu        sync.Mutex
	chatLocks map[int64]*sync.Mutex
}

// New wires an Engine. jobs may be nil when monitoring is disabled.
func New(sessions state.Manager, api Backend, accounts *account.Cache, tp Transport, jobs JobControl) *Engine {
	e := &Engine{
		sessions:  sessions,
		api:       api,
		accounts:  accounts,
		tp:        tp,
		jobs:      jobs,
		steps:     make(map[state.State]step),
		chatLocks: make(map[int64]*sync.Mutex),
	}
	e.registerRegistrationSteps()
	e.registerAuthSteps()
	e.registerTrackSteps()
	e.registerAccountSteps()
	return e
}

// InProgress reports whether the chat has an active dialogue. The message
// router gives such chats priority over command dispatch.
func (e *Engine) InProgress(chatID int64) bool {
	return e.sessions.InProgress(chatID)
}

// CurrentState exposes the chat's dialogue state for routing middleware.
func (e *Engine) CurrentState(chatID int64) string {
	return string(e.sessions.CurrentState(chatID))
}

// lockChat serializes all session work for one chat. The bot platform
// dispatches every update in its own goroutine, so without this two rapid
// messages from the same chat could interleave mid-step.
func (e *Engine) lockChat(chatID int64) func() {
	e.mu.Lock()
	l, ok := e.chatLocks[chatID]
	if !ok {
		l = &sync.Mutex{}
		e.chatLocks[chatID] = l
	}
	e.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Handle runs one pipeline pass for an incoming text or photo update.
func (e *Engine) Handle(ctx context.Context, in Input) error {
	defer e.lockChat(in.ChatID)()

	s := e.sessions.Get(in.ChatID)
	if in.MessageID != 0 {
		e.tp.Delete(in.ChatID, []int{in.MessageID})
	}
	e.tp.Delete(in.ChatID, s.DrainCleanup())

	st, ok := e.steps[s.State]
	if !ok {
		return nil
	}
	return e.finish(ctx, in.ChatID, s, st, func() (state.State, error) {
		return st.fn(ctx, in, s)
	})
}

// finish runs a step body and applies the catch-and-terminate policy: any
// error ends the session after a user-visible message.
func (e *Engine) finish(ctx context.Context, chatID int64, s *state.Session, st step, run func() (state.State, error)) error {
	next, err := run()
	if err != nil {
		if st.failText != "" {
			e.say(chatID, st.failText)
		}
		e.sessions.SetState(chatID, state.StateIdle)
		logger.Error(ctx, "dialog", "step_failed",
			slog.String("state", string(s.State)),
			slog.Any("err", err))
		return err
	}
	e.sessions.SetState(chatID, next)
	return nil
}

// begin drains the previous session's leftovers and starts a fresh one.
func (e *Engine) begin(chatID int64, st state.State) *state.Session {
	old := e.sessions.Get(chatID)
	e.tp.Delete(chatID, old.DrainCleanup())
	return e.sessions.Begin(chatID, st)
}

// Cancel aborts the chat's dialogue, deleting any leftover prompts.
func (e *Engine) Cancel(ctx context.Context, chatID int64) {
	defer e.lockChat(chatID)()

	e.tp.Delete(chatID, e.sessions.End(chatID))
	e.say(chatID, cancelledText)
}

// prompt sends a transient message and queues it for deletion at the next
// state transition.
func (e *Engine) prompt(s *state.Session, text string, markup *tele.ReplyMarkup) {
	id, err := e.tp.Prompt(s.ChatID, text, markup)
	if err != nil {
		logger.Warn(logger.Background(), "dialog", "prompt_failed",
			slog.Int64("chat_id", s.ChatID),
			slog.Any("err", err))
		return
	}
	s.PushCleanup(id)
}

// say sends a message that outlives the session (final confirmations,
// fatal errors).
func (e *Engine) say(chatID int64, text string, markup ...*tele.ReplyMarkup) {
	var rm *tele.ReplyMarkup
	if len(markup) > 0 {
		rm = markup[0]
	}
	if _, err := e.tp.Prompt(chatID, text, rm); err != nil {
		logger.Warn(logger.Background(), "dialog", "send_failed",
			slog.Int64("chat_id", chatID),
			slog.Any("err", err))
	}
}

// token returns the chat's bearer token when the user is authorized.
func (e *Engine) token(chatID int64) (string, bool) {
	entry := e.accounts.Get(chatID)
	if !entry.Authorized() {
		return "", false
	}
	return entry.Token, true
}

// stopJob cancels the chat's monitoring job when one is registered.
func (e *Engine) stopJob(chatID int64) {
	if e.jobs == nil {
		return
	}
	if entry := e.accounts.Get(chatID); entry != nil {
		e.jobs.Stop(entry.Account.ID, chatID)
	}
}
