package state

import "fmt"

// State identifies a step of a multi-turn dialogue flow.
type State string

const (
	// StateIdle indicates no active conversation with the user.
	StateIdle State = "idle"
)

// ErrFieldExists is returned when a flow tries to overwrite an accumulated
// field. Fields are write-once within a session; a flow that needs a fresh
// value must start a fresh session.
type ErrFieldExists struct {
	Key string
}

func (e *ErrFieldExists) Error() string {
	return fmt.Sprintf("session field %q already set", e.Key)
}

// Session stores one conversation's progress: the current state, the fields
// collected so far, and message ids queued for deletion on the next state
// transition.
type Session struct {
	ChatID  int64
	State   State
	fields  map[string]string
	cleanup []int
}

// NewSession returns an idle session bound to a chat.
func NewSession(chatID int64) *Session {
	return &Session{
		ChatID: chatID,
		State:  StateIdle,
		fields: make(map[string]string),
	}
}

// SetField records a collected value. Each key may be written exactly once
// per session.
func (s *Session) SetField(key, value string) error {
	if s.fields == nil {
		s.fields = make(map[string]string)
	}
	if _, ok := s.fields[key]; ok {
		return &ErrFieldExists{Key: key}
	}
	s.fields[key] = value
	return nil
}

// Field returns a collected value.
func (s *Session) Field(key string) (string, bool) {
	v, ok := s.fields[key]
	return v, ok
}

// FieldOr returns a collected value or def when absent.
func (s *Session) FieldOr(key, def string) string {
	if v, ok := s.fields[key]; ok {
		return v
	}
	return def
}

// Fields returns a copy of all collected fields.
func (s *Session) Fields() map[string]string {
	out := make(map[string]string, len(s.fields))
	for k, v := range s.fields {
		out[k] = v
	}
	return out
}

// PushCleanup queues a transient message id for deletion at the next state
// transition.
func (s *Session) PushCleanup(messageID int) {
	s.cleanup = append(s.cleanup, messageID)
}

// DrainCleanup clears and returns the queued message ids in insertion order.
func (s *Session) DrainCleanup() []int {
	out := s.cleanup
	s.cleanup = nil
	return out
}

// PendingCleanup reports how many message ids are queued.
func (s *Session) PendingCleanup() int {
	return len(s.cleanup)
}

// Manager owns dialogue sessions keyed by chat id.
type Manager interface {
	// Get returns the existing session for a chat or a fresh idle one.
	Get(chatID int64) *Session
	// Begin discards any previous session and starts a new one in st.
	Begin(chatID int64, st State) *Session
	// SetState moves an existing (or new) session to st.
	SetState(chatID int64, st State)
	// CurrentState returns the session state, StateIdle when absent.
	CurrentState(chatID int64) State
	// InProgress reports whether the chat has an active non-idle session.
	InProgress(chatID int64) bool
	// End destroys the session and returns any undrained cleanup ids so
	// the caller can delete the leftovers.
	End(chatID int64) []int
}
