package middleware

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

type stubStates map[int64]string

func (s stubStates) CurrentState(chatID int64) string { return s[chatID] }

// gateCtx implements just enough of tele.Context for routing middleware.
type gateCtx struct {
	tele.Context
	chat  *tele.Chat
	store map[string]any
}

func newGateCtx(chatID int64) *gateCtx {
	return &gateCtx{chat: &tele.Chat{ID: chatID}, store: map[string]any{}}
}

func (c *gateCtx) Chat() *tele.Chat    { return c.chat }
func (c *gateCtx) Sender() *tele.User  { return &tele.User{ID: c.chat.ID} }
func (c *gateCtx) Update() tele.Update { return tele.Update{ID: 1} }
func (c *gateCtx) Get(k string) any    { return c.store[k] }
func (c *gateCtx) Set(k string, v any) { c.store[k] = v }

func TestRequireStateGatesOnDialogueState(t *testing.T) {
	states := stubStates{42: "track_delete_confirm"}
	var calls int
	h := RequireState(states, "track_delete_confirm")(func(c tele.Context) error {
		calls++
		return nil
	})

	if err := h(newGateCtx(42)); err != nil {
		t.Fatalf("matching state: %v", err)
	}
	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}

	// A stale keyboard pressed after the flow moved on is dropped.
	states[42] = "idle"
	if err := h(newGateCtx(42)); err != nil {
		t.Fatalf("mismatched state: %v", err)
	}
	if calls != 1 {
		t.Fatalf("handler ran outside its state, calls = %d", calls)
	}
}
