package state

import (
	"sync"
)

// memoryManager keeps sessions in process memory. Sessions die with the
// process, which matches the transient nature of dialogue flows.
type memoryManager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewMemoryManager constructs an in-memory Manager.
func NewMemoryManager() Manager {
	return &memoryManager{sessions: make(map[int64]*Session)}
}

func (m *memoryManager) Get(chatID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[chatID]; ok {
		return s
	}
	s := NewSession(chatID)
	m.sessions[chatID] = s
	return s
}

func (m *memoryManager) Begin(chatID int64, st State) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := NewSession(chatID)
	s.State = st
	m.sessions[chatID] = s
	return s
}

func (m *memoryManager) SetState(chatID int64, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[chatID]
	if !ok {
		s = NewSession(chatID)
		m.sessions[chatID] = s
	}
	s.State = st
}

func (m *memoryManager) CurrentState(chatID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[chatID]; ok {
		return s.State
	}
	return StateIdle
}

func (m *memoryManager) InProgress(chatID int64) bool {
	return m.CurrentState(chatID) != StateIdle
}

func (m *memoryManager) End(chatID int64) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[chatID]
	if !ok {
		return nil
	}
	delete(m.sessions, chatID)
	return s.DrainCleanup()
}
