// Package account caches the backend account bound to each chat together
// with the bearer token obtained at authorization. Handlers and dialogue
// flows share one cache so a token issued in one flow is visible to all.
package account

import (
	"context"
	"sync"

	"github.com/m3rciful/pricewatch/internal/models"
)

// Lookup is the backend call used to refresh a cached account.
type Lookup interface {
	AccountByTelegramID(ctx context.Context, telegramID int64) (*models.Account, error)
}

// Entry is one chat's cached account state.
type Entry struct {
	Account models.Account
	Token   string
}

// Authorized reports whether the chat holds a bearer token.
func (e *Entry) Authorized() bool {
	return e != nil && e.Token != ""
}

// Cache keeps per-chat account entries. Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[int64]*Entry
}

func NewCache() *Cache {
	return &Cache{entries: make(map[int64]*Entry)}
}

// Get returns the cached entry for a chat, nil when absent.
func (c *Cache) Get(chatID int64) *Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[chatID]
}

// Put replaces the cached account for a chat, preserving an existing token.
func (c *Cache) Put(chatID int64, acc models.Account) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[chatID]
	if !ok {
		e = &Entry{}
		c.entries[chatID] = e
	}
	e.Account = acc
	return e
}

// SetToken stores the bearer token issued for a chat's account.
func (c *Cache) SetToken(chatID int64, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[chatID]
	if !ok {
		e = &Entry{}
		c.entries[chatID] = e
	}
	e.Token = token
}

// Clear drops a chat's entry, used after account deletion.
func (c *Cache) Clear(chatID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, chatID)
}

// Load refreshes the cached account from the backend. A missing account
// is not an error: the entry is returned as-is (possibly nil).
func (c *Cache) Load(ctx context.Context, api Lookup, chatID, telegramID int64) (*Entry, error) {
	acc, err := api.AccountByTelegramID(ctx, telegramID)
	if err != nil {
		return c.Get(chatID), err
	}
	return c.Put(chatID, *acc), nil
}
