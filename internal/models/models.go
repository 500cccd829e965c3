// Package models defines the wire and domain types shared by the bot client
// and the tracking backend.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Marketplace identifies the shop a tracked product belongs to.
type Marketplace string

const (
	MarketplaceWildberries Marketplace = "wildberries"
	MarketplaceOzon        Marketplace = "ozon"
)

// Valid reports whether the marketplace is one of the supported values.
func (m Marketplace) Valid() bool {
	switch m {
	case MarketplaceWildberries, MarketplaceOzon:
		return true
	}
	return false
}

// Account is a registered user of the tracking backend.
type Account struct {
	ID             uuid.UUID `json:"id" db:"id"`
	TelegramID     int64     `json:"telegram_id" db:"telegram_id"`
	Name           string    `json:"name" db:"name"`
	Surname        string    `json:"surname" db:"surname"`
	Email          string    `json:"email" db:"email"`
	HashedPassword string    `json:"hashed_password,omitempty" db:"hashed_password"`
	AvatarURL      string    `json:"avatar_url,omitempty" db:"avatar_url"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// FullName renders "Name Surname" for display.
func (a Account) FullName() string {
	switch {
	case a.Name == "":
		return a.Surname
	case a.Surname == "":
		return a.Name
	}
	return a.Name + " " + a.Surname
}

// Track is a user's subscription to a marketplace product's price.
// (marketplace, article, owner) is unique.
type Track struct {
	ID            int64           `json:"id" db:"id"`
	Marketplace   Marketplace     `json:"marketplace" db:"marketplace"`
	Article       string          `json:"article" db:"article"`
	Title         string          `json:"title" db:"title"`
	ImageURL      *string         `json:"image_url,omitempty" db:"image_url"`
	TargetPrice   decimal.Decimal `json:"target_price" db:"target_price"`
	CurrentPrice  decimal.Decimal `json:"current_price" db:"current_price"`
	Notified      bool            `json:"notified" db:"notified"`
	IsActive      bool            `json:"is_active" db:"is_active"`
	LastCheckedAt *time.Time      `json:"last_checked_at,omitempty" db:"last_checked_at"`
	OwnerID       uuid.UUID       `json:"owner_id" db:"owner_id"`
}

// ThresholdReached reports whether the current price crossed the target.
func (t Track) ThresholdReached() bool {
	return t.CurrentPrice.LessThanOrEqual(t.TargetPrice)
}

// PriceHistoryEntry is one immutable price sample for a track.
type PriceHistoryEntry struct {
	ID        int64           `json:"id" db:"id"`
	TrackID   int64           `json:"track_id" db:"track_id"`
	Price     decimal.Decimal `json:"price" db:"price"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// TokenGrant is the response of POST /auth/jwt/login.
type TokenGrant struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// TrackCreate is the payload of POST /tracks.
type TrackCreate struct {
	Marketplace Marketplace     `json:"marketplace"`
	Article     string          `json:"article"`
	TargetPrice decimal.Decimal `json:"target_price"`
}

// TrackUpdate is the partial-update payload of PATCH /tracks/{id}.
// Nil fields are left unchanged.
type TrackUpdate struct {
	Title         *string          `json:"title,omitempty"`
	TargetPrice   *decimal.Decimal `json:"target_price,omitempty"`
	CurrentPrice  *decimal.Decimal `json:"current_price,omitempty"`
	Notified      *bool            `json:"notified,omitempty"`
	IsActive      *bool            `json:"is_active,omitempty"`
	LastCheckedAt *time.Time       `json:"last_checked_at,omitempty"`
}

// AccountCreate is the payload of POST /auth/register.
type AccountCreate struct {
	TelegramID int64  `json:"telegram_id"`
	Name       string `json:"name"`
	Surname    string `json:"surname"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

// AccountUpdate is the partial-update payload of PATCH /users/me.
type AccountUpdate struct {
	Name      *string `json:"name,omitempty"`
	Surname   *string `json:"surname,omitempty"`
	Email     *string `json:"email,omitempty"`
	Password  *string `json:"password,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// PriceComparison is the response of GET /tracks/compare-price/{id}.
type PriceComparison struct {
	TrackID      int64           `json:"track_id"`
	TargetPrice  decimal.Decimal `json:"target_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Reached      bool            `json:"reached"`
}
