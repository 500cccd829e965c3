package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/pricewatch/internal/models"
)

const userColumns = `id, telegram_id, name, surname, email, hashed_password, avatar_url, is_active, created_at`

// CreateUser registers an account. The caller supplies the already hashed
// password. Email and telegram id are unique.
func (s *Store) CreateUser(ctx context.Context, in models.AccountCreate, hashedPassword string) (*models.Account, error) {
	acc := models.Account{
		ID:             uuid.New(),
		TelegramID:     in.TelegramID,
		Name:           in.Name,
		Surname:        in.Surname,
		Email:          in.Email,
		HashedPassword: hashedPassword,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, telegram_id, name, surname, email, hashed_password, avatar_url, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		acc.ID, acc.TelegramID, acc.Name, acc.Surname, acc.Email,
		acc.HashedPassword, acc.AvatarURL, acc.IsActive, acc.CreatedAt,
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &acc, nil
}

func (s *Store) UserByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return s.userBy(ctx, "id = $1", id)
}

func (s *Store) UserByTelegramID(ctx context.Context, telegramID int64) (*models.Account, error) {
	return s.userBy(ctx, "telegram_id = $1", telegramID)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.userBy(ctx, "email = $1", email)
}

func (s *Store) userBy(ctx context.Context, where string, arg any) (*models.Account, error) {
	var acc models.Account
	err := s.db.GetContext(ctx, &acc,
		`SELECT `+userColumns+` FROM users WHERE `+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &acc, nil
}

// UpdateUser applies the non-nil fields of the patch. hashedPassword, when
// set, replaces the stored hash (the caller hashes the plain password from
// the patch before calling).
func (s *Store) UpdateUser(ctx context.Context, id uuid.UUID, patch models.AccountUpdate, hashedPassword *string) (*models.Account, error) {
	set := make([]string, 0, 5)
	args := make([]any, 0, 6)
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, col+" = $"+strconv.Itoa(len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Surname != nil {
		add("surname", *patch.Surname)
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.AvatarURL != nil {
		add("avatar_url", *patch.AvatarURL)
	}
	if hashedPassword != nil {
		add("hashed_password", *hashedPassword)
	}
	if len(set) == 0 {
		return s.UserByID(ctx, id)
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET `+strings.Join(set, ", ")+` WHERE id = $`+strconv.Itoa(len(args)),
		args...)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.UserByID(ctx, id)
}

// DeleteUser removes the account. Tracks, history, and the stored token go
// with it through ON DELETE CASCADE.
func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
