package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// SaveToken stores the user's current access token, replacing any previous
// one. One token per user.
func (s *Store) SaveToken(ctx context.Context, userID uuid.UUID, accessToken string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jwt_tokens (user_id, access_token)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET access_token = $3`,
		userID, accessToken, accessToken)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// TokenByUserID returns the user's stored access token.
func (s *Store) TokenByUserID(ctx context.Context, userID uuid.UUID) (string, error) {
	var token string
	err := s.db.GetContext(ctx, &token,
		`SELECT access_token FROM jwt_tokens WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}
	return token, nil
}
