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

const trackColumns = `id, marketplace, article, title, image_url, target_price, current_price, notified, is_active, last_checked_at, owner_id`

// TrackFilter narrows a track listing. Nil fields are not applied.
type TrackFilter struct {
	OwnerID     uuid.UUID
	Marketplace *models.Marketplace
	IsActive    *bool
}

// Tracks lists the owner's tracks, newest first.
func (s *Store) Tracks(ctx context.Context, f TrackFilter) ([]models.Track, error) {
	where := []string{"owner_id = $1"}
	args := []any{f.OwnerID}
	if f.Marketplace != nil {
		args = append(args, *f.Marketplace)
		where = append(where, "marketplace = $"+strconv.Itoa(len(args)))
	}
	if f.IsActive != nil {
		args = append(args, *f.IsActive)
		where = append(where, "is_active = $"+strconv.Itoa(len(args)))
	}
	var tracks []models.Track
	err := s.db.SelectContext(ctx, &tracks,
		`SELECT `+trackColumns+` FROM tracks WHERE `+strings.Join(where, " AND ")+` ORDER BY id DESC`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	return tracks, nil
}

func (s *Store) TrackByID(ctx context.Context, id int64) (*models.Track, error) {
	var tr models.Track
	err := s.db.GetContext(ctx, &tr,
		`SELECT `+trackColumns+` FROM tracks WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get track: %w", err)
	}
	return &tr, nil
}

// CreateTrack inserts the track. (owner, marketplace, article) must be free.
func (s *Store) CreateTrack(ctx context.Context, tr models.Track) (*models.Track, error) {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO tracks (marketplace, article, title, image_url, target_price, current_price, notified, is_active, last_checked_at, owner_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		tr.Marketplace, tr.Article, tr.Title, tr.ImageURL, tr.TargetPrice,
		tr.CurrentPrice, tr.Notified, tr.IsActive, tr.LastCheckedAt, tr.OwnerID,
	).Scan(&tr.ID)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("create track: %w", err)
	}
	return &tr, nil
}

// UpdateTrack applies the non-nil fields of the patch and returns the
// updated row.
func (s *Store) UpdateTrack(ctx context.Context, id int64, patch models.TrackUpdate) (*models.Track, error) {
	set := make([]string, 0, 6)
	args := make([]any, 0, 7)
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, col+" = $"+strconv.Itoa(len(args)))
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.TargetPrice != nil {
		add("target_price", *patch.TargetPrice)
	}
	if patch.CurrentPrice != nil {
		add("current_price", *patch.CurrentPrice)
	}
	if patch.Notified != nil {
		add("notified", *patch.Notified)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}
	if patch.LastCheckedAt != nil {
		add("last_checked_at", *patch.LastCheckedAt)
	}
	if len(set) == 0 {
		return s.TrackByID(ctx, id)
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE tracks SET `+strings.Join(set, ", ")+` WHERE id = $`+strconv.Itoa(len(args)),
		args...)
	if err != nil {
		return nil, fmt.Errorf("update track: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.TrackByID(ctx, id)
}

// DeleteTrack removes the track and returns the deleted row.
func (s *Store) DeleteTrack(ctx context.Context, id int64) (*models.Track, error) {
	tr, err := s.TrackByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tracks WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("delete track: %w", err)
	}
	return tr, nil
}

// DeactivateStale flips is_active off for tracks whose last check predates
// the cutoff. Returns the number of tracks deactivated.
func (s *Store) DeactivateStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tracks SET is_active = $1 WHERE is_active = $2 AND last_checked_at IS NOT NULL AND last_checked_at < $3`,
		false, true, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deactivate stale tracks: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
