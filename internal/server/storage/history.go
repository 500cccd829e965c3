package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/pricewatch/internal/models"
)

// HistoryCap bounds how many price samples a single track keeps. Appending
// beyond the cap evicts that track's oldest samples; other tracks' history
// is never touched.
const HistoryCap = 3

// History returns a track's price samples, oldest first.
func (s *Store) History(ctx context.Context, trackID int64) ([]models.PriceHistoryEntry, error) {
	var entries []models.PriceHistoryEntry
	err := s.db.SelectContext(ctx, &entries,
		`SELECT id, track_id, price, created_at FROM price_history
		 WHERE track_id = $1 ORDER BY created_at ASC, id ASC`,
		trackID)
	if err != nil {
		return nil, fmt.Errorf("list price history: %w", err)
	}
	return entries, nil
}

// AppendHistory records one price sample and evicts the track's oldest
// entries beyond HistoryCap.
func (s *Store) AppendHistory(ctx context.Context, trackID int64, price decimal.Decimal) (*models.PriceHistoryEntry, error) {
	entry := models.PriceHistoryEntry{
		TrackID:   trackID,
		Price:     price,
		CreatedAt: time.Now().UTC(),
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO price_history (track_id, price, created_at)
		 VALUES ($1, $2, $3) RETURNING id`,
		entry.TrackID, entry.Price, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return nil, fmt.Errorf("append price history: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM price_history WHERE track_id = $1 AND id NOT IN (
		   SELECT id FROM price_history WHERE track_id = $2
		   ORDER BY created_at DESC, id DESC LIMIT $3)`,
		trackID, trackID, HistoryCap)
	if err != nil {
		return nil, fmt.Errorf("evict price history: %w", err)
	}
	return &entry, nil
}
