package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeDeactivator struct {
	cutoffs []time.Time
	err     error
}

func (f *fakeDeactivator) DeactivateStale(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return 2, f.err
}

func TestSweepUsesStaleCutoff(t *testing.T) {
	store := &fakeDeactivator{}
	s := NewSweeper(store, Config{StaleDays: 10})

	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	s.Sweep(context.Background(), now)

	if len(store.cutoffs) != 1 {
		t.Fatalf("deactivate called %d times, want 1", len(store.cutoffs))
	}
	want := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	if !store.cutoffs[0].Equal(want) {
		t.Fatalf("cutoff %s, want %s", store.cutoffs[0], want)
	}
}

func TestSweepDefaults(t *testing.T) {
	s := NewSweeper(&fakeDeactivator{}, Config{})
	if s.staleDays != defaultStaleDays {
		t.Fatalf("stale days %d, want %d", s.staleDays, defaultStaleDays)
	}
	if s.schedule != defaultSchedule {
		t.Fatalf("schedule %q, want %q", s.schedule, defaultSchedule)
	}
}

func TestSweepSurvivesStoreError(t *testing.T) {
	store := &fakeDeactivator{err: errors.New("db down")}
	s := NewSweeper(store, Config{})
	s.Sweep(context.Background(), time.Now())
	if len(store.cutoffs) != 1 {
		t.Fatalf("deactivate called %d times, want 1", len(store.cutoffs))
	}
}
