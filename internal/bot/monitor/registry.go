package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/pricewatch/core/logger"
)

const (
	// Defaults match the cadence the bot has always used.
	DefaultInterval     = 3 * time.Second
	DefaultInitialDelay = 1 * time.Second
)

// jobKey identifies one monitoring job: one per (owner, chat) pair.
type jobKey struct {
	OwnerID uuid.UUID
	ChatID  int64
}

type job struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry owns the set of active monitoring jobs. Start replaces any
// existing job for the same key, so at most one job per (owner, chat)
// runs at any instant.
type Registry struct {
	checker      *Checker
	interval     time.Duration
	initialDelay time.Duration

	mu   sync.Mutex
	jobs map[jobKey]*job
	wg   sync.WaitGroup
}

// NewRegistry builds a Registry driving the given Checker. Non-positive
// durations fall back to the defaults.
func NewRegistry(checker *Checker, interval, initialDelay time.Duration) *Registry {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if initialDelay <= 0 {
		initialDelay = DefaultInitialDelay
	}
	return &Registry{
		checker:      checker,
		interval:     interval,
		initialDelay: initialDelay,
		jobs:         make(map[jobKey]*job),
	}
}

// Start registers a monitoring job for the owner's chat. An existing job
// for the same key is cancelled and awaited first, so the old task can
// never fire after Start returns. When several Starts race on one key,
// every displaced job is drained and exactly one registration survives.
func (r *Registry) Start(ctx context.Context, ownerID uuid.UUID, chatID int64, token string) {
	key := jobKey{OwnerID: ownerID, ChatID: chatID}

	r.mu.Lock()
	// A concurrent Start may slot a new job in while we wait with the
	// lock released, so re-check the slot after every await.
	for {
		old, ok := r.jobs[key]
		if !ok {
			break
		}
		old.cancel()
		delete(r.jobs, key)
		r.mu.Unlock()
		<-old.done
		r.mu.Lock()
	}

	jobCtx, cancel := context.WithCancel(ctx)
	j := &job{cancel: cancel, done: make(chan struct{})}
	r.jobs[key] = j
	r.wg.Add(1)
	r.mu.Unlock()

	go r.run(jobCtx, key, j, token)

	logger.Info(ctx, "monitor", "job_started",
		slog.Int64("chat_id", chatID),
		slog.Duration("interval", r.interval))
}

// Stop cancels and removes the job for the key. It is a no-op when no
// job exists. After Stop returns no new tick begins; an in-flight tick
// may still finish.
func (r *Registry) Stop(ownerID uuid.UUID, chatID int64) {
	key := jobKey{OwnerID: ownerID, ChatID: chatID}

	r.mu.Lock()
	j, ok := r.jobs[key]
	if ok {
		j.cancel()
		delete(r.jobs, key)
	}
	r.mu.Unlock()

	if ok {
		logger.Info(logger.Background(), "monitor", "job_stopped", slog.Int64("chat_id", chatID))
	}
}

// Active reports whether a job is registered for the key.
func (r *Registry) Active(ownerID uuid.UUID, chatID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.jobs[jobKey{OwnerID: ownerID, ChatID: chatID}]
	return ok
}

// Shutdown cancels every job and waits for the loops to drain.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	for key, j := range r.jobs {
		j.cancel()
		delete(r.jobs, key)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Registry) run(ctx context.Context, key jobKey, j *job, token string) {
	defer close(j.done)
	defer r.wg.Done()

	timer := time.NewTimer(r.initialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return
		}

		if err := r.checker.Check(ctx, key.ChatID, token); err != nil {
			if errors.Is(err, ErrTokenExpired) {
				j.cancel()
				r.remove(key, j)
				return
			}
			logger.Warn(ctx, "monitor", "tick_failed",
				slog.Int64("chat_id", key.ChatID),
				slog.Any("err", err))
		}

		timer.Reset(r.interval)
	}
}

// remove drops the job from the registry unless it was already replaced
// by a newer one for the same key.
func (r *Registry) remove(key jobKey, j *job) {
	r.mu.Lock()
	if cur, ok := r.jobs[key]; ok && cur == j {
		delete(r.jobs, key)
	}
	r.mu.Unlock()
}
