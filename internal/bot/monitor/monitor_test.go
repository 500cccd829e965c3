package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/m3rciful/pricewatch/internal/bot/backend"
	"github.com/m3rciful/pricewatch/internal/models"
)

// fakeAPI serves scripted prices per track and records mutations.
type fakeAPI struct {
	mu     sync.Mutex
	tracks map[int64]*models.Track
	// prices holds per-track sequences consumed one value per refresh;
	// the last value repeats once the sequence is exhausted.
	prices     map[int64][]decimal.Decimal
	refreshErr map[int64]error
	listErr    error
	events     []string
	history    map[int64]int

	// listGate, when set before any job starts, parks every Tracks call
	// until the channel is closed.
	listGate chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		tracks:     make(map[int64]*models.Track),
		prices:     make(map[int64][]decimal.Decimal),
		refreshErr: make(map[int64]error),
		history:    make(map[int64]int),
	}
}

func (f *fakeAPI) addTrack(id int64, article string, target float64, prices ...float64) {
	f.tracks[id] = &models.Track{
		ID:          id,
		Marketplace: models.MarketplaceWildberries,
		Article:     article,
		TargetPrice: decimal.NewFromFloat(target),
		IsActive:    true,
	}
	for _, p := range prices {
		f.prices[id] = append(f.prices[id], decimal.NewFromFloat(p))
	}
}

func (f *fakeAPI) Tracks(ctx context.Context, token string) ([]models.Track, error) {
	if f.listGate != nil {
		<-f.listGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.Track, 0, len(f.tracks))
	for id := int64(1); id <= int64(len(f.tracks)); id++ {
		if tr, ok := f.tracks[id]; ok {
			out = append(out, *tr)
		}
	}
	return out, nil
}

func (f *fakeAPI) RefreshTrack(ctx context.Context, token string, id int64) (*models.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.refreshErr[id]; err != nil {
		return nil, err
	}
	tr := f.tracks[id]
	seq := f.prices[id]
	if len(seq) > 0 {
		tr.CurrentPrice = seq[0]
		if len(seq) > 1 {
			f.prices[id] = seq[1:]
		}
	}
	f.events = append(f.events, fmt.Sprintf("refresh:%d", id))
	cp := *tr
	return &cp, nil
}

func (f *fakeAPI) UpdateTrack(ctx context.Context, token string, id int64, in models.TrackUpdate) (*models.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tr := f.tracks[id]
	if in.Notified != nil {
		tr.Notified = *in.Notified
		f.events = append(f.events, fmt.Sprintf("flag:%d", id))
	}
	cp := *tr
	return &cp, nil
}

func (f *fakeAPI) AppendPriceHistory(ctx context.Context, token string, trackID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history[trackID]++
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	api  *fakeAPI
}

func (n *fakeNotifier) Notify(chatID int64, text string) error {
	n.mu.Lock()
	n.sent = append(n.sent, text)
	n.mu.Unlock()
	if n.api != nil {
		n.api.mu.Lock()
		n.api.events = append(n.api.events, "notify")
		n.api.mu.Unlock()
	}
	return nil
}

func (n *fakeNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent...)
}

func TestNotifiesExactlyOnceOnFirstCrossing(t *testing.T) {
	api := newFakeAPI()
	api.addTrack(1, "1446573", 100, 150, 120, 95, 90)
	notes := &fakeNotifier{api: api}
	checker := NewChecker(api, notes)

	for tick := 0; tick < 4; tick++ {
		if err := checker.Check(context.Background(), 42, "tok"); err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
	}

	sent := notes.messages()
	if len(sent) != 1 {
		t.Fatalf("notifications = %d, want exactly 1: %v", len(sent), sent)
	}
	if !strings.Contains(sent[0], "1446573") {
		t.Fatalf("notification lacks article: %q", sent[0])
	}
	// Crossing fires on the third tick, when 95 is first observed.
	want := []string{"refresh:1", "refresh:1", "refresh:1", "flag:1", "notify", "refresh:1"}
	api.mu.Lock()
	got := append([]string(nil), api.events...)
	api.mu.Unlock()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events[%d] = %q, want %q (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestNeverCrossingTrackNeverNotifies(t *testing.T) {
	api := newFakeAPI()
	api.addTrack(1, "55", 100, 150, 140, 130)
	notes := &fakeNotifier{}
	checker := NewChecker(api, notes)

	for tick := 0; tick < 5; tick++ {
		if err := checker.Check(context.Background(), 42, "tok"); err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
	}
	if got := notes.messages(); len(got) != 0 {
		t.Fatalf("notifications = %v, want none", got)
	}
	if api.history[1] != 5 {
		t.Fatalf("history appends = %d, want 5", api.history[1])
	}
}

func TestFlagIsSetBeforeNotificationIsSent(t *testing.T) {
	api := newFakeAPI()
	api.addTrack(1, "77", 100, 90)
	notes := &fakeNotifier{api: api}
	checker := NewChecker(api, notes)

	if err := checker.Check(context.Background(), 42, "tok"); err != nil {
		t.Fatalf("Check: %v", err)
	}

	api.mu.Lock()
	events := append([]string(nil), api.events...)
	api.mu.Unlock()
	flagAt, notifyAt := -1, -1
	for i, e := range events {
		switch e {
		case "flag:1":
			flagAt = i
		case "notify":
			notifyAt = i
		}
	}
	if flagAt == -1 || notifyAt == -1 || flagAt > notifyAt {
		t.Fatalf("flag must precede notify, events: %v", events)
	}
}

func TestFailingTrackDoesNotAbortSiblings(t *testing.T) {
	api := newFakeAPI()
	api.addTrack(1, "11", 100, 200)
	api.addTrack(2, "22", 100, 90)
	api.refreshErr[1] = errors.New("marketplace is down")
	notes := &fakeNotifier{}
	checker := NewChecker(api, notes)

	if err := checker.Check(context.Background(), 42, "tok"); err != nil {
		t.Fatalf("Check: %v", err)
	}

	if got := notes.messages(); len(got) != 1 || !strings.Contains(got[0], "22") {
		t.Fatalf("sibling track was not processed: %v", got)
	}
	if api.history[1] != 0 || api.history[2] != 1 {
		t.Fatalf("history = %v, want only track 2 appended", api.history)
	}
}

func TestExpiredTokenAbortsTickAndTellsUser(t *testing.T) {
	api := newFakeAPI()
	api.listErr = backend.ErrUnauthorized
	notes := &fakeNotifier{}
	checker := NewChecker(api, notes)

	err := checker.Check(context.Background(), 42, "stale")
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Check error = %v, want ErrTokenExpired", err)
	}
	got := notes.messages()
	if len(got) != 1 || !strings.Contains(got[0], "Авторизуйтесь") {
		t.Fatalf("re-auth prompt missing: %v", got)
	}
}

func TestExpiredTokenMidTickAbortsRemainingTracks(t *testing.T) {
	api := newFakeAPI()
	api.addTrack(1, "11", 100, 200)
	api.addTrack(2, "22", 100, 90)
	api.refreshErr[1] = backend.ErrUnauthorized
	notes := &fakeNotifier{}
	checker := NewChecker(api, notes)

	if err := checker.Check(context.Background(), 42, "stale"); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Check error = %v, want ErrTokenExpired", err)
	}
	if api.history[2] != 0 {
		t.Fatalf("track 2 was processed after auth failure")
	}
}

func TestRegistryStartTwiceKeepsOneJob(t *testing.T) {
	api := newFakeAPI()
	api.addTrack(1, "11", 100, 200)
	notes := &fakeNotifier{}
	reg := NewRegistry(NewChecker(api, notes), 20*time.Millisecond, 5*time.Millisecond)
	defer reg.Shutdown()

	owner := uuid.New()
	reg.Start(context.Background(), owner, 42, "tok-a")
	reg.Start(context.Background(), owner, 42, "tok-b")

	if !reg.Active(owner, 42) {
		t.Fatal("job not active after double start")
	}
	reg.mu.Lock()
	n := len(reg.jobs)
	reg.mu.Unlock()
	if n != 1 {
		t.Fatalf("jobs = %d, want 1", n)
	}
}

func TestRegistryConcurrentRestartKeepsOneJob(t *testing.T) {
	api := newFakeAPI()
	api.addTrack(1, "11", 100, 200)
	gate := make(chan struct{})
	api.listGate = gate
	notes := &fakeNotifier{}
	reg := NewRegistry(NewChecker(api, notes), 5*time.Millisecond, time.Millisecond)

	owner := uuid.New()
	reg.Start(context.Background(), owner, 42, "tok-old")
	time.Sleep(10 * time.Millisecond) // first tick is now parked on the gate

	var wg sync.WaitGroup
	for _, tok := range []string{"tok-a", "tok-b"} {
		wg.Add(1)
		go func(tok string) {
			defer wg.Done()
			reg.Start(context.Background(), owner, 42, tok)
		}(tok)
	}
	time.Sleep(10 * time.Millisecond) // both replacements now await the parked job
	close(gate)
	wg.Wait()

	reg.mu.Lock()
	n := len(reg.jobs)
	reg.mu.Unlock()
	if n != 1 {
		t.Fatalf("jobs = %d, want 1", n)
	}

	// An orphaned job that lost its registry slot would keep the wait
	// group pinned and hang the drain.
	done := make(chan struct{})
	go func() {
		reg.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not drain all jobs")
	}
}

func TestRegistryStopPreventsFurtherTicks(t *testing.T) {
	api := newFakeAPI()
	api.addTrack(1, "11", 100, 200)
	notes := &fakeNotifier{}
	reg := NewRegistry(NewChecker(api, notes), 10*time.Millisecond, time.Millisecond)
	defer reg.Shutdown()

	owner := uuid.New()
	reg.Start(context.Background(), owner, 42, "tok")
	time.Sleep(35 * time.Millisecond)
	reg.Stop(owner, 42)

	if reg.Active(owner, 42) {
		t.Fatal("job still active after stop")
	}
	api.mu.Lock()
	ticked := api.history[1]
	api.mu.Unlock()
	if ticked == 0 {
		t.Fatal("job never ticked before stop")
	}
	time.Sleep(40 * time.Millisecond)
	api.mu.Lock()
	after := api.history[1]
	api.mu.Unlock()
	// One in-flight tick may still land, but nothing beyond that.
	if after > ticked+1 {
		t.Fatalf("ticks after stop: %d -> %d", ticked, after)
	}
}

func TestRegistryDeregistersOnExpiredToken(t *testing.T) {
	api := newFakeAPI()
	api.listErr = backend.ErrUnauthorized
	notes := &fakeNotifier{}
	reg := NewRegistry(NewChecker(api, notes), 10*time.Millisecond, time.Millisecond)
	defer reg.Shutdown()

	owner := uuid.New()
	reg.Start(context.Background(), owner, 42, "stale")

	deadline := time.After(time.Second)
	for reg.Active(owner, 42) {
		select {
		case <-deadline:
			t.Fatal("job was not deregistered after token expiry")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if got := notes.messages(); len(got) != 1 {
		t.Fatalf("re-auth prompts = %v, want exactly one", got)
	}
}
