package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/m3rciful/pricewatch/internal/models"
	"github.com/m3rciful/pricewatch/internal/passhash"
	"github.com/m3rciful/pricewatch/internal/server/auth"
	"github.com/m3rciful/pricewatch/internal/server/pricesource"
	"github.com/m3rciful/pricewatch/internal/server/storage"
)

var testHashParams = passhash.Params{
	Memory:      8 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

type fakeStore struct {
	users   map[uuid.UUID]*models.Account
	tracks  map[int64]*models.Track
	history map[int64][]models.PriceHistoryEntry
	tokens  map[uuid.UUID]string

	nextTrackID int64
	nextEntryID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   map[uuid.UUID]*models.Account{},
		tracks:  map[int64]*models.Track{},
		history: map[int64][]models.PriceHistoryEntry{},
		tokens:  map[uuid.UUID]string{},
	}
}

func (f *fakeStore) CreateUser(_ context.Context, in models.AccountCreate, hash string) (*models.Account, error) {
	for _, u := range f.users {
		if u.Email == in.Email || u.TelegramID == in.TelegramID {
			return nil, storage.ErrDuplicate
		}
	}
	acc := &models.Account{
		ID:             uuid.New(),
		TelegramID:     in.TelegramID,
		Name:           in.Name,
		Surname:        in.Surname,
		Email:          in.Email,
		HashedPassword: hash,
		IsActive:       true,
	}
	f.users[acc.ID] = acc
	return acc, nil
}

func (f *fakeStore) UserByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) UserByTelegramID(_ context.Context, telegramID int64) (*models.Account, error) {
	for _, u := range f.users {
		if u.TelegramID == telegramID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) UserByEmail(_ context.Context, email string) (*models.Account, error) {
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) UpdateUser(_ context.Context, id uuid.UUID, patch models.AccountUpdate, hash *string) (*models.Account, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if patch.Surname != nil {
		u.Surname = *patch.Surname
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.AvatarURL != nil {
		u.AvatarURL = *patch.AvatarURL
	}
	if hash != nil {
		u.HashedPassword = *hash
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) DeleteUser(_ context.Context, id uuid.UUID) error {
	if _, ok := f.users[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.users, id)
	for trID, tr := range f.tracks {
		if tr.OwnerID == id {
			delete(f.tracks, trID)
			delete(f.history, trID)
		}
	}
	delete(f.tokens, id)
	return nil
}

func (f *fakeStore) Tracks(_ context.Context, filter storage.TrackFilter) ([]models.Track, error) {
	var out []models.Track
	for _, tr := range f.tracks {
		if tr.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Marketplace != nil && tr.Marketplace != *filter.Marketplace {
			continue
		}
		if filter.IsActive != nil && tr.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, *tr)
	}
	return out, nil
}

func (f *fakeStore) TrackByID(_ context.Context, id int64) (*models.Track, error) {
	if tr, ok := f.tracks[id]; ok {
		cp := *tr
		return &cp, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) CreateTrack(_ context.Context, tr models.Track) (*models.Track, error) {
	for _, existing := range f.tracks {
		if existing.OwnerID == tr.OwnerID && existing.Marketplace == tr.Marketplace && existing.Article == tr.Article {
			return nil, storage.ErrDuplicate
		}
	}
	f.nextTrackID++
	tr.ID = f.nextTrackID
	f.tracks[tr.ID] = &tr
	cp := tr
	return &cp, nil
}

func (f *fakeStore) UpdateTrack(_ context.Context, id int64, patch models.TrackUpdate) (*models.Track, error) {
	tr, ok := f.tracks[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if patch.Title != nil {
		tr.Title = *patch.Title
	}
	if patch.TargetPrice != nil {
		tr.TargetPrice = *patch.TargetPrice
	}
	if patch.CurrentPrice != nil {
		tr.CurrentPrice = *patch.CurrentPrice
	}
	if patch.Notified != nil {
		tr.Notified = *patch.Notified
	}
	if patch.IsActive != nil {
		tr.IsActive = *patch.IsActive
	}
	if patch.LastCheckedAt != nil {
		tr.LastCheckedAt = patch.LastCheckedAt
	}
	cp := *tr
	return &cp, nil
}

func (f *fakeStore) DeleteTrack(_ context.Context, id int64) (*models.Track, error) {
	tr, ok := f.tracks[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	delete(f.tracks, id)
	delete(f.history, id)
	return tr, nil
}

func (f *fakeStore) History(_ context.Context, trackID int64) ([]models.PriceHistoryEntry, error) {
	return f.history[trackID], nil
}

func (f *fakeStore) AppendHistory(_ context.Context, trackID int64, price decimal.Decimal) (*models.PriceHistoryEntry, error) {
	f.nextEntryID++
	entry := models.PriceHistoryEntry{ID: f.nextEntryID, TrackID: trackID, Price: price}
	f.history[trackID] = append(f.history[trackID], entry)
	return &entry, nil
}

func (f *fakeStore) SaveToken(_ context.Context, userID uuid.UUID, token string) error {
	f.tokens[userID] = token
	return nil
}

type fakeSource struct {
	product pricesource.Product
	err     error
	calls   int
}

func (f *fakeSource) Lookup(_ context.Context, _ models.Marketplace, _ string) (pricesource.Product, error) {
	f.calls++
	if f.err != nil {
		return pricesource.Product{}, f.err
	}
	return f.product, nil
}

type fakeMedia struct {
	names []string
}

func (f *fakeMedia) Put(_ context.Context, name string, r io.Reader, _ int64) (string, error) {
	_, _ = io.Copy(io.Discard, r)
	f.names = append(f.names, name)
	return "http://cdn.local/avatars/" + name, nil
}

type testEnv struct {
	store  *fakeStore
	source *fakeSource
	media  *fakeMedia
	issuer *auth.Issuer
	srv    *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	issuer, err := auth.NewIssuer(auth.Config{Secret: strings.Repeat("s", 32)})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	env := &testEnv{
		store:  newFakeStore(),
		source: &fakeSource{product: pricesource.Product{Title: "Товар", Price: decimal.RequireFromString("1499.90")}},
		media:  &fakeMedia{},
		issuer: issuer,
	}
	h := NewHandler(env.store, issuer, env.source, env.media)
	h.hashParams = testHashParams
	env.srv = httptest.NewServer(h.Router())
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) registerUser(t *testing.T, telegramID int64, email string) (*models.Account, string) {
	t.Helper()
	hash, err := passhash.HashWithParams("1234", testHashParams)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	acc, err := e.store.CreateUser(context.Background(), models.AccountCreate{
		TelegramID: telegramID,
		Name:       "Иван",
		Surname:    "Петров",
		Email:      email,
	}, hash)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	token, err := e.issuer.Issue(acc.ID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return acc, token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp, raw
}

func detailOf(t *testing.T, raw []byte) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("parse detail from %q: %v", raw, err)
	}
	return body.Detail
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	resp, raw := env.do(t, http.MethodPost, "/auth/register", "", models.AccountCreate{
		TelegramID: 42, Name: "Иван", Surname: "Петров",
		Email: "ivan@gmail.com", Password: "1234",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status %d: %s", resp.StatusCode, raw)
	}
	var acc models.Account
	if err := json.Unmarshal(raw, &acc); err != nil {
		t.Fatalf("parse account: %v", err)
	}
	if acc.ID == uuid.Nil || acc.Email != "ivan@gmail.com" {
		t.Fatalf("unexpected account: %+v", acc)
	}

	form := url.Values{"username": {"ivan@gmail.com"}, "password": {"1234"}, "grant_type": {"password"}}
	loginResp, err := http.PostForm(env.srv.URL+"/auth/jwt/login", form)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer loginResp.Body.Close()
	if loginResp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", loginResp.StatusCode)
	}
	var grant models.TokenGrant
	if err := json.NewDecoder(loginResp.Body).Decode(&grant); err != nil {
		t.Fatalf("parse grant: %v", err)
	}
	if grant.TokenType != "bearer" || grant.AccessToken == "" {
		t.Fatalf("unexpected grant: %+v", grant)
	}
	if gotID, err := env.issuer.Verify(grant.AccessToken); err != nil || gotID != acc.ID {
		t.Fatalf("grant verifies to %s (%v), want %s", gotID, err, acc.ID)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, 42, "ivan@gmail.com")

	resp, raw := env.do(t, http.MethodPost, "/auth/register", "", models.AccountCreate{
		TelegramID: 43, Name: "Петр", Surname: "Иванов",
		Email: "ivan@gmail.com", Password: "1234",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
	if detailOf(t, raw) != detailUserExists {
		t.Fatalf("detail %q", detailOf(t, raw))
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, 42, "ivan@gmail.com")

	form := url.Values{"username": {"ivan@gmail.com"}, "password": {"9999"}}
	resp, err := http.PostForm(env.srv.URL+"/auth/jwt/login", form)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
	raw, _ := io.ReadAll(resp.Body)
	if detailOf(t, raw) != detailBadCredentials {
		t.Fatalf("detail %q", detailOf(t, raw))
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t)
	acc, token := env.registerUser(t, 42, "ivan@gmail.com")

	resp, _ := env.do(t, http.MethodGet, "/users/me", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: status %d, want 401", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodGet, "/users/me", "garbage", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d, want 401", resp.StatusCode)
	}

	resp, raw := env.do(t, http.MethodGet, "/users/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", resp.StatusCode, raw)
	}
	var me models.Account
	if err := json.Unmarshal(raw, &me); err != nil {
		t.Fatalf("parse me: %v", err)
	}
	if me.ID != acc.ID {
		t.Fatalf("me id %s, want %s", me.ID, acc.ID)
	}
}

func TestCheckTelegramID(t *testing.T) {
	env := newTestEnv(t)
	acc, _ := env.registerUser(t, 42, "ivan@gmail.com")

	resp, raw := env.do(t, http.MethodPost, "/users/check-telegram-id", "",
		map[string]int64{"telegram_id": 42})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, raw)
	}
	var got models.Account
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.ID != acc.ID || got.HashedPassword == "" {
		t.Fatalf("unexpected account: %+v", got)
	}

	resp, _ = env.do(t, http.MethodPost, "/users/check-telegram-id", "",
		map[string]int64{"telegram_id": 999})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing user: status %d, want 404", resp.StatusCode)
	}
}

func TestCreateTrackSeedsHistory(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.registerUser(t, 42, "ivan@gmail.com")

	resp, raw := env.do(t, http.MethodPost, "/tracks", token, models.TrackCreate{
		Marketplace: models.MarketplaceWildberries,
		Article:     "12345",
		TargetPrice: decimal.NewFromInt(1000),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status %d: %s", resp.StatusCode, raw)
	}
	var track models.Track
	if err := json.Unmarshal(raw, &track); err != nil {
		t.Fatalf("parse track: %v", err)
	}
	if track.Title != "Товар" || !track.CurrentPrice.Equal(decimal.RequireFromString("1499.90")) {
		t.Fatalf("product data not applied: %+v", track)
	}
	hist := env.store.history[track.ID]
	if len(hist) != 1 || !hist[0].Price.Equal(track.CurrentPrice) {
		t.Fatalf("history not seeded: %+v", hist)
	}
}

func TestCreateTrackDuplicate(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.registerUser(t, 42, "ivan@gmail.com")
	body := models.TrackCreate{
		Marketplace: models.MarketplaceWildberries,
		Article:     "12345",
		TargetPrice: decimal.NewFromInt(1000),
	}
	if resp, raw := env.do(t, http.MethodPost, "/tracks", token, body); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first create: %d %s", resp.StatusCode, raw)
	}
	resp, raw := env.do(t, http.MethodPost, "/tracks", token, body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate: status %d, want 400", resp.StatusCode)
	}
	if detailOf(t, raw) != detailTrackExists {
		t.Fatalf("detail %q", detailOf(t, raw))
	}
}

func TestCreateTrackProductNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.registerUser(t, 42, "ivan@gmail.com")
	env.source.err = pricesource.ErrProductNotFound

	resp, raw := env.do(t, http.MethodPost, "/tracks", token, models.TrackCreate{
		Marketplace: models.MarketplaceWildberries,
		Article:     "0",
		TargetPrice: decimal.NewFromInt(1000),
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
	if detailOf(t, raw) != detailProductNotFound {
		t.Fatalf("detail %q", detailOf(t, raw))
	}
}

func TestCreateTrackSourceDown(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.registerUser(t, 42, "ivan@gmail.com")
	env.source.err = fmt.Errorf("connection refused")

	resp, _ := env.do(t, http.MethodPost, "/tracks", token, models.TrackCreate{
		Marketplace: models.MarketplaceWildberries,
		Article:     "12345",
		TargetPrice: decimal.NewFromInt(1000),
	})
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status %d, want 502", resp.StatusCode)
	}
}

func TestForeignTrackLooksMissing(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.registerUser(t, 42, "ivan@gmail.com")
	_, otherToken := env.registerUser(t, 43, "petr@gmail.com")

	resp, raw := env.do(t, http.MethodPost, "/tracks", ownerToken, models.TrackCreate{
		Marketplace: models.MarketplaceWildberries,
		Article:     "12345",
		TargetPrice: decimal.NewFromInt(1000),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", resp.StatusCode, raw)
	}
	var track models.Track
	_ = json.Unmarshal(raw, &track)

	for _, probe := range []struct{ method, path string }{
		{http.MethodGet, fmt.Sprintf("/tracks/compare-price/%d", track.ID)},
		{http.MethodPatch, fmt.Sprintf("/tracks/refresh/%d", track.ID)},
		{http.MethodDelete, fmt.Sprintf("/tracks/%d", track.ID)},
		{http.MethodGet, fmt.Sprintf("/price-history/%d", track.ID)},
	} {
		resp, _ := env.do(t, probe.method, probe.path, otherToken, nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s %s: status %d, want 404", probe.method, probe.path, resp.StatusCode)
		}
	}
}

func TestUpdateTrackTargetPriceRearmsNotified(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.registerUser(t, 42, "ivan@gmail.com")
	resp, raw := env.do(t, http.MethodPost, "/tracks", token, models.TrackCreate{
		Marketplace: models.MarketplaceWildberries,
		Article:     "12345",
		TargetPrice: decimal.NewFromInt(1000),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", resp.StatusCode, raw)
	}
	var track models.Track
	_ = json.Unmarshal(raw, &track)

	notified := true
	if _, err := env.store.UpdateTrack(context.Background(), track.ID, models.TrackUpdate{Notified: &notified}); err != nil {
		t.Fatalf("mark notified: %v", err)
	}

	target := decimal.NewFromInt(900)
	resp, raw = env.do(t, http.MethodPatch, fmt.Sprintf("/tracks/%d", track.ID), token,
		models.TrackUpdate{TargetPrice: &target})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: %d %s", resp.StatusCode, raw)
	}
	var updated models.Track
	if err := json.Unmarshal(raw, &updated); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !updated.TargetPrice.Equal(target) {
		t.Fatalf("target price %s, want %s", updated.TargetPrice, target)
	}
	if updated.Notified {
		t.Fatal("notified flag not re-armed by target price change")
	}
}

func TestRefreshTrackUpdatesPrice(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.registerUser(t, 42, "ivan@gmail.com")
	resp, raw := env.do(t, http.MethodPost, "/tracks", token, models.TrackCreate{
		Marketplace: models.MarketplaceWildberries,
		Article:     "12345",
		TargetPrice: decimal.NewFromInt(1000),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", resp.StatusCode, raw)
	}
	var track models.Track
	_ = json.Unmarshal(raw, &track)

	env.source.product = pricesource.Product{Title: "Товар", Price: decimal.RequireFromString("899.00")}
	resp, raw = env.do(t, http.MethodPatch, fmt.Sprintf("/tracks/refresh/%d", track.ID), token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: %d %s", resp.StatusCode, raw)
	}
	var refreshed models.Track
	if err := json.Unmarshal(raw, &refreshed); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !refreshed.CurrentPrice.Equal(decimal.RequireFromString("899.00")) {
		t.Fatalf("price %s, want 899.00", refreshed.CurrentPrice)
	}
	if refreshed.LastCheckedAt == nil {
		t.Fatal("last_checked_at not stamped")
	}
}

func TestRefreshTokenStoresToken(t *testing.T) {
	env := newTestEnv(t)
	acc, token := env.registerUser(t, 42, "ivan@gmail.com")

	resp, raw := env.do(t, http.MethodPatch, "/users/me/refresh", token,
		map[string]map[string]string{"jwt_token": {"access_token": token}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, raw)
	}
	if env.store.tokens[acc.ID] != token {
		t.Fatalf("token not stored: %q", env.store.tokens[acc.ID])
	}
}

func TestDeleteUserOnlySelf(t *testing.T) {
	env := newTestEnv(t)
	acc, token := env.registerUser(t, 42, "ivan@gmail.com")
	other, _ := env.registerUser(t, 43, "petr@gmail.com")

	resp, _ := env.do(t, http.MethodDelete, "/users/"+other.ID.String(), token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign delete: status %d, want 403", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodDelete, "/users/"+acc.ID.String(), token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("self delete: status %d, want 200", resp.StatusCode)
	}
	if _, ok := env.store.users[acc.ID]; ok {
		t.Fatal("user not deleted")
	}
}

func TestUploadAvatar(t *testing.T) {
	env := newTestEnv(t)
	acc, token := env.registerUser(t, 42, "ivan@gmail.com")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "avatar.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte("jpeg-bytes"))
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/users/me/avatar", &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("parse: %v", err)
	}
	wantName := "42_avatar.jpg"
	if len(env.media.names) != 1 || env.media.names[0] != wantName {
		t.Fatalf("stored names %v, want [%s]", env.media.names, wantName)
	}
	if body["avatar_url"] == "" || env.store.users[acc.ID].AvatarURL != body["avatar_url"] {
		t.Fatalf("avatar url not persisted: %v vs %q", body, env.store.users[acc.ID].AvatarURL)
	}
}
