// Package backend is the HTTP client for the pricewatch tracking service.
// Every call carries a per-request deadline on top of the caller's context
// and maps 401/404 responses to typed errors the dialogue and monitor
// layers branch on.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	coretelegram "github.com/m3rciful/pricewatch/core/telegram"
	"github.com/m3rciful/pricewatch/internal/models"
)

const defaultCallTimeout = 10 * time.Second

// Client talks to the tracking backend. Zero value is not usable, build
// one with New.
type Client struct {
	baseURL     string
	http        *http.Client
	callTimeout time.Duration
}

// Option tweaks a Client during construction.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests use this
// to point at an httptest server without retries).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCallTimeout overrides the per-call deadline applied to every request.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// New builds a Client rooted at baseURL (scheme://host[:port], no
// trailing slash required).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        coretelegram.BuildHTTPClient(),
		callTimeout: defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// --- users ---

// AccountByTelegramID looks up the account bound to a Telegram user.
// Returns ErrNotFound when the user never registered.
func (c *Client) AccountByTelegramID(ctx context.Context, telegramID int64) (*models.Account, error) {
	body := map[string]int64{"telegram_id": telegramID}
	var acc models.Account
	if err := c.do(ctx, http.MethodPost, "/users/check-telegram-id", "", body, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

// AccountByEmail looks up an account by email, ErrNotFound when free.
// Registration uses it as a uniqueness probe.
func (c *Client) AccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	body := map[string]string{"email": email}
	var acc models.Account
	if err := c.do(ctx, http.MethodPost, "/users/check-email", "", body, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, in models.AccountCreate) (*models.Account, error) {
	var acc models.Account
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", in, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

// Login exchanges credentials for a bearer token. The endpoint speaks
// the OAuth2 password-grant form encoding, not JSON.
func (c *Client) Login(ctx context.Context, email, password string) (*models.TokenGrant, error) {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {email},
		"password":   {password},
		"scope":      {""},
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/jwt/login", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var grant models.TokenGrant
	if err := c.send(req, &grant); err != nil {
		return nil, err
	}
	return &grant, nil
}

// Me fetches the authenticated account.
func (c *Client) Me(ctx context.Context, token string) (*models.Account, error) {
	var acc models.Account
	if err := c.do(ctx, http.MethodGet, "/users/me", token, nil, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

// UpdateMe applies a partial update to the authenticated account.
func (c *Client) UpdateMe(ctx context.Context, token string, in models.AccountUpdate) (*models.Account, error) {
	var acc models.Account
	if err := c.do(ctx, http.MethodPatch, "/users/me", token, in, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

// RefreshToken persists a freshly issued token server-side so the
// monitoring job picks it up on the next tick.
func (c *Client) RefreshToken(ctx context.Context, token string) error {
	body := map[string]any{
		"jwt_token": map[string]string{"access_token": token},
	}
	return c.do(ctx, http.MethodPatch, "/users/me/refresh", token, body, nil)
}

// DeleteAccount removes the account and, by cascade, all its tracks.
func (c *Client) DeleteAccount(ctx context.Context, token string, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/users/"+id.String(), token, nil, nil)
}

// UploadAvatar streams a photo as multipart form data and returns the
// stored avatar URL.
func (c *Client) UploadAvatar(ctx context.Context, token, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("build avatar form: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("copy avatar payload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finish avatar form: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/users/me/avatar", &buf)
	if err != nil {
		return "", fmt.Errorf("build avatar request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	var out struct {
		AvatarURL string `json:"avatar_url"`
	}
	if err := c.send(req, &out); err != nil {
		return "", err
	}
	return out.AvatarURL, nil
}

// --- tracks ---

// Tracks lists the authenticated user's tracks.
func (c *Client) Tracks(ctx context.Context, token string) ([]models.Track, error) {
	var tracks []models.Track
	if err := c.do(ctx, http.MethodGet, "/tracks", token, nil, &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// CreateTrack registers a new tracked product.
func (c *Client) CreateTrack(ctx context.Context, token string, in models.TrackCreate) (*models.Track, error) {
	var track models.Track
	if err := c.do(ctx, http.MethodPost, "/tracks", token, in, &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// UpdateTrack applies a partial update to one track.
func (c *Client) UpdateTrack(ctx context.Context, token string, id int64, in models.TrackUpdate) (*models.Track, error) {
	var track models.Track
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/tracks/%d", id), token, in, &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// DeleteTrack removes a track and its history.
func (c *Client) DeleteTrack(ctx context.Context, token string, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/tracks/%d", id), token, nil, nil)
}

// RefreshTrack asks the server to re-fetch the marketplace price for one
// track and returns the refreshed record.
func (c *Client) RefreshTrack(ctx context.Context, token string, id int64) (*models.Track, error) {
	var track models.Track
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/tracks/refresh/%d", id), token, nil, &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// ComparePrice reports whether a track's current price reached its target.
func (c *Client) ComparePrice(ctx context.Context, token string, id int64) (*models.PriceComparison, error) {
	var cmp models.PriceComparison
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tracks/compare-price/%d", id), token, nil, &cmp); err != nil {
		return nil, err
	}
	return &cmp, nil
}

// --- price history ---

// PriceHistory lists the retained samples for one track, oldest first.
func (c *Client) PriceHistory(ctx context.Context, token string, trackID int64) ([]models.PriceHistoryEntry, error) {
	var entries []models.PriceHistoryEntry
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/price-history/%d", trackID), token, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// AppendPriceHistory records the track's current price as a new sample.
// The server evicts the oldest sample first when the retention cap is hit.
func (c *Client) AppendPriceHistory(ctx context.Context, token string, trackID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/price-history/%d", trackID), token, nil, nil)
}

// --- plumbing ---

// do issues one JSON request. A nil body sends no payload, a nil out
// discards the response body.
func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		payload = bytes.NewReader(raw)
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		io.Copy(io.Discard, resp.Body)
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &APIError{Status: resp.StatusCode, Detail: readDetail(resp.Body)}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

// readDetail pulls a FastAPI-style {"detail": "..."} message out of an
// error body, falling back to the raw text.
func readDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var wrapped struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Detail != "" {
		return wrapped.Detail
	}
	return strings.TrimSpace(string(raw))
}
