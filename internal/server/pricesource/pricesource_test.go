package pricesource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/pricewatch/internal/models"
)

func TestWildberriesLookupParsesCard(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RawQuery
		w.Write([]byte(`{"data":{"products":[{"name":"Кроссовки","salePriceU":149990}]}}`))
	}))
	defer srv.Close()

	wb := NewWildberries(WithCardURL(srv.URL + "?nm=%s"))
	product, err := wb.Lookup(context.Background(), models.MarketplaceWildberries, "12345")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if gotPath != "nm=12345" {
		t.Fatalf("got query %q, want nm=12345", gotPath)
	}
	if product.Title != "Кроссовки" {
		t.Fatalf("got title %q", product.Title)
	}
	if !product.Price.Equal(decimal.RequireFromString("1499.90")) {
		t.Fatalf("got price %s, want 1499.90", product.Price)
	}
}

func TestWildberriesLookupNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"products":[]}}`))
	}))
	defer srv.Close()

	wb := NewWildberries(WithCardURL(srv.URL + "?nm=%s"))
	_, err := wb.Lookup(context.Background(), models.MarketplaceWildberries, "0")
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("got %v, want ErrProductNotFound", err)
	}
}

func TestWildberriesLookupUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	wb := NewWildberries(WithCardURL(srv.URL + "?nm=%s"))
	_, err := wb.Lookup(context.Background(), models.MarketplaceWildberries, "12345")
	if err == nil || errors.Is(err, ErrProductNotFound) {
		t.Fatalf("transient failure must not look like not-found: %v", err)
	}
}

type mapStore struct {
	data map[string]string
	sets int
}

func (m *mapStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.data[key] = value
	m.sets++
	return nil
}

type countingSource struct {
	calls   int
	product Product
	err     error
}

func (c *countingSource) Lookup(ctx context.Context, _ models.Marketplace, _ string) (Product, error) {
	c.calls++
	if c.err != nil {
		return Product{}, c.err
	}
	return c.product, nil
}

func TestCachedLookupHitsUpstreamOnce(t *testing.T) {
	upstream := &countingSource{product: Product{Title: "Товар", Price: decimal.NewFromInt(500)}}
	store := &mapStore{data: map[string]string{}}
	cached := &Cached{src: upstream, store: store, ttl: time.Minute}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		product, err := cached.Lookup(ctx, models.MarketplaceWildberries, "111")
		if err != nil {
			t.Fatalf("lookup %d: %v", i, err)
		}
		if product.Title != "Товар" || !product.Price.Equal(decimal.NewFromInt(500)) {
			t.Fatalf("lookup %d returned %+v", i, product)
		}
	}
	if upstream.calls != 1 {
		t.Fatalf("upstream called %d times, want 1", upstream.calls)
	}
	if store.sets != 1 {
		t.Fatalf("cache written %d times, want 1", store.sets)
	}
}

func TestCachedLookupDoesNotCacheFailures(t *testing.T) {
	upstream := &countingSource{err: ErrProductNotFound}
	store := &mapStore{data: map[string]string{}}
	cached := &Cached{src: upstream, store: store, ttl: time.Minute}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := cached.Lookup(ctx, models.MarketplaceWildberries, "111"); !errors.Is(err, ErrProductNotFound) {
			t.Fatalf("lookup %d: got %v", i, err)
		}
	}
	if upstream.calls != 2 {
		t.Fatalf("upstream called %d times, want 2", upstream.calls)
	}
	if store.sets != 0 {
		t.Fatalf("failure was cached: %d writes", store.sets)
	}
}
