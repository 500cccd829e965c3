// Package pricesource fetches live marketplace product data.
package pricesource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/pricewatch/core/logger"
	"github.com/m3rciful/pricewatch/internal/models"
)

// ErrProductNotFound means the marketplace has no card for the article.
// Transient transport or upstream failures are reported as plain errors.
var ErrProductNotFound = errors.New("pricesource: product not found")

// Product is the marketplace's answer for one article.
type Product struct {
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
}

// Source resolves an article to its current product data.
type Source interface {
	Lookup(ctx context.Context, marketplace models.Marketplace, article string) (Product, error)
}

const (
	wildberriesCardURL = "https://card.wb.ru/cards/v1/detail?appType=1&curr=rub&dest=-1257786&spp=30&nm=%s"
	lookupTimeout      = 10 * time.Second
)

// Wildberries reads the public card API. The card payload carries prices in
// kopecks (salePriceU). Ozon articles go through the same card API for now,
// matching how tracks for both marketplaces are priced.
type Wildberries struct {
	http    *http.Client
	cardURL string
}

type Option func(*Wildberries)

func WithHTTPClient(c *http.Client) Option {
	return func(w *Wildberries) { w.http = c }
}

// WithCardURL overrides the card endpoint format string (one %s for the
// article).
func WithCardURL(format string) Option {
	return func(w *Wildberries) { w.cardURL = format }
}

func NewWildberries(opts ...Option) *Wildberries {
	w := &Wildberries{
		http:    &http.Client{Timeout: lookupTimeout},
		cardURL: wildberriesCardURL,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type cardResponse struct {
	Data struct {
		Products []struct {
			Name       string `json:"name"`
			SalePriceU int64  `json:"salePriceU"`
		} `json:"products"`
	} `json:"data"`
}

func (w *Wildberries) Lookup(ctx context.Context, marketplace models.Marketplace, article string) (Product, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(w.cardURL, article), nil)
	if err != nil {
		return Product{}, fmt.Errorf("build card request: %w", err)
	}
	resp, err := w.http.Do(req)
	if err != nil {
		return Product{}, fmt.Errorf("fetch product card: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Product{}, fmt.Errorf("product card: unexpected status %d", resp.StatusCode)
	}

	var card cardResponse
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return Product{}, fmt.Errorf("decode product card: %w", err)
	}
	if len(card.Data.Products) == 0 {
		return Product{}, ErrProductNotFound
	}

	p := card.Data.Products[0]
	product := Product{
		Title: p.Name,
		Price: decimal.New(p.SalePriceU, -2),
	}
	logger.LogEvent(ctx, logger.SRC, slog.LevelDebug, "card_fetched",
		slog.String("marketplace", string(marketplace)),
		slog.String("article", article),
		slog.String("price", product.Price.String()),
		slog.Duration("duration", logger.Took(start)),
	)
	return product, nil
}
