package bot

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/pricewatch/internal/models"
)

func TestShortTrackCardEscapesMarketplaceTitle(t *testing.T) {
	tr := models.Track{
		ID:           7,
		Article:      "1828162",
		Title:        "Кроссовки New_Balance *574*",
		CurrentPrice: decimal.NewFromInt(4999),
		TargetPrice:  decimal.NewFromInt(4000),
	}

	card := shortTrackCard(tr)
	if !strings.Contains(card, `New\_Balance \*574\*`) {
		t.Fatalf("marketplace title not escaped for Markdown: %q", card)
	}
}

func TestShortTrackCardLinksImageOnlyWhenPresent(t *testing.T) {
	img := "https://img.example/1.jpg"
	tr := models.Track{
		ID:           7,
		Title:        "Шапка",
		ImageURL:     &img,
		CurrentPrice: decimal.NewFromInt(100),
		TargetPrice:  decimal.NewFromInt(90),
	}

	if card := shortTrackCard(tr); !strings.Contains(card, "("+img+")") {
		t.Fatalf("image link missing: %q", card)
	}

	tr.ImageURL = nil
	if card := shortTrackCard(tr); strings.Contains(card, "Фото товара") {
		t.Fatalf("image line rendered without an image: %q", card)
	}
}
