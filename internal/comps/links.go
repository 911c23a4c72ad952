// Package comps builds comparison search links (eBay sold listings and the
// marketplace search) for a card.
package comps

import (
	"net/url"
	"strings"

	"cardflow/internal/attributes"
)

const (
	ebaySoldBase    = "https://www.ebay.com/sch/i.html"
	marketplaceBase = "https://www.tcgplayer.com/search/all/product"
	maxQueryChars   = 120
)

// Links are the comparison URLs persisted on an asset.
type Links struct {
	EbaySold    string
	Marketplace string
}

// Query assembles a search phrase from attributes, falling back to the first
// non-empty OCR line when no attribute is known.
func Query(attrs attributes.Attributes, ocrText string) string {
	parts := make([]string, 0, 5)
	for _, value := range []string{attrs.Year, attrs.Brand, attrs.PlayerName} {
		if value = strings.TrimSpace(value); value != "" {
			parts = append(parts, value)
		}
	}
	if attrs.CardNumber != "" {
		parts = append(parts, "#"+attrs.CardNumber)
	}
	if attrs.Grade != "" {
		parts = append(parts, attrs.Grade)
	}
	query := strings.Join(parts, " ")
	if query == "" {
		query = FirstLine(ocrText)
	}
	return truncate(query, maxQueryChars)
}

// Build returns the comparison links for a query. An empty query yields
// empty links.
func Build(query string) Links {
	query = strings.TrimSpace(query)
	if query == "" {
		return Links{}
	}
	sold := url.Values{}
	sold.Set("_nkw", query)
	sold.Set("LH_Sold", "1")
	sold.Set("LH_Complete", "1")

	market := url.Values{}
	market.Set("q", query)

	return Links{
		EbaySold:    ebaySoldBase + "?" + sold.Encode(),
		Marketplace: marketplaceBase + "?" + market.Encode(),
	}
}

// FirstLine returns the first non-blank line of text, trimmed.
func FirstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	return strings.TrimSpace(string(runes[:limit]))
}
