package shops

import (
	"log/slog"

	"dealfinder/internal/domain"
	"dealfinder/internal/fetch"
)

// NewPhilibert builds the Philibert price adapter. Philibert's search indexes
// barcodes and embeds them in product links, so a barcode hit is exact.
func NewPhilibert(client *fetch.Client, logger *slog.Logger) *Shop {
	return &Shop{
		client:          client,
		source:          domain.SourcePhilibert,
		searchURL:       "https://www.philibertnet.com/fr/recherche?search_query=%s",
		itemSelector:    "div.product-container",
		titleSelector:   "a.product-name",
		priceSelector:   "span.price.product-price",
		linkSelector:    "a.product-name",
		supportsBarcode: true,
		logger:          logger.With("source", string(domain.SourcePhilibert)),
	}
}
