package shops

import (
	"log/slog"

	"dealfinder/internal/domain"
	"dealfinder/internal/fetch"
)

// NewLudocortex builds the Ludocortex price adapter.
func NewLudocortex(client *fetch.Client, logger *slog.Logger) *Shop {
	return &Shop{
		client:          client,
		source:          domain.SourceLudocortex,
		searchURL:       "https://www.ludocortex.fr/jolisearch?s=%s",
		itemSelector:    "div.js-product-miniature",
		titleSelector:   "h3.product-title a",
		priceSelector:   "span.product-price",
		linkSelector:    "h3.product-title a",
		supportsBarcode: true,
		logger:          logger.With("source", string(domain.SourceLudocortex)),
	}
}
