package shops

import (
	"log/slog"

	"dealfinder/internal/domain"
	"dealfinder/internal/fetch"
)

// NewAgorajeux builds the Agorajeux price adapter. Agorajeux's search does not
// index barcodes, so only the name path applies.
func NewAgorajeux(client *fetch.Client, logger *slog.Logger) *Shop {
	return &Shop{
		client:        client,
		source:        domain.SourceAgorajeux,
		searchURL:     "https://www.agorajeux.com/fr/recherche?controller=search&s=%s",
		itemSelector:  "article.product-miniature",
		titleSelector: "h2.product-title a",
		priceSelector: "span.price",
		linkSelector:  "h2.product-title a",
		logger:        logger.With("source", string(domain.SourceAgorajeux)),
	}
}
