package shops

import (
	"log/slog"

	"dealfinder/internal/domain"
	"dealfinder/internal/fetch"
)

// NewUltrajeux builds the Ultrajeux price adapter.
func NewUltrajeux(client *fetch.Client, logger *slog.Logger) *Shop {
	return &Shop{
		client:          client,
		source:          domain.SourceUltrajeux,
		searchURL:       "https://www.ultrajeux.com/search.php?text=%s",
		itemSelector:    "div.produit",
		titleSelector:   "div.titre a",
		priceSelector:   "span.prix",
		linkSelector:    "div.titre a",
		supportsBarcode: true,
		logger:          logger.With("source", string(domain.SourceUltrajeux)),
	}
}
