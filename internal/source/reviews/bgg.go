package reviews

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"dealfinder/internal/domain"
	"dealfinder/internal/fetch"
	"dealfinder/internal/metrics"
)

const bggSearchURL = "https://boardgamegeek.com/geeksearch.php?action=search&objecttype=boardgame&q=%s"

// BGG looks up a game's geek rating on the BoardGameGeek search page.
type BGG struct {
	client    *fetch.Client
	searchURL string
	logger    *slog.Logger
}

func NewBGG(client *fetch.Client, logger *slog.Logger) *BGG {
	return &BGG{
		client:    client,
		searchURL: bggSearchURL,
		logger:    logger.With("source", string(domain.SourceBGG)),
	}
}

func (b *BGG) Source() domain.Source {
	return domain.SourceBGG
}

// Lookup returns the rating of the top search result when its title is
// exactly the requested name. nil, nil means no usable rating.
func (b *BGG) Lookup(ctx context.Context, name string) (*domain.Reviewer, error) {
	searchURL := fmt.Sprintf(b.searchURL, searchQuery(name))
	b.logger.Debug("searching", "url", searchURL)

	doc, status, err := b.client.GetDocument(ctx, searchURL)
	if err != nil {
		metrics.SourceLookups.WithLabelValues(string(domain.SourceBGG), "error").Inc()
		return nil, fmt.Errorf("bgg search: %w", err)
	}
	if status != http.StatusOK {
		metrics.SourceLookups.WithLabelValues(string(domain.SourceBGG), "error").Inc()
		return nil, fmt.Errorf("bgg search: unexpected status %d", status)
	}

	title := strings.TrimSpace(doc.Find("a.primary").First().Text())
	if !strings.EqualFold(title, name) {
		metrics.SourceLookups.WithLabelValues(string(domain.SourceBGG), "no_match").Inc()
		return nil, nil
	}

	// The first rating cell on the row is the rank; the geek rating and the
	// voter count follow it.
	cells := doc.Find("td.collection_bggrating")
	note, err := strconv.ParseFloat(strings.TrimSpace(cells.Eq(1).Text()), 64)
	if err != nil {
		metrics.SourceLookups.WithLabelValues(string(domain.SourceBGG), "no_match").Inc()
		return nil, nil
	}
	count, err := strconv.Atoi(strings.TrimSpace(cells.Eq(2).Text()))
	if err != nil {
		metrics.SourceLookups.WithLabelValues(string(domain.SourceBGG), "no_match").Inc()
		return nil, nil
	}

	metrics.SourceLookups.WithLabelValues(string(domain.SourceBGG), "match").Inc()
	return &domain.Reviewer{
		Source: domain.SourceBGG,
		Note:   note,
		Count:  count,
		URL:    searchURL,
	}, nil
}
