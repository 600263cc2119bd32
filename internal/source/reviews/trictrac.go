package reviews

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"dealfinder/internal/domain"
	"dealfinder/internal/fetch"
	"dealfinder/internal/metrics"
)

const trictracSearchURL = "https://www.trictrac.net/recherche?search=%s"

// TricTrac looks up a game's community note on the TricTrac search page,
// which carries ratings as schema.org microdata.
type TricTrac struct {
	client    *fetch.Client
	searchURL string
	logger    *slog.Logger
}

func NewTricTrac(client *fetch.Client, logger *slog.Logger) *TricTrac {
	return &TricTrac{
		client:    client,
		searchURL: trictracSearchURL,
		logger:    logger.With("source", string(domain.SourceTricTrac)),
	}
}

func (t *TricTrac) Source() domain.Source {
	return domain.SourceTricTrac
}

// Lookup scans the result items for one whose title is exactly the requested
// name. nil, nil means no usable rating.
func (t *TricTrac) Lookup(ctx context.Context, name string) (*domain.Reviewer, error) {
	searchURL := fmt.Sprintf(t.searchURL, searchQuery(name))
	t.logger.Debug("searching", "url", searchURL)

	doc, status, err := t.client.GetDocument(ctx, searchURL)
	if err != nil {
		metrics.SourceLookups.WithLabelValues(string(domain.SourceTricTrac), "error").Inc()
		return nil, fmt.Errorf("trictrac search: %w", err)
	}
	if status != http.StatusOK {
		metrics.SourceLookups.WithLabelValues(string(domain.SourceTricTrac), "error").Inc()
		return nil, fmt.Errorf("trictrac search: unexpected status %d", status)
	}

	var found *domain.Reviewer
	doc.Find("div.item").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		title := strings.TrimSpace(item.Find("span[itemprop=name]").First().Text())
		note, noteErr := strconv.ParseFloat(item.Find("[itemprop=ratingValue]").AttrOr("content", ""), 64)
		count, countErr := strconv.Atoi(item.Find("[itemprop=reviewCount]").AttrOr("content", ""))
		if title == "" || noteErr != nil || countErr != nil {
			return true
		}

		if strings.EqualFold(title, name) {
			found = &domain.Reviewer{
				Source: domain.SourceTricTrac,
				Note:   note,
				Count:  count,
				URL:    searchURL,
			}
			return false
		}
		return true
	})

	if found == nil {
		metrics.SourceLookups.WithLabelValues(string(domain.SourceTricTrac), "no_match").Inc()
		return nil, nil
	}
	metrics.SourceLookups.WithLabelValues(string(domain.SourceTricTrac), "match").Inc()
	return found, nil
}
