// Package shops holds one price adapter per external shop. All adapters share
// the same lookup contract: a priced reference, a plain "no match", or an
// error when the shop's page structure is not what we expect.
package shops

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"dealfinder/internal/domain"
	"dealfinder/internal/fetch"
	"dealfinder/internal/match"
	"dealfinder/internal/metrics"
)

// Shop is the shared search-and-scan machinery; each adapter only supplies
// its search URL and selectors.
type Shop struct {
	client *fetch.Client
	source domain.Source

	searchURL       string // fmt template with one %s for the query
	itemSelector    string
	titleSelector   string
	priceSelector   string
	linkSelector    string
	supportsBarcode bool

	logger *slog.Logger
}

func (s *Shop) Source() domain.Source {
	return s.source
}

// Lookup resolves a candidate name to a priced reference. Where the shop
// search supports it, a barcode hit on a product link is ground truth and
// short-circuits the fuzzy matcher; otherwise the first result whose title is
// similar to the candidate wins. nil, nil means no match.
func (s *Shop) Lookup(ctx context.Context, name string, barcode *int64) (*domain.Reference, error) {
	if s.supportsBarcode && barcode != nil {
		code := strconv.FormatInt(*barcode, 10)
		ref, err := s.scan(ctx, code, func(_, href string) bool {
			return strings.Contains(strings.SplitN(href, "?", 2)[0], code)
		})
		if err != nil {
			metrics.SourceLookups.WithLabelValues(string(s.source), "error").Inc()
			return nil, err
		}
		if ref != nil {
			metrics.SourceLookups.WithLabelValues(string(s.source), "match").Inc()
			return ref, nil
		}
	}

	ref, err := s.scan(ctx, name, func(title, _ string) bool {
		return match.Similar(title, name)
	})
	if err != nil {
		metrics.SourceLookups.WithLabelValues(string(s.source), "error").Inc()
		return nil, err
	}

	if ref == nil {
		metrics.SourceLookups.WithLabelValues(string(s.source), "no_match").Inc()
		return nil, nil
	}
	metrics.SourceLookups.WithLabelValues(string(s.source), "match").Inc()
	return ref, nil
}

// scan fetches the search results for a query and returns the first entry
// accepted by the predicate, in page order.
func (s *Shop) scan(ctx context.Context, query string, accept func(title, href string) bool) (*domain.Reference, error) {
	searchURL := fmt.Sprintf(s.searchURL, url.QueryEscape(query))
	s.logger.Debug("searching", "url", searchURL)

	doc, status, err := s.client.GetDocument(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("%s search: %w", s.source, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s search: unexpected status %d", s.source, status)
	}

	var found *domain.Reference
	doc.Find(s.itemSelector).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		title := strings.TrimSpace(item.Find(s.titleSelector).First().Text())
		href := item.Find(s.linkSelector).First().AttrOr("href", "")
		price, err := parseShopPrice(item.Find(s.priceSelector).First().Text())
		if err != nil || title == "" || href == "" {
			return true
		}

		if accept(title, href) {
			found = &domain.Reference{Source: s.source, Price: price, URL: href}
			return false
		}
		return true
	})

	return found, nil
}

func parseShopPrice(text string) (float64, error) {
	raw := strings.TrimSpace(text)
	raw = strings.ReplaceAll(raw, "€", "")
	raw = strings.ReplaceAll(raw, ",", ".")
	raw = strings.TrimSpace(raw)
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", text, err)
	}
	return price, nil
}
