// Package okkazeo implements the marketplace collaborator: feed polling,
// announce detail fetching and the liveness check.
package okkazeo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"dealfinder/internal/domain"
	"dealfinder/internal/fetch"
)

// ErrNotFound is returned by FetchDetail when the announce page no longer
// resolves to a listing.
var ErrNotFound = errors.New("okkazeo: announce not found")

// Config holds marketplace source configuration.
type Config struct {
	BaseURL  string
	FeedPath string
}

type Source struct {
	client  *fetch.Client
	baseURL string
	feedURL string
	parser  *gofeed.Parser
	logger  *slog.Logger
}

func New(cfg Config, client *fetch.Client, logger *slog.Logger) *Source {
	return &Source{
		client:  client,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		feedURL: strings.TrimSuffix(cfg.BaseURL, "/") + cfg.FeedPath,
		parser:  gofeed.NewParser(),
		logger:  logger.With("source", string(domain.SourceOkkazeo)),
	}
}

func (s *Source) announceURL(id int64) string {
	return fmt.Sprintf("%s/annonces/view/%d", s.baseURL, id)
}

// Poll fetches the head of the atom feed and turns each entry into a stub.
// Entries that cannot be parsed are skipped, not fatal.
func (s *Source) Poll(ctx context.Context) ([]domain.ListingStub, error) {
	status, body, err := s.client.Get(ctx, s.feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("fetch feed: unexpected status %d", status)
	}

	feed, err := s.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	stubs := make([]domain.ListingStub, 0, len(feed.Items))
	for _, item := range feed.Items {
		stub, err := stubFromEntry(item)
		if err != nil {
			s.logger.Warn("skipping feed entry", "guid", item.GUID, "error", err)
			continue
		}
		stubs = append(stubs, stub)
	}

	return stubs, nil
}

func stubFromEntry(item *gofeed.Item) (domain.ListingStub, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(item.GUID), 10, 64)
	if err != nil {
		return domain.ListingStub{}, fmt.Errorf("parse entry id %q: %w", item.GUID, err)
	}

	price, err := priceFromSummary(item.Description)
	if err != nil {
		return domain.ListingStub{}, err
	}

	var updated time.Time
	if item.UpdatedParsed != nil {
		updated = *item.UpdatedParsed
	}

	var link string
	if len(item.Links) > 0 {
		link = item.Links[0]
	}

	return domain.ListingStub{
		ID:      id,
		Title:   item.Title,
		Price:   price,
		URL:     link,
		Updated: updated,
	}, nil
}

// priceFromSummary digs the price out of the entry summary, whose last HTML
// fragment reads like ">12.50€".
func priceFromSummary(summary string) (float64, error) {
	parts := strings.Split(summary, ">")
	tail := parts[len(parts)-1]
	raw := strings.TrimSpace(strings.Split(tail, "€")[0])

	price, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("parse price from summary %q: %w", raw, err)
	}
	return price, nil
}

// FetchDetail fetches the announce page and extracts everything enrichment
// needs. A non-200 answer means the announce is gone.
func (s *Source) FetchDetail(ctx context.Context, id int64) (*domain.Listing, error) {
	url := s.announceURL(id)
	doc, status, err := s.client.GetDocument(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch announce %d: %w", id, err)
	}
	if status != http.StatusOK {
		return nil, ErrNotFound
	}

	listing := &domain.Listing{
		ID:         id,
		URL:        url,
		References: make(map[domain.Source]domain.Reference),
		Review:     domain.Review{Reviewers: make(map[domain.Source]domain.Reviewer)},
	}

	title := strings.TrimSpace(doc.Find("h1.announce-title").First().Text())
	if title == "" {
		return nil, fmt.Errorf("announce %d: missing title", id)
	}
	name, extension := splitTitle(title)
	listing.Name = domain.CleanName(name)
	listing.Extension = extension

	priceText := strings.TrimSpace(doc.Find("span.announce-price").First().Text())
	price, err := parsePrice(priceText)
	if err != nil {
		return nil, fmt.Errorf("announce %d: %w", id, err)
	}
	listing.Price = price

	if raw := strings.TrimSpace(doc.Find("i.fa-barcode").Parent().Text()); raw != "" {
		if barcode, err := strconv.ParseInt(digitsOnly(raw), 10, 64); err == nil && barcode != 0 {
			listing.Barcode = &barcode
		}
	}

	if city := strings.TrimSpace(doc.Find("div.gray div.grid-x div.cell").First().Text()); city != "" {
		listing.City = &city
	}

	if modified := doc.Find("time.announce-updated").AttrOr("datetime", ""); modified != "" {
		if ts, err := time.Parse(time.RFC3339, modified); err == nil {
			listing.LastModified = ts
		}
	}
	if listing.LastModified.IsZero() {
		listing.LastModified = time.Now().UTC()
	}

	listing.Seller = sellerFromDoc(doc)
	listing.Shipping = shippingFromDoc(doc)

	return listing, nil
}

// CheckLive reports whether the announce page still resolves. Removed
// announces redirect to the listing index, so anything but a 200 means gone.
func (s *Source) CheckLive(ctx context.Context, id int64) (bool, error) {
	status, _, err := s.client.Get(ctx, s.announceURL(id))
	if err != nil {
		return false, err
	}
	return status == http.StatusOK, nil
}

// splitTitle separates "Name - Extension" into its parts; the extension tag
// is the last dash-separated segment.
func splitTitle(title string) (string, string) {
	parts := strings.Split(title, "-")
	if len(parts) < 2 {
		return strings.TrimSpace(title), ""
	}
	extension := strings.TrimSpace(parts[len(parts)-1])
	name := strings.TrimSpace(strings.Join(parts[:len(parts)-1], "-"))
	return name, extension
}

func parsePrice(text string) (float64, error) {
	raw := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(text, "€", ""), ",", "."))
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", text, err)
	}
	return price, nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

func sellerFromDoc(doc *goquery.Document) domain.Seller {
	block := doc.Find("div.seller-block").First()
	seller := domain.Seller{
		Name: strings.TrimSpace(block.Find("a.seller-name").Text()),
		URL:  block.Find("a.seller-name").AttrOr("href", ""),
	}
	if raw := strings.TrimSpace(block.Find("span.seller-announces").Text()); raw != "" {
		if n, err := strconv.Atoi(digitsOnly(raw)); err == nil {
			seller.AnnounceCount = n
		}
	}
	seller.IsPro = block.Find("span.seller-pro").Length() > 0
	return seller
}

func shippingFromDoc(doc *goquery.Document) domain.Shipping {
	shipping := domain.Shipping{Methods: make(map[string]float64)}
	doc.Find("table.shipping-options tr").Each(func(_ int, row *goquery.Selection) {
		method := strings.TrimSpace(row.Find("td.shipping-method").Text())
		if method == "" {
			return
		}
		if strings.EqualFold(method, "remise en main propre") {
			shipping.HandDelivery = true
			return
		}
		if price, err := parsePrice(row.Find("td.shipping-price").Text()); err == nil {
			shipping.Methods[method] = price
		}
	})
	return shipping
}
