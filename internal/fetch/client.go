// Package fetch provides the shared rate-limited HTTP client every source
// adapter goes through.
package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"dealfinder/internal/metrics"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:102.0) Gecko/20100101 Firefox/102.0"

// Config holds fetch client configuration.
type Config struct {
	RequestsPerMinute int
	Timeout           time.Duration
	ProxyFile         string
	UserAgent         string
}

// Client sends GET requests with a per-host request quota. When a proxy pool
// is configured, each send goes through a randomly chosen pool member.
type Client struct {
	clients   []*http.Client
	userAgent string
	perMinute int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	logger *slog.Logger
}

// New builds the client pool. Each line of the proxy file yields one client
// routed through that SOCKS5 proxy; without a proxy file a single direct
// client is used. An unreadable proxy file is not fatal.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	c := &Client{
		userAgent: cfg.UserAgent,
		perMinute: cfg.RequestsPerMinute,
		limiters:  make(map[string]*rate.Limiter),
		logger:    logger.With("component", "fetch"),
	}

	var proxies []string
	if cfg.ProxyFile != "" {
		data, err := os.ReadFile(cfg.ProxyFile)
		if err != nil {
			logger.Warn("cannot read proxy file, no proxy used", "path", cfg.ProxyFile, "error", err)
		} else {
			for _, line := range strings.Split(string(data), "\n") {
				if line = strings.TrimSpace(line); line != "" {
					proxies = append(proxies, line)
				}
			}
		}
	}

	for _, proxy := range proxies {
		proxyURL, err := url.Parse("socks5://" + proxy)
		if err != nil {
			logger.Warn("skipping malformed proxy", "proxy", proxy, "error", err)
			continue
		}
		c.clients = append(c.clients, newHTTPClient(cfg.Timeout, proxyURL))
	}
	if len(c.clients) == 0 {
		c.clients = append(c.clients, newHTTPClient(cfg.Timeout, nil))
	}

	return c
}

func newHTTPClient(timeout time.Duration, proxyURL *url.URL) *http.Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
	if proxyURL != nil {
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		// Redirects stay visible to callers: the liveness check relies on
		// seeing the 3xx a removed announce answers with.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// limiter returns the quota for one host, creating it on first use. Hosts do
// not share budget.
func (c *Client) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(time.Minute/time.Duration(c.perMinute)), 1)
		c.limiters[host] = l
	}
	return l
}

// Get fetches a URL, suspending until the host's quota admits the request.
// Transport errors are retried until the context is cancelled; HTTP error
// statuses are the caller's problem and returned as-is.
func (c *Client) Get(ctx context.Context, rawURL string) (int, []byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, nil, fmt.Errorf("parse url: %w", err)
	}

	if err := c.limiter(u.Host).Wait(ctx); err != nil {
		return 0, nil, err
	}
	metrics.FetchRequests.WithLabelValues(u.Host).Inc()

	for {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}

		client := c.clients[rand.Intn(len(c.clients))]

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return 0, nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Connection", "keep-alive")

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return 0, nil, ctx.Err()
			}
			c.logger.Warn("request failed, retrying", "url", rawURL, "error", err)
			metrics.FetchRetries.WithLabelValues(u.Host).Inc()
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			c.logger.Warn("reading body failed, retrying", "url", rawURL, "error", err)
			metrics.FetchRetries.WithLabelValues(u.Host).Inc()
			continue
		}

		return resp.StatusCode, body, nil
	}
}

// GetDocument fetches a URL and parses the body as HTML.
func (c *Client) GetDocument(ctx context.Context, rawURL string) (*goquery.Document, int, error) {
	status, body, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, 0, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, status, fmt.Errorf("parse document: %w", err)
	}
	return doc, status, nil
}
