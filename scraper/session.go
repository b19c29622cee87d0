package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-scrape-sales/config"
)

// Page is a fetched HTML page.
type Page struct {
	URL        *url.URL
	StatusCode int
	Body       []byte
}

// Resolve returns href relative to the page URL.
func (p *Page) Resolve(href string) string {
	if p == nil || p.URL == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return p.URL.ResolveReference(ref).String()
}

// Session is one browsing session against the records site. The collector
// keeps the cookie jar, so pagination state lives here. Open one per run
// and Close it when the run ends.
type Session struct {
	collector *colly.Collector
	transport http.RoundTripper
	metrics   *Metrics

	mu     sync.Mutex
	closed bool
}

// NewTransport builds the HTTP transport sessions use by default.
func NewTransport(timeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// OpenSession starts a session for cfg.BaseURL over transport.
func OpenSession(cfg *config.Config, transport http.RoundTripper, metrics *Metrics) (*Session, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true
	if transport == nil {
		transport = NewTransport(cfg.Timeout)
	}
	collector.WithTransport(transport)

	slog.Debug("session opened", slog.String("host", parsed.Host))
	return &Session{
		collector: collector,
		transport: transport,
		metrics:   metrics,
	}, nil
}

// Get fetches rawURL.
func (s *Session) Get(ctx context.Context, phase, rawURL string) (*Page, error) {
	return s.do(ctx, phase, func(c *colly.Collector) error {
		return c.Visit(rawURL)
	})
}

// Post submits form to rawURL as application/x-www-form-urlencoded.
func (s *Session) Post(ctx context.Context, phase, rawURL string, form map[string]string) (*Page, error) {
	return s.do(ctx, phase, func(c *colly.Collector) error {
		return c.Post(rawURL, form)
	})
}

// Close ends the session. Requests after Close fail with ErrSessionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if t, ok := s.transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
	slog.Debug("session closed")
	return nil
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) do(ctx context.Context, phase string, visit func(c *colly.Collector) error) (*Page, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := s.collector.Clone()
	var (
		page   *Page
		status int
	)
	c.OnResponse(func(r *colly.Response) {
		page = &Page{URL: r.Request.URL, StatusCode: r.StatusCode, Body: r.Body}
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	start := time.Now()
	s.metrics.IncRequest(phase)
	err := visit(c)
	s.metrics.ObserveDuration(time.Since(start))

	if err != nil {
		return nil, fmt.Errorf("%s: %w", phase, classifyError(err, status))
	}
	if page == nil {
		return nil, fmt.Errorf("%s: no response body", phase)
	}
	return page, nil
}
