package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/serpcmp/internal/bypass"
	"github.com/FranksOps/serpcmp/internal/fingerprint"
	"github.com/FranksOps/serpcmp/internal/metrics"
	"github.com/FranksOps/serpcmp/pkg/httpclient"
	"github.com/FranksOps/serpcmp/pkg/proxy"
	"github.com/FranksOps/serpcmp/pkg/ratelimit"
	"github.com/FranksOps/serpcmp/pkg/useragent"
	"github.com/google/uuid"
)

type contextKey string

const proxyKey contextKey = "proxy_url"

// FetchConfig configures the fetcher.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	ProxyPool    *proxy.Pool
	UAPool       *useragent.Pool
	Fingerprint  fingerprint.Profile
	Limiter      *ratelimit.Limiter
}

// Page is the outcome of a single fetch.
type Page struct {
	ID         string
	URL        string
	FinalURL   string
	StatusCode int
	Headers    map[string][]string
	Body       []byte
	Duration   time.Duration
	FetchedAt  time.Time
	Blocked    bool
	BlockedBy  string // e.g. "Google", "Cloudflare"
	Error      string // non-empty if the fetch failed before a usable response
}

// Fetcher performs single URL fetches using the configured bypass strategies.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
}

// NewFetcher initializes a new Fetcher with the given configuration.
// A single client is held across requests so cookie jars (if configured)
// persist for the lifetime of the Fetcher.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if string(cfg.Fingerprint) == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}

	// The proxy is chosen per request and handed to the transport through the
	// request context.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if val := req.Context().Value(proxyKey); val != nil {
			if u, ok := val.(*url.URL); ok {
				return u, nil
			}
		}
		if req.URL.Hostname() == "127.0.0.1" || req.URL.Hostname() == "localhost" {
			return nil, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, proxyFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		MaxBodyBytes: httpclient.DefaultMaxBodyBytes,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Fetcher{config: cfg, client: client}, nil
}

// Fetch executes a GET request to targetURL. Transport failures are recorded
// on the returned Page rather than returned; the error return is reserved
// for a cancelled context. header values override the defaults, including
// the rotated User-Agent.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string, header http.Header) (*Page, error) {
	page := &Page{
		ID:  uuid.New().String(),
		URL: targetURL,
	}

	if f.config.Limiter != nil {
		if err := f.config.Limiter.Wait(ctx); err != nil {
			page.FetchedAt = time.Now().UTC()
			page.Error = fmt.Sprintf("rate limiter failed: %v", err)
			return page, err
		}
	}

	start := time.Now()
	page.FetchedAt = start.UTC()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		page.Error = fmt.Sprintf("failed to create request: %v", err)
		page.Duration = time.Since(start)
		return page, nil
	}

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		if activeProxy = f.config.ProxyPool.Next(); activeProxy != nil {
			req = req.WithContext(context.WithValue(req.Context(), proxyKey, activeProxy))
		}
	}

	req.Header.Set("User-Agent", f.config.UAPool.Next())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for k, vals := range header {
		req.Header.Del(k)
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	res, err := f.client.Fetch(req.Context(), req)
	if err != nil && res == nil {
		if activeProxy != nil {
			_ = f.config.ProxyPool.MarkFailure(activeProxy)
			metrics.ProxyFailures.WithLabelValues(activeProxy.Redacted()).Inc()
		}
		page.Error = fmt.Sprintf("request failed: %v", err)
		page.Duration = time.Since(start)
		if ctx.Err() != nil {
			return page, ctx.Err()
		}
		return page, nil
	}
	if err != nil {
		page.Error = err.Error()
	}

	if activeProxy != nil {
		_ = f.config.ProxyPool.MarkSuccess(activeProxy)
	}

	page.StatusCode = res.StatusCode
	page.Headers = res.Header
	page.Body = res.Body
	page.FinalURL = res.FinalURL
	page.Duration = time.Since(start)

	page.Blocked, page.BlockedBy = bypass.Analyze(&bypass.Response{
		URL:        page.FinalURL,
		StatusCode: page.StatusCode,
		Headers:    page.Headers,
		Body:       page.Body,
	}, bypass.DefaultDetectors())

	return page, nil
}
