package serp

import (
	"fmt"
	"time"

	"github.com/FranksOps/serpcmp/internal/fingerprint"
	"github.com/FranksOps/serpcmp/internal/scraper"
	"github.com/FranksOps/serpcmp/pkg/proxy"
	"github.com/FranksOps/serpcmp/pkg/ratelimit"
)

// Options selects and configures a provider.
type Options struct {
	Name    string
	BaseURL string
	Timeout time.Duration

	// RequestsPerSecond limits outgoing searches (0 = unlimited).
	RequestsPerSecond float64
	Jitter            float64

	// Scraping only.
	Fingerprint fingerprint.Profile
	ProxiesFile string

	// CacheTTL enables the response cache when > 0.
	CacheTTL time.Duration
}

// New builds the provider described by opts. The returned limiter, if any,
// should be stopped by the caller once the provider is no longer used.
func New(opts Options) (Provider, *ratelimit.Limiter, error) {
	limiter := ratelimit.NewLimiter(opts.RequestsPerSecond, opts.Jitter)

	var (
		p   Provider
		err error
	)
	switch opts.Name {
	case ProviderSerpAPI, "":
		p, err = NewSerpAPI(SerpAPIConfig{
			BaseURL: opts.BaseURL,
			Timeout: opts.Timeout,
			Limiter: limiter,
		})
	case ProviderGoogle:
		var pool *proxy.Pool
		if opts.ProxiesFile != "" {
			pool = proxy.NewPool(proxy.Config{})
			if err := pool.LoadFile(opts.ProxiesFile); err != nil {
				limiter.Stop()
				return nil, nil, fmt.Errorf("failed to load proxies: %w", err)
			}
		}
		var fetcher *scraper.Fetcher
		fetcher, err = scraper.NewFetcher(scraper.FetchConfig{
			Timeout:      opts.Timeout,
			MaxRedirects: 5,
			UseCookieJar: true,
			ProxyPool:    pool,
			Fingerprint:  opts.Fingerprint,
			Limiter:      limiter,
		})
		if err == nil {
			p, err = NewGoogleScrape(GoogleConfig{BaseURL: opts.BaseURL, Fetcher: fetcher, Proxies: pool})
		}
	default:
		err = fmt.Errorf("unknown provider %q", opts.Name)
	}
	if err != nil {
		limiter.Stop()
		return nil, nil, err
	}

	if opts.CacheTTL > 0 {
		p = NewCached(p, opts.CacheTTL)
	}
	return p, limiter, nil
}
