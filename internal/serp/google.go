package serp

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/FranksOps/serpcmp/internal/compare"
	"github.com/FranksOps/serpcmp/internal/scraper"
	"github.com/FranksOps/serpcmp/pkg/proxy"
	"github.com/FranksOps/serpcmp/pkg/useragent"
	"github.com/PuerkitoBio/goquery"
)

// DefaultGoogleBaseURL is where GoogleScrape sends searches.
const DefaultGoogleBaseURL = "https://www.google.com"

// GoogleConfig configures the scraping provider.
type GoogleConfig struct {
	BaseURL string
	Fetcher *scraper.Fetcher
	Desktop *useragent.Pool
	Mobile  *useragent.Pool
	// Proxies, if set, is reported on failed searches.
	Proxies *proxy.Pool
}

// GoogleScrape performs searches by fetching and parsing the Google results
// page directly. Positions are assigned in document order.
type GoogleScrape struct {
	cfg GoogleConfig
}

var _ Provider = (*GoogleScrape)(nil)

// NewGoogleScrape creates a scraping provider. The fetcher is required.
func NewGoogleScrape(cfg GoogleConfig) (*GoogleScrape, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("google scrape: fetcher is nil")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGoogleBaseURL
	}
	if cfg.Desktop == nil {
		cfg.Desktop = useragent.NewPool(nil)
	}
	if cfg.Mobile == nil {
		cfg.Mobile = useragent.NewMobilePool()
	}
	return &GoogleScrape{cfg: cfg}, nil
}

func (g *GoogleScrape) Name() string { return ProviderGoogle }

// Search fetches the results page for req and extracts organic entries.
func (g *GoogleScrape) Search(ctx context.Context, req Request) (*Response, error) {
	limit := count(req)

	u, err := url.Parse(g.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid google base url: %w", err)
	}
	u = u.JoinPath("search")
	q := u.Query()
	q.Set("q", req.Keyword)
	q.Set("num", strconv.Itoa(limit))
	if req.Language != "" {
		q.Set("hl", req.Language)
	}
	if req.Country != "" {
		q.Set("gl", req.Country)
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	if req.Device == compare.DeviceMobile {
		header.Set("User-Agent", g.cfg.Mobile.Next())
	} else {
		header.Set("User-Agent", g.cfg.Desktop.Next())
	}
	if req.Language != "" {
		header.Set("Accept-Language", req.Language)
	}

	page, err := g.cfg.Fetcher.Fetch(ctx, u.String(), header)
	if err != nil {
		return nil, err
	}

	raw := map[string]any{
		"search_url":  page.URL,
		"status_code": page.StatusCode,
		"duration_ms": page.Duration.Milliseconds(),
	}
	if page.Error != "" || page.Blocked || page.StatusCode != http.StatusOK {
		if g.cfg.Proxies != nil {
			raw["proxies"] = g.cfg.Proxies.Stats()
		}
	}
	switch {
	case page.Error != "":
		return nil, &ProviderError{Provider: g.Name(), Keyword: req.Keyword, StatusCode: page.StatusCode, Message: page.Error, Raw: raw}
	case page.Blocked:
		raw["blocked_by"] = page.BlockedBy
		return nil, &ProviderError{Provider: g.Name(), Keyword: req.Keyword, StatusCode: page.StatusCode, Message: "request challenged by " + page.BlockedBy, Raw: raw}
	case page.StatusCode != http.StatusOK:
		return nil, &ProviderError{Provider: g.Name(), Keyword: req.Keyword, StatusCode: page.StatusCode, Message: http.StatusText(page.StatusCode), Raw: raw}
	}

	organic, err := ParseGoogleResults(page.Body, limit)
	if err != nil {
		return nil, &ProviderError{Provider: g.Name(), Keyword: req.Keyword, StatusCode: page.StatusCode, Message: err.Error(), Raw: raw}
	}
	raw["organic_results"] = organic

	return &Response{
		Provider: g.Name(),
		Organic:  organic,
		Raw:      raw,
		Duration: page.Duration,
	}, nil
}

// ParseGoogleResults extracts organic entries from a results page: every
// anchor wrapping an h3 heading, in document order, skipping Google's own
// links. At most limit entries are returned.
func ParseGoogleResults(body []byte, limit int) ([]compare.RawResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse results page: %w", err)
	}

	var out []compare.RawResult
	seen := make(map[string]struct{})
	doc.Find("a:has(h3)").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		link := resolveGoogleLink(href)
		if link == "" {
			return true
		}
		if _, dup := seen[link]; dup {
			return true
		}
		seen[link] = struct{}{}

		out = append(out, compare.RawResult{
			"position": len(out) + 1,
			"title":    strings.TrimSpace(s.Find("h3").First().Text()),
			"link":     link,
		})
		return limit <= 0 || len(out) < limit
	})
	return out, nil
}

// resolveGoogleLink unwraps /url?q= redirects and drops links back into Google.
func resolveGoogleLink(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if u.Path == "/url" {
		target := u.Query().Get("q")
		if target == "" {
			target = u.Query().Get("url")
		}
		if u, err = url.Parse(target); err != nil {
			return ""
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "google.com" || strings.HasSuffix(host, ".google.com") {
		return ""
	}
	return u.String()
}
