// Package proxy rotates outgoing scrapes across a list of proxies, benching
// the ones that keep failing.
package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrUnknownProxy is returned when marking a proxy the pool does not hold.
var ErrUnknownProxy = errors.New("proxy: not in pool")

// supportedSchemes are the proxy schemes net/http can dial.
var supportedSchemes = map[string]bool{"http": true, "https": true, "socks5": true}

// entry is one proxy and its health.
type entry struct {
	url         *url.URL
	failures    int
	successes   int
	lastUsed    time.Time
	benchedTill time.Time
}

func (e *entry) benched(now time.Time) bool { return now.Before(e.benchedTill) }

// Stat is a read-only view of a proxy's health.
type Stat struct {
	URL       string // password redacted
	Failures  int
	Successes int
	Benched   bool
}

// Pool hands out proxies round-robin. It is safe for concurrent use.
type Pool struct {
	mu          sync.Mutex
	entries     []*entry
	byURL       map[string]*entry
	cursor      int
	maxFailures int
	cooldown    time.Duration
}

// Config defines settings for the Proxy Pool.
type Config struct {
	// MaxFailures in a row before a proxy is benched.
	MaxFailures int
	// Cooldown is how long a benched proxy sits out.
	Cooldown time.Duration
}

// NewPool creates an empty pool. Zero config values get defaults of 3
// failures and a 5 minute cooldown.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Pool{
		byURL:       make(map[string]*entry),
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
	}
}

// LoadFile reads proxies from a file, one URL per line. Blank lines and
// lines starting with '#' are skipped.
func (p *Pool) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open proxy list: %w", err)
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read proxy list: %w", err)
	}

	return p.Add(urls...)
}

// Add parses raw proxy URLs and appends them. A missing scheme means http.
// Duplicates are ignored. Nothing is added if any URL is invalid.
func (p *Pool) Add(rawURLs ...string) error {
	parsed := make([]*url.URL, 0, len(rawURLs))
	for _, raw := range rawURLs {
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse proxy %q: %w", raw, err)
		}
		if !supportedSchemes[u.Scheme] || u.Host == "" {
			return fmt.Errorf("unsupported proxy %q", raw)
		}
		parsed = append(parsed, u)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range parsed {
		key := u.String()
		if _, dup := p.byURL[key]; dup {
			continue
		}
		e := &entry{url: u}
		p.entries = append(p.entries, e)
		p.byURL[key] = e
	}
	return nil
}

// Len is the number of proxies in the pool, benched or not.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Next returns the next proxy that is not benched, or nil if the pool is
// empty or every proxy is cooling down.
func (p *Pool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for range p.entries {
		e := p.entries[p.cursor]
		p.cursor = (p.cursor + 1) % len(p.entries)

		if e.benched(now) {
			continue
		}
		if !e.benchedTill.IsZero() {
			// back from the bench with a clean slate
			e.benchedTill = time.Time{}
			e.failures = 0
		}
		e.lastUsed = now
		return e.url
	}
	return nil
}

// MarkSuccess records a successful request through proxyURL.
func (p *Pool) MarkSuccess(proxyURL *url.URL) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.lookup(proxyURL)
	if err != nil {
		return err
	}
	e.successes++
	e.failures = 0
	return nil
}

// MarkFailure records a failed request through proxyURL and benches the
// proxy once it reaches MaxFailures in a row.
func (p *Pool) MarkFailure(proxyURL *url.URL) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.lookup(proxyURL)
	if err != nil {
		return err
	}
	e.failures++
	if e.failures >= p.maxFailures {
		e.benchedTill = time.Now().Add(p.cooldown)
	}
	return nil
}

// Stats reports the health of every proxy in pool order.
func (p *Pool) Stats() []Stat {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	out := make([]Stat, len(p.entries))
	for i, e := range p.entries {
		out[i] = Stat{
			URL:       e.url.Redacted(),
			Failures:  e.failures,
			Successes: e.successes,
			Benched:   e.benched(now),
		}
	}
	return out
}

// lookup must be called with the lock held.
func (p *Pool) lookup(u *url.URL) (*entry, error) {
	if u == nil {
		return nil, errors.New("proxy: nil url")
	}
	e, ok := p.byURL[u.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProxy, u.Redacted())
	}
	return e, nil
}
