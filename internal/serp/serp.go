// Package serp retrieves organic results for a query from a search provider.
// Providers hand back loosely shaped entries; turning them into records is the
// comparison engine's job.
package serp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FranksOps/serpcmp/internal/compare"
)

// ErrMissingCredential is returned by providers that need an API key when none was given.
var ErrMissingCredential = errors.New("serp: missing API credential")

// Request describes one search.
type Request struct {
	Keyword    string
	Language   string
	Country    string
	Device     compare.Device
	Count      int
	Credential string
}

// RequestFor builds the request for a query.
func RequestFor(q compare.Query, count int, credential string) Request {
	return Request{
		Keyword:    q.Keyword,
		Language:   q.Language,
		Country:    q.Country,
		Device:     q.Device,
		Count:      count,
		Credential: credential,
	}
}

// Response holds the organic entries and the full provider payload.
type Response struct {
	Provider string
	Organic  []compare.RawResult
	Raw      map[string]any
	Duration time.Duration
	Cached   bool
}

// Provider abstracts a search engine provider. Implementations may use an
// official API, scraping, or anything else returning organic entries.
type Provider interface {
	Name() string
	Search(ctx context.Context, req Request) (*Response, error)
}

// CredentialedProvider is implemented by providers that cannot search without a credential.
type CredentialedProvider interface {
	RequiresCredential() bool
}

// NeedsCredential reports whether p refuses to search without a credential.
func NeedsCredential(p Provider) bool {
	cp, ok := p.(CredentialedProvider)
	return ok && cp.RequiresCredential()
}

// ProviderError carries the provider's diagnostic for a failed search.
type ProviderError struct {
	Provider   string
	Keyword    string
	StatusCode int
	Message    string
	Raw        map[string]any
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s search for %q failed (status %d): %s", e.Provider, e.Keyword, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s search for %q failed: %s", e.Provider, e.Keyword, e.Message)
}

// Provider names accepted by New.
const (
	ProviderSerpAPI = "serpapi"
	ProviderGoogle  = "google"
)

// DefaultCount is used when a request asks for no results.
const DefaultCount = 10

func count(req Request) int {
	if req.Count <= 0 {
		return DefaultCount
	}
	return req.Count
}
