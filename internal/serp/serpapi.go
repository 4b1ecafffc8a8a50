package serp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/FranksOps/serpcmp/internal/compare"
	"github.com/FranksOps/serpcmp/pkg/httpclient"
	"github.com/FranksOps/serpcmp/pkg/ratelimit"
)

// DefaultSerpAPIBaseURL is the public SerpAPI endpoint.
const DefaultSerpAPIBaseURL = "https://serpapi.com"

// SerpAPIConfig configures the SerpAPI provider.
type SerpAPIConfig struct {
	BaseURL string
	Timeout time.Duration
	Limiter *ratelimit.Limiter
	// Client overrides the HTTP client, mostly for tests.
	Client *httpclient.Client
}

// SerpAPI queries Google through serpapi.com.
type SerpAPI struct {
	cfg    SerpAPIConfig
	client *httpclient.Client
}

var _ Provider = (*SerpAPI)(nil)

// NewSerpAPI creates a SerpAPI provider.
func NewSerpAPI(cfg SerpAPIConfig) (*SerpAPI, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSerpAPIBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid serpapi base url: %w", err)
	}
	client := cfg.Client
	if client == nil {
		var err error
		client, err = httpclient.New(httpclient.Config{Timeout: cfg.Timeout})
		if err != nil {
			return nil, fmt.Errorf("failed to create client: %w", err)
		}
	}
	return &SerpAPI{cfg: cfg, client: client}, nil
}

func (p *SerpAPI) Name() string { return ProviderSerpAPI }

func (p *SerpAPI) RequiresCredential() bool { return true }

// Search performs a google search through SerpAPI. A payload carrying an
// "error" field is reported as a *ProviderError with the payload attached.
func (p *SerpAPI) Search(ctx context.Context, req Request) (*Response, error) {
	if req.Credential == "" {
		return nil, ErrMissingCredential
	}
	if p.cfg.Limiter != nil {
		if err := p.cfg.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter failed: %w", err)
		}
	}

	searchURL, err := url.Parse(p.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid serpapi base url: %w", err)
	}
	searchURL = searchURL.JoinPath("search.json")

	q := searchURL.Query()
	q.Set("engine", "google")
	q.Set("q", req.Keyword)
	q.Set("num", strconv.Itoa(count(req)))
	if req.Language != "" {
		q.Set("hl", req.Language)
	}
	if req.Country != "" {
		q.Set("gl", req.Country)
	}
	if req.Device != "" {
		q.Set("device", string(req.Device))
	}
	q.Set("api_key", req.Credential)
	searchURL.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	res, err := p.client.Fetch(ctx, httpReq)
	if err != nil {
		// url.Error repeats the request URL, which carries the API key.
		msg := err.Error()
		var uerr *url.Error
		if errors.As(err, &uerr) {
			msg = uerr.Err.Error()
		}
		pe := &ProviderError{Provider: p.Name(), Keyword: req.Keyword, Message: msg}
		if res != nil {
			pe.StatusCode = res.StatusCode
		}
		return nil, pe
	}

	var payload map[string]any
	if err := json.Unmarshal(res.Body, &payload); err != nil {
		return nil, &ProviderError{Provider: p.Name(), Keyword: req.Keyword, StatusCode: res.StatusCode, Message: fmt.Sprintf("invalid JSON payload: %v", err)}
	}

	if msg, ok := payload["error"].(string); ok && msg != "" {
		return nil, &ProviderError{Provider: p.Name(), Keyword: req.Keyword, StatusCode: res.StatusCode, Message: msg, Raw: payload}
	}
	if res.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: p.Name(), Keyword: req.Keyword, StatusCode: res.StatusCode, Message: http.StatusText(res.StatusCode), Raw: payload}
	}

	return &Response{
		Provider: p.Name(),
		Organic:  organicResults(payload),
		Raw:      payload,
		Duration: res.Duration,
	}, nil
}

// organicResults picks the object entries out of organic_results, ignoring
// anything that is not a JSON object.
func organicResults(payload map[string]any) []compare.RawResult {
	list, ok := payload["organic_results"].([]any)
	if !ok {
		return nil
	}
	out := make([]compare.RawResult, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, compare.RawResult(m))
		}
	}
	return out
}
