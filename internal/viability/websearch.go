package viability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	BraveSearchBaseURL        = "https://api.search.brave.com/res/v1/web/search"
	DefaultSearchResultCount  = 8
	DefaultRateLimitPerMinute = 50
)

// SearchResult is one structured web search hit. URL comes straight from the
// provider and is never reconstructed from free text.
type SearchResult struct {
	Title       string
	URL         string
	Description string
	Age         string
}

// WebSearcher returns structured results for a query. An empty slice is a
// valid, non-error outcome.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

type SearchConfig struct {
	APIKey             string
	BaseURL            string
	ResultCount        int
	RateLimitPerMinute int
	HTTPClient         *http.Client
}

type BraveSearcher struct {
	cfg       SearchConfig
	limiter   *time.Ticker
	limiterMu sync.Mutex
}

func NewBraveSearcher(cfg SearchConfig) (*BraveSearcher, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, &ConfigurationError{Missing: "BRAVE_SEARCH_API_KEY"}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = BraveSearchBaseURL
	}
	if cfg.ResultCount <= 0 {
		cfg.ResultCount = DefaultSearchResultCount
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = DefaultRateLimitPerMinute
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	interval := time.Minute / time.Duration(cfg.RateLimitPerMinute)
	return &BraveSearcher{cfg: cfg, limiter: time.NewTicker(interval)}, nil
}

// Close stops the rate-limit ticker. Safe to call more than once.
func (s *BraveSearcher) Close() {
	s.limiter.Stop()
}

func NewBraveSearcherFromEnv() (*BraveSearcher, error) {
	return NewBraveSearcher(SearchConfig{APIKey: os.Getenv("BRAVE_SEARCH_API_KEY")})
}

type braveWebResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Age         string `json:"age"`
}

type braveAPIResponse struct {
	Web struct {
		Results []braveWebResult `json:"results"`
	} `json:"web"`
}

func (s *BraveSearcher) Search(ctx context.Context, query string) ([]SearchResult, error) {
	if err := s.waitRateLimit(ctx); err != nil {
		return nil, err
	}
	resp, err := s.executeWithRetry(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]SearchResult, 0, len(resp.Web.Results))
	for _, r := range resp.Web.Results {
		out = append(out, SearchResult{
			Title:       strings.TrimSpace(r.Title),
			URL:         strings.TrimSpace(r.URL),
			Description: strings.TrimSpace(r.Description),
			Age:         strings.TrimSpace(r.Age),
		})
	}
	return out, nil
}

func (s *BraveSearcher) waitRateLimit(ctx context.Context) error {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.limiter.C:
		return nil
	}
}

func (s *BraveSearcher) executeWithRetry(ctx context.Context, query string) (braveAPIResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		resp, code, retryAfter, err := s.executeOnce(ctx, query)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if code == http.StatusUnauthorized || code == http.StatusForbidden {
			return braveAPIResponse{}, errors.New("brave search authentication failed, check BRAVE_SEARCH_API_KEY")
		}
		if code == http.StatusBadRequest {
			return braveAPIResponse{}, err
		}
		if attempt == 3 {
			break
		}
		sleep := retryAfter
		if sleep <= 0 {
			sleep = backoffDelay(attempt)
		}
		log.Printf("viability search retry attempt=%d status=%d err=%v", attempt, code, err)
		if err := sleepCtx(ctx, sleep); err != nil {
			return braveAPIResponse{}, err
		}
	}
	return braveAPIResponse{}, lastErr
}

func (s *BraveSearcher) executeOnce(ctx context.Context, query string) (braveAPIResponse, int, time.Duration, error) {
	u := s.cfg.BaseURL + "?q=" + url.QueryEscape(query) + "&count=" + strconv.Itoa(s.cfg.ResultCount)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return braveAPIResponse{}, 0, 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.cfg.APIKey)

	res, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return braveAPIResponse{}, 0, 0, err
	}
	defer res.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<20))

	retryAfter := parseRetryAfter(res.Header.Get("Retry-After"))
	if res.StatusCode >= 400 {
		return braveAPIResponse{}, res.StatusCode, retryAfter, fmt.Errorf("status code: %d", res.StatusCode)
	}

	var parsed braveAPIResponse
	if err := json.Unmarshal(b, &parsed); err != nil {
		return braveAPIResponse{}, res.StatusCode, retryAfter, err
	}
	return parsed, res.StatusCode, retryAfter, nil
}

func parseRetryAfter(v string) time.Duration {
	if strings.TrimSpace(v) == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err == nil {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// formatSearchDigest renders structured results as the free-text context fed
// to the extraction prompt.
func formatSearchDigest(query string, results []SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n\n", query)
	if len(results) == 0 {
		b.WriteString("No results found.\n")
		return b.String()
	}
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, title)
		if r.URL != "" {
			fmt.Fprintf(&b, "   %s\n", r.URL)
		}
		if r.Description != "" {
			fmt.Fprintf(&b, "   %s\n", r.Description)
		}
		if r.Age != "" {
			fmt.Fprintf(&b, "   published: %s\n", r.Age)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
