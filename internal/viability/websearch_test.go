package viability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewBraveSearcherRequiresKey(t *testing.T) {
	_, err := NewBraveSearcher(SearchConfig{})
	if !IsConfigurationError(err) {
		t.Fatalf("expected ConfigurationError without an API key, got %v", err)
	}
}

func TestBraveSearcherCloseIsIdempotent(t *testing.T) {
	s, err := NewBraveSearcher(SearchConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewBraveSearcher: %v", err)
	}
	s.Close()
	s.Close()
}

func TestBraveSearchMapsStructuredResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Subscription-Token"); got != "test-key" {
			t.Errorf("missing subscription token, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"web":{"results":[
			{"title":" Foo (bar) ","url":" https://en.example/wiki/Foo_(bar) ","description":" about foo ","age":"2 days ago"},
			{"title":"Second","url":"https://b.example/y","description":""}
		]}}`))
	}))
	defer srv.Close()

	s, err := NewBraveSearcher(SearchConfig{APIKey: "test-key", BaseURL: srv.URL, RateLimitPerMinute: 6000})
	if err != nil {
		t.Fatalf("NewBraveSearcher: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	results, err := s.Search(ctx, "foo bar")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	first := results[0]
	if first.URL != "https://en.example/wiki/Foo_(bar)" {
		t.Fatalf("URL must arrive verbatim from the provider field, got %q", first.URL)
	}
	if first.Title != "Foo (bar)" || first.Description != "about foo" || first.Age != "2 days ago" {
		t.Fatalf("unexpected mapped fields: %+v", first)
	}
}

func TestBraveSearchAuthFailureIsNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s, err := NewBraveSearcher(SearchConfig{APIKey: "bad-key", BaseURL: srv.URL, RateLimitPerMinute: 6000})
	if err != nil {
		t.Fatalf("NewBraveSearcher: %v", err)
	}
	defer s.Close()

	_, err = s.Search(context.Background(), "foo")
	if err == nil || !strings.Contains(err.Error(), "authentication failed") {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("auth failure should not retry, got %d calls", calls)
	}
}

func TestFormatSearchDigest(t *testing.T) {
	got := formatSearchDigest("meal planner", []SearchResult{
		{Title: "Plans", URL: "https://a.example/1", Description: "weekly plans", Age: "1 week ago"},
		{URL: "https://b.example/2"},
	})
	for _, want := range []string{
		`Search results for "meal planner":`,
		"1. Plans",
		"https://a.example/1",
		"published: 1 week ago",
		"2. (untitled)",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("digest missing %q:\n%s", want, got)
		}
	}
}

func TestFormatSearchDigestEmpty(t *testing.T) {
	got := formatSearchDigest("meal planner", nil)
	if !strings.Contains(got, "No results found.") {
		t.Fatalf("empty digest should say so, got %q", got)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("3"); got != 3*time.Second {
		t.Fatalf("parseRetryAfter(3) = %s", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Fatalf("parseRetryAfter(empty) = %s", got)
	}
	if got := parseRetryAfter("Wed, 21 Oct 2026 07:28:00 GMT"); got != 0 {
		t.Fatalf("unparseable value should fall back to zero, got %s", got)
	}
}
