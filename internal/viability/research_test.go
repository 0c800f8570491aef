package viability

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
)

type fakeSearcher struct {
	mu      sync.Mutex
	respond func(ctx context.Context, query string) ([]SearchResult, error)
	queries []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]SearchResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	return f.respond(ctx, query)
}

func (f *fakeSearcher) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// hits builds structured results carrying only URLs.
func hits(urls ...string) []SearchResult {
	out := make([]SearchResult, 0, len(urls))
	for _, u := range urls {
		out = append(out, SearchResult{Title: "t", URL: u, Description: "d"})
	}
	return out
}

func okExtractionCaller() *fakeCaller {
	return &fakeCaller{respond: func(string) (string, error) {
		return `{"title":"t","summary":"s","solutions":["a","b","c"],"sources":[]}`, nil
	}}
}

func TestHarvestURLs(t *testing.T) {
	text := "See [docs](https://docs.example/page) and https://a.example/x. " +
		"Also https://a.example/x, plus (https://b.example/y) and https://docs.example/page"
	got := harvestURLs(text, 10)
	want := []string{"https://docs.example/page", "https://a.example/x", "https://b.example/y"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("harvestURLs = %v, want %v", got, want)
	}
}

func TestHarvestURLsCap(t *testing.T) {
	text := "https://a.example/1 https://a.example/2 https://a.example/3"
	if got := harvestURLs(text, 2); len(got) != 2 {
		t.Fatalf("expected cap respected, got %v", got)
	}
}

func TestHarvestSourcesStructuredPassFirst(t *testing.T) {
	results := []SearchResult{
		{URL: "https://en.example/wiki/Foo_(bar)", Description: "see also https://b.example/y."},
		{URL: "https://a.example/x", Description: "duplicate of https://a.example/x"},
	}
	got := harvestSources(results, 10)
	want := []string{"https://en.example/wiki/Foo_(bar)", "https://a.example/x", "https://b.example/y"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("harvestSources = %v, want %v", got, want)
	}
}

func TestHarvestSourcesKeepsStructuredURLVerbatim(t *testing.T) {
	// Characters that terminate the free-text pattern must survive when the
	// URL arrives through the structured field.
	u := `https://example.com/q?x="a"&y=[1]`
	got := harvestSources([]SearchResult{{URL: u}}, 10)
	if len(got) != 1 || got[0] != u {
		t.Fatalf("structured URL mangled: %v", got)
	}
}

func TestHarvestSourcesCap(t *testing.T) {
	got := harvestSources(hits("https://a.example/1", "https://a.example/2", "https://a.example/3"), 2)
	if len(got) != 2 {
		t.Fatalf("expected cap respected, got %v", got)
	}
}

func TestRunWebSkipsSupplementaryWhenPrimaryRich(t *testing.T) {
	searcher := &fakeSearcher{respond: func(context.Context, string) ([]SearchResult, error) {
		return hits("https://a.example/1", "https://a.example/2", "https://a.example/3"), nil
	}}
	stage := NewResearchStage(searcher, NewExtractionStage(okExtractionCaller()), nil)
	out := stage.Run(context.Background(), SourceFeedback, "meal planner")
	if out.Status != BranchOK {
		t.Fatalf("unexpected status: %s err=%s", out.Status, out.Err)
	}
	if len(searcher.queries) != 1 {
		t.Fatalf("rich primary should skip supplementary query, got %d calls", len(searcher.queries))
	}
	if len(out.Sources) != 3 {
		t.Fatalf("unexpected sources: %v", out.Sources)
	}
	if out.Analysis == nil {
		t.Fatal("expected analysis attached")
	}
	if !strings.Contains(out.Text, "https://a.example/1") {
		t.Fatalf("digest text should carry result URLs: %q", out.Text)
	}
}

func TestRunWebSupplementsThinPrimary(t *testing.T) {
	searcher := &fakeSearcher{respond: func(_ context.Context, query string) ([]SearchResult, error) {
		if strings.Contains(query, "reddit") {
			return hits("https://r.example/1", "https://r.example/2"), nil
		}
		return hits("https://a.example/only"), nil
	}}
	stage := NewResearchStage(searcher, NewExtractionStage(okExtractionCaller()), nil)
	out := stage.Run(context.Background(), SourceFeedback, "meal planner")
	if len(searcher.queries) != 2 {
		t.Fatalf("thin primary should trigger supplementary query, got %d calls", len(searcher.queries))
	}
	if len(out.Sources) != 3 {
		t.Fatalf("expected union of both passes, got %v", out.Sources)
	}
}

func TestRunWebPartialSearchFailureStillOK(t *testing.T) {
	searcher := &fakeSearcher{respond: func(_ context.Context, query string) ([]SearchResult, error) {
		if strings.Contains(query, "reddit") {
			return nil, errors.New("rate limited")
		}
		return []SearchResult{{Title: "thin", Description: "no links"}}, nil
	}}
	stage := NewResearchStage(searcher, NewExtractionStage(okExtractionCaller()), nil)
	out := stage.Run(context.Background(), SourceFeedback, "meal planner")
	if out.Status != BranchOK {
		t.Fatalf("one surviving search should keep the branch ok, got %s", out.Status)
	}
}

func TestRunWebAllSearchesFailed(t *testing.T) {
	searcher := &fakeSearcher{respond: func(context.Context, string) ([]SearchResult, error) {
		return nil, errors.New("network down")
	}}
	stage := NewResearchStage(searcher, NewExtractionStage(okExtractionCaller()), nil)
	out := stage.Run(context.Background(), SourceNews, "meal planner")
	if out.Status != BranchFailed {
		t.Fatalf("expected failed branch, got %s", out.Status)
	}
	if !strings.Contains(out.Err, "network down") {
		t.Fatalf("expected underlying cause in error, got %q", out.Err)
	}
}

func TestRunOKRUsesCache(t *testing.T) {
	loads := 0
	cache := NewDocCache(func(context.Context) (string, error) {
		loads++
		return "O1: grow self-serve revenue", nil
	})
	stage := NewResearchStage(nil, NewExtractionStage(okExtractionCaller()), cache)
	for i := 0; i < 3; i++ {
		out := stage.Run(context.Background(), SourceOKR, "meal planner")
		if out.Status != BranchOK {
			t.Fatalf("run %d: unexpected status %s", i, out.Status)
		}
	}
	if loads != 1 {
		t.Fatalf("expected single lazy load, got %d", loads)
	}
}

func TestRunOKRLoadFailure(t *testing.T) {
	cache := NewDocCache(func(context.Context) (string, error) {
		return "", errors.New("document store offline")
	})
	stage := NewResearchStage(nil, NewExtractionStage(okExtractionCaller()), cache)
	out := stage.Run(context.Background(), SourceOKR, "meal planner")
	if out.Status != BranchFailed {
		t.Fatalf("expected failed branch, got %s", out.Status)
	}
}
