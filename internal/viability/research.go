package viability

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
)

var (
	markdownLinkRe = regexp.MustCompile(`\[[^\]]*\]\((https?://[^)\s]+)\)`)
	bareURLRe      = regexp.MustCompile(`https?://[^\s)\]}>"']+`)
)

const (
	maxSourcesPerBranch = 10
	minUsableSources    = 3
)

// ResearchStage gathers raw material for one branch and distills it. A web
// branch issues at most two search calls with distinct query framings; the
// objective-alignment branch reads the cached document instead of searching.
type ResearchStage struct {
	searcher WebSearcher
	extract  *ExtractionStage
	okrDocs  *DocCache
}

func NewResearchStage(searcher WebSearcher, extract *ExtractionStage, okrDocs *DocCache) *ResearchStage {
	return &ResearchStage{searcher: searcher, extract: extract, okrDocs: okrDocs}
}

// Run produces the SourceResult for one branch. A non-nil Err with Status
// BranchFailed means the branch degraded; the result is still well formed.
func (s *ResearchStage) Run(ctx context.Context, source SourceID, idea string) SourceResult {
	if source == SourceOKR {
		return s.runOKR(ctx, idea)
	}
	return s.runWeb(ctx, source, idea)
}

func (s *ResearchStage) runWeb(ctx context.Context, source SourceID, idea string) SourceResult {
	queries := branchQueries(source, idea)
	var parts []string
	var results []SearchResult
	var failures []error

	primary, err := s.searcher.Search(ctx, queries[0])
	if err != nil {
		failures = append(failures, err)
		log.Printf("viability search_failed source=%s query=%q err=%v", source, queries[0], err)
	} else {
		parts = append(parts, formatSearchDigest(queries[0], primary))
		results = append(results, primary...)
	}

	// The supplementary query runs only when the primary pass came back thin.
	if len(queries) > 1 && len(harvestSources(primary, maxSourcesPerBranch)) < minUsableSources {
		supp, err := s.searcher.Search(ctx, queries[1])
		if err != nil {
			failures = append(failures, err)
			log.Printf("viability search_failed source=%s query=%q err=%v", source, queries[1], err)
		} else {
			parts = append(parts, formatSearchDigest(queries[1], supp))
			results = append(results, supp...)
		}
	}

	if len(parts) == 0 {
		rerr := &RetrievalError{Source: source, Err: fmt.Errorf("all searches failed: %w", failures[len(failures)-1])}
		return SourceResult{Source: source, Status: BranchFailed, Err: rerr.Error()}
	}

	combined := strings.Join(parts, "\n\n")
	urls := harvestSources(results, maxSourcesPerBranch)
	analysis, _ := s.extract.Extract(ctx, source, idea, combined, urls)
	return SourceResult{
		Source:   source,
		Status:   BranchOK,
		Text:     combined,
		Sources:  urls,
		Analysis: &analysis,
	}
}

func (s *ResearchStage) runOKR(ctx context.Context, idea string) SourceResult {
	doc, err := s.okrDocs.Load(ctx)
	if err != nil {
		rerr := &RetrievalError{Source: SourceOKR, Err: err}
		return SourceResult{Source: SourceOKR, Status: BranchFailed, Err: rerr.Error()}
	}
	analysis, _ := s.extract.Extract(ctx, SourceOKR, idea, doc, nil)
	return SourceResult{
		Source:   SourceOKR,
		Status:   BranchOK,
		Text:     doc,
		Analysis: &analysis,
	}
}

// branchQueries returns the search framings for a web branch, most specific
// first. At most two per branch.
func branchQueries(source SourceID, idea string) []string {
	idea = clampString(strings.TrimSpace(idea), 300)
	switch source {
	case SourceFeedback:
		return []string{
			fmt.Sprintf("customer complaints reviews %q", idea),
			fmt.Sprintf("reddit user feedback pain points %s", idea),
		}
	case SourceNews:
		return []string{
			fmt.Sprintf("industry news trends 2026 %s", idea),
			fmt.Sprintf("market outlook analysis %s", idea),
		}
	case SourceCompetitors:
		return []string{
			fmt.Sprintf("competitors alternatives to %s", idea),
			fmt.Sprintf("existing products companies %q", idea),
		}
	default:
		return []string{idea}
	}
}

// harvestSources unions two passes over the search results: the structured
// URL field of each result first, then URL-shaped substrings scanned out of
// the free-text snippets. First occurrence wins. The structured pass keeps a
// URL byte for byte; only the free-text pass needs pattern boundaries.
func harvestSources(results []SearchResult, max int) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, max)

	add := func(u string) {
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		if len(out) < max {
			out = append(out, u)
		}
	}

	for _, r := range results {
		add(strings.TrimSpace(r.URL))
	}
	for _, r := range results {
		for _, u := range harvestURLs(r.Title+" "+r.Description, max) {
			add(u)
		}
	}
	return out
}

// harvestURLs pulls citation URLs out of free text. Markdown-style links are
// taken first, then bare URLs, first occurrence wins. Trailing sentence
// punctuation is stripped before dedup.
func harvestURLs(text string, max int) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, max)

	add := func(raw string) {
		u := strings.TrimRight(raw, ".,;:!?")
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		if len(out) < max {
			out = append(out, u)
		}
	}

	for _, m := range markdownLinkRe.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range bareURLRe.FindAllString(text, -1) {
		add(m)
	}
	return out
}
