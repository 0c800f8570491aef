package viability

import (
	"context"
	"fmt"
	"log"
	"strings"
)

const ideaAnalysisSchemaPrompt = `Required JSON schema:
{
  "title": "string (short, 10-120 chars)",
  "summary": "string (one paragraph grounded in the research text)",
  "solutions": ["string (3-5 concrete solution directions, most promising first)"],
  "sources": ["string (URLs supporting the summary, subset of the provided sources)"]
}`

// ExtractionStage coerces unreliable generative output into an IdeaAnalysis.
// It issues exactly one generation call per invocation; transport retries are
// the capability's concern.
type ExtractionStage struct {
	caller LLMCaller
}

func NewExtractionStage(caller LLMCaller) *ExtractionStage {
	return &ExtractionStage{caller: caller}
}

// Extract returns a validated IdeaAnalysis for the given research context.
// The returned analysis is always usable: on any failure (transport error,
// malformed JSON, non-conforming shape) it is the deterministic fallback
// built from the query and the already-collected sources, and the error is
// returned alongside for logging only. Callers never need an error path.
func (s *ExtractionStage) Extract(ctx context.Context, source SourceID, query, text string, sources []string) (IdeaAnalysis, error) {
	out := IdeaAnalysis{}
	prompt := fmt.Sprintf(
		"Analyze the research notes below for the %s perspective on this product idea.\n\nIdea: %s\n\n%s\n\nKnown sources:\n%s\n\nResearch notes:\n%s",
		sectionLabel(source),
		query,
		ideaAnalysisSchemaPrompt,
		bulleted(sources),
		text,
	)
	err := extractJSON(ctx, s.caller, "extract_"+string(source), prompt, &out, func() error {
		return validateIdeaAnalysis(&out)
	})
	if err != nil {
		log.Printf("viability extraction_fallback source=%s err=%q", source, err.Error())
		return FallbackIdeaAnalysis(source, query, sources), err
	}
	if len(out.Sources) == 0 {
		out.Sources = StringList(sources)
	}
	return out, nil
}

// validateIdeaAnalysis normalizes in place. A solutions list that arrived as
// a bare string has already been coerced by StringList; here we require at
// least one non-empty entry and cap the list at five.
func validateIdeaAnalysis(a *IdeaAnalysis) error {
	a.Title = strings.TrimSpace(a.Title)
	a.Summary = strings.TrimSpace(a.Summary)
	if a.Title == "" {
		return fmt.Errorf("title required")
	}
	if a.Summary == "" {
		return fmt.Errorf("summary required")
	}
	kept := make(StringList, 0, len(a.Solutions))
	for _, sol := range a.Solutions {
		sol = strings.TrimSpace(sol)
		if sol == "" {
			continue
		}
		kept = append(kept, sol)
		if len(kept) == 5 {
			break
		}
	}
	if len(kept) == 0 {
		return fmt.Errorf("solutions must have at least one entry")
	}
	a.Solutions = kept
	return nil
}

// FallbackIdeaAnalysis is the deterministic degraded object for a section.
// It echoes the best available partial information instead of propagating
// the failure.
func FallbackIdeaAnalysis(source SourceID, query string, sources []string) IdeaAnalysis {
	return IdeaAnalysis{
		Title:   clampString(strings.TrimSpace(query), 120),
		Summary: fmt.Sprintf("%s analysis unavailable. Raw research could not be distilled for this section.", sectionLabel(source)),
		Solutions: StringList{
			"Gather additional primary research for this section",
			"Re-run the analysis once the upstream capability recovers",
			"Validate findings manually before acting on this report",
		},
		Sources: StringList(sources),
	}
}

func sectionLabel(source SourceID) string {
	switch source {
	case SourceFeedback:
		return "customer feedback"
	case SourceNews:
		return "industry news"
	case SourceCompetitors:
		return "competitor landscape"
	case SourceOKR:
		return "objective alignment"
	default:
		return string(source)
	}
}

func bulleted(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
