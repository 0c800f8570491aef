package viability

import (
	"context"
	"fmt"
	"strings"
)

const fusionSchemaPrompt = `Required JSON schema:
{
  "customer_feedback": {"title": "string", "summary": "string", "solutions": ["string"], "sources": ["string"]},
  "okr": [{"objective": "string", "alignment": "strong|partial|weak|none", "reasoning": "string"}],
  "industry_news": {"title": "string", "summary": "string", "solutions": ["string"], "sources": ["string"]},
  "competitor_insights": {"title": "string", "summary": "string", "solutions": ["string"], "sources": ["string"]}
}`

type FusedSections struct {
	CustomerFeedback   IdeaAnalysis   `json:"customer_feedback"`
	OKR                []OKRAlignment `json:"okr"`
	IndustryNews       IdeaAnalysis   `json:"industry_news"`
	CompetitorInsights IdeaAnalysis   `json:"competitor_insights"`
}

// FusionStage merges the four settled branch results into one coherent
// document with a single generation call. It never refuses partial input;
// failed branches enter the prompt as explicit unavailability markers so the
// fused document accounts for the gap.
type FusionStage struct {
	caller LLMCaller
}

func NewFusionStage(caller LLMCaller) *FusionStage {
	return &FusionStage{caller: caller}
}

// Fuse returns the fused sections. Any failure is a *FusionError. There is
// no fallback document here: losing fusion means losing the terminal
// artifact, and the dispatcher fails the request rather than mislabel a
// best-effort assembly as complete.
func (f *FusionStage) Fuse(ctx context.Context, idea string, branches []SourceResult) (FusedSections, error) {
	var out FusedSections
	prompt := buildFusionPrompt(idea, branches)
	err := extractJSON(ctx, f.caller, "fusion", prompt, &out, func() error {
		return validateFused(&out)
	})
	if err != nil {
		return FusedSections{}, &FusionError{Err: err}
	}
	return out, nil
}

func buildFusionPrompt(idea string, branches []SourceResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Synthesize a product idea viability report from the section analyses below.\n\nIdea: %s\n\n%s\n\n", idea, fusionSchemaPrompt)
	b.WriteString("Rules:\n")
	b.WriteString("- Use only the material provided, do not invent research.\n")
	b.WriteString("- For an unavailable section, state the unavailability in that section's summary and suggest how to close the gap.\n")
	b.WriteString("- Cite source URLs from the section material in each section's sources list.\n\n")

	for _, br := range branches {
		label := sectionLabel(br.Source)
		fmt.Fprintf(&b, "## %s\n", label)
		if br.Status != BranchOK || br.Analysis == nil {
			fmt.Fprintf(&b, "%s analysis unavailable.\n\n", label)
			continue
		}
		fmt.Fprintf(&b, "Title: %s\nSummary: %s\n", br.Analysis.Title, br.Analysis.Summary)
		if len(br.Analysis.Solutions) > 0 {
			fmt.Fprintf(&b, "Solutions:\n%s\n", bulleted(br.Analysis.Solutions))
		}
		if len(br.Sources) > 0 {
			fmt.Fprintf(&b, "Sources:\n%s\n", bulleted(br.Sources))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func validateFused(out *FusedSections) error {
	for _, check := range []struct {
		name string
		a    *IdeaAnalysis
	}{
		{"customer_feedback", &out.CustomerFeedback},
		{"industry_news", &out.IndustryNews},
		{"competitor_insights", &out.CompetitorInsights},
	} {
		if err := validateIdeaAnalysis(check.a); err != nil {
			return fmt.Errorf("%s: %w", check.name, err)
		}
	}
	if len(out.OKR) == 0 {
		return fmt.Errorf("okr must have at least one alignment entry")
	}
	for i, al := range out.OKR {
		if strings.TrimSpace(al.Objective) == "" {
			return fmt.Errorf("okr[%d]: objective required", i)
		}
	}
	return nil
}
