package viability

import (
	"fmt"
	"strings"
	"time"

	"github.com/stattenfield/ideascope/internal/scoring"
)

// ResponseEnvelope is the caller-facing bundle: the fused analysis, the
// derived insight scores, the overall viability verdict, and a rendered
// markdown report.
type ResponseEnvelope struct {
	Idea           string                    `json:"idea"`
	State          RequestState              `json:"state"`
	Analysis       ComprehensiveAnalysis     `json:"analysis"`
	Branches       []SourceResult            `json:"branches"`
	Insights       []scoring.Insight         `json:"insights"`
	Viability      scoring.OverallViability  `json:"overall_viability"`
	Contributions  []scoring.ComponentScores `json:"source_contributions"`
	ReportMarkdown string                    `json:"report_markdown"`
	Disclaimer     string                    `json:"disclaimer"`
}

// BuildResponse scores the analysis and renders the report. Scoring is pure
// arithmetic over the derived insights; the engine never sees raw LLM output.
func BuildResponse(result AnalysisResult, eng *scoring.Engine) ResponseEnvelope {
	insights, contributions := DeriveInsights(result, eng)
	insights = eng.LimitInsights(insights)
	viability := eng.ComputeOverallViability(insights)

	env := ResponseEnvelope{
		Idea:          result.Request.Idea,
		State:         result.State,
		Analysis:      result.Analysis,
		Branches:      result.Branches,
		Insights:      insights,
		Viability:     viability,
		Contributions: contributions,
		Disclaimer:    Disclaimer,
	}
	env.ReportMarkdown = buildMarkdown(env)
	return env
}

type insightCandidate struct {
	id       string
	solution string
	terms    []string
}

// DeriveInsights turns the fused sections into scoreable Insight records.
// Every signal is a term-occurrence count over the branch research text, so
// the same AnalysisResult always derives the same insights.
func DeriveInsights(result AnalysisResult, eng *scoring.Engine) ([]scoring.Insight, []scoring.ComponentScores) {
	candidates := collectCandidates(result.Analysis)
	if len(candidates) == 0 {
		return nil, nil
	}

	feedbackText := strings.ToLower(branchText(result.Branches, SourceFeedback))
	newsText := strings.ToLower(branchText(result.Branches, SourceNews))
	competitorText := strings.ToLower(branchText(result.Branches, SourceCompetitors))
	totalCompetitors := len(branchSources(result.Branches, SourceCompetitors))

	mentions := make([]int, len(candidates))
	for i, c := range candidates {
		mentions[i] = countTermHits(feedbackText, c.terms)
	}
	maxMentions := scoring.FindMaxMentions(mentions)

	insights := make([]scoring.Insight, 0, len(candidates))
	contributions := make([]scoring.ComponentScores, 0, len(candidates))
	for i, c := range candidates {
		addressing := countTermHits(competitorText, c.terms)
		if addressing > totalCompetitors {
			addressing = totalCompetitors
		}
		components := scoring.ComponentScores{
			Reddit:     eng.ComputeRedditComponent(mentions[i], maxMentions, mentionIntensity(mentions[i])),
			Competitor: scoring.ComputeCompetitorComponent(addressing, totalCompetitors),
			Trend:      scoring.ComputeTrendComponent(newsStance(newsText, c.terms)),
		}
		insights = append(insights, scoring.Insight{
			ID:        c.id,
			Score:     eng.ComputeInsightScore(components),
			RiskLevel: competitionRisk(addressing, totalCompetitors),
			Metrics: scoring.InsightMetrics{
				MentionsTotal:            mentions[i],
				NumCompetitorsAddressing: addressing,
			},
		})
		contributions = append(contributions, scoring.NormalizeSourceContributions(components))
	}
	return insights, contributions
}

func collectCandidates(a ComprehensiveAnalysis) []insightCandidate {
	var out []insightCandidate
	add := func(prefix string, solutions StringList) {
		for i, sol := range solutions {
			terms := significantTerms(sol, 3)
			if len(terms) == 0 {
				continue
			}
			out = append(out, insightCandidate{
				id:       fmt.Sprintf("%s-%d", prefix, i+1),
				solution: sol,
				terms:    terms,
			})
		}
	}
	add("feedback", a.CustomerFeedback.Solutions)
	add("news", a.IndustryNews.Solutions)
	add("competitors", a.CompetitorInsights.Solutions)
	return out
}

var insightStopwords = map[string]struct{}{
	"with": {}, "that": {}, "this": {}, "from": {}, "into": {}, "over": {},
	"their": {}, "your": {}, "more": {}, "than": {}, "them": {}, "have": {},
	"will": {}, "when": {}, "where": {}, "before": {}, "after": {}, "about": {},
	"build": {}, "offer": {}, "provide": {}, "create": {}, "launch": {},
}

// significantTerms picks up to max lowercase content words from a solution
// string. Short words and generic verbs are skipped.
func significantTerms(s string, max int) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,;:!?()[]\"'")
		if len(w) < 4 {
			continue
		}
		if _, stop := insightStopwords[w]; stop {
			continue
		}
		out = append(out, w)
		if len(out) == max {
			break
		}
	}
	return out
}

func countTermHits(text string, terms []string) int {
	total := 0
	for _, t := range terms {
		total += strings.Count(text, t)
	}
	return total
}

func mentionIntensity(mentions int) scoring.Intensity {
	switch {
	case mentions >= 8:
		return scoring.IntensityHigh
	case mentions >= 3:
		return scoring.IntensityMedium
	default:
		return scoring.IntensityLow
	}
}

func newsStance(newsText string, terms []string) scoring.TrendStance {
	if countTermHits(newsText, terms) >= 2 {
		return scoring.StanceSupportive
	}
	return scoring.StanceNeutral
}

func competitionRisk(addressing, total int) scoring.RiskLevel {
	if total == 0 || addressing == 0 {
		return scoring.RiskLow
	}
	if float64(addressing)/float64(total) >= 0.67 {
		return scoring.RiskHigh
	}
	return scoring.RiskMedium
}

func branchText(branches []SourceResult, source SourceID) string {
	for _, br := range branches {
		if br.Source == source {
			return br.Text
		}
	}
	return ""
}

func branchSources(branches []SourceResult, source SourceID) []string {
	for _, br := range branches {
		if br.Source == source {
			return br.Sources
		}
	}
	return nil
}

func buildMarkdown(env ResponseEnvelope) string {
	var b strings.Builder
	meta := env.Analysis.Metadata

	fmt.Fprintf(&b, "# Idea Viability Report\n\n")
	fmt.Fprintf(&b, "- Idea: %s\n", sanitize(clampString(env.Idea, 200)))
	fmt.Fprintf(&b, "- Generated: %s\n", meta.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Model: %s\n", meta.Model)
	fmt.Fprintf(&b, "- State: %s\n\n", env.State)
	fmt.Fprintf(&b, "%s\n\n", Disclaimer)

	if len(meta.DegradedSections) > 0 {
		names := make([]string, 0, len(meta.DegradedSections))
		for _, s := range meta.DegradedSections {
			names = append(names, string(s))
		}
		fmt.Fprintf(&b, "> DEGRADED: the %s branch(es) failed. Sections below may carry placeholder analysis pending a re-run.\n\n", strings.Join(names, ", "))
	}

	fmt.Fprintf(&b, "## Overall Viability\n\n")
	fmt.Fprintf(&b, "- Score: %.2f\n", env.Viability.Score)
	fmt.Fprintf(&b, "- Confidence: %.2f\n", env.Viability.Confidence)
	fmt.Fprintf(&b, "- Notes: %s\n\n", sanitize(env.Viability.Notes))

	if len(env.Insights) > 0 {
		fmt.Fprintf(&b, "## Scored Insights\n\n")
		fmt.Fprintf(&b, "| ID | Score | Risk | Mentions | Competitors Addressing |\n")
		fmt.Fprintf(&b, "|----|-------|------|----------|------------------------|\n")
		for _, in := range env.Insights {
			fmt.Fprintf(&b, "| %s | %.2f | %s | %d | %d |\n",
				in.ID, in.Score, in.RiskLevel, in.Metrics.MentionsTotal, in.Metrics.NumCompetitorsAddressing)
		}
		b.WriteString("\n")
	}

	writeSection(&b, "Customer Feedback", env.Analysis.CustomerFeedback)
	writeSection(&b, "Industry News", env.Analysis.IndustryNews)
	writeSection(&b, "Competitor Insights", env.Analysis.CompetitorInsights)

	fmt.Fprintf(&b, "## Objective Alignment\n\n")
	if len(env.Analysis.OKR) == 0 {
		fmt.Fprintf(&b, "No alignment data available.\n\n")
	} else {
		fmt.Fprintf(&b, "| Objective | Alignment | Reasoning |\n")
		fmt.Fprintf(&b, "|-----------|-----------|----------|\n")
		for _, al := range env.Analysis.OKR {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", sanitize(al.Objective), sanitize(al.Alignment), sanitize(al.Reasoning))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "---\n\nGenerated in %d ms.\n", meta.DurationMS)
	return b.String()
}

func writeSection(b *strings.Builder, title string, a IdeaAnalysis) {
	fmt.Fprintf(b, "## %s\n\n", title)
	fmt.Fprintf(b, "**%s**\n\n", sanitize(a.Title))
	fmt.Fprintf(b, "%s\n\n", sanitize(a.Summary))
	if len(a.Solutions) > 0 {
		fmt.Fprintf(b, "Solution directions:\n\n")
		for _, sol := range a.Solutions {
			fmt.Fprintf(b, "- %s\n", sanitize(sol))
		}
		b.WriteString("\n")
	}
	if len(a.Sources) > 0 {
		fmt.Fprintf(b, "Sources:\n\n")
		for _, src := range a.Sources {
			fmt.Fprintf(b, "- %s\n", src)
		}
		b.WriteString("\n")
	}
}

// sanitize keeps report text from breaking markdown table rows.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
