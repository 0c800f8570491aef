package scoring

import (
	"fmt"
	"sort"
)

const (
	highRiskPenalty   = 0.15
	mediumRiskPenalty = 0.05
)

// OverallViability is the terminal artifact of the scoring engine. It is
// never mutated after creation.
type OverallViability struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Notes      string  `json:"notes"`
}

// ComputeOverallViability aggregates a set of insights into a single score,
// confidence, and human-readable note. The score is the mean of the top-N
// insight scores minus a risk penalty counted only within that slice.
// Confidence is a tiered heuristic over evidence volume across all insights.
func (e *Engine) ComputeOverallViability(insights []Insight) OverallViability {
	if len(insights) == 0 {
		return OverallViability{Score: 0, Confidence: 0, Notes: "No insights available to assess viability."}
	}

	sorted := sortByScoreDesc(insights)
	topN := e.cfg.Insights.TopInsightsForViability
	if topN < 1 {
		topN = 1
	}
	if topN > len(sorted) {
		topN = len(sorted)
	}
	top := sorted[:topN]

	base := 0.0
	highRisk := 0
	mediumRisk := 0
	for _, in := range top {
		base += in.Score
		switch in.RiskLevel {
		case RiskHigh:
			highRisk++
		case RiskMedium:
			mediumRisk++
		}
	}
	base /= float64(topN)

	penalty := float64(highRisk)*highRiskPenalty + float64(mediumRisk)*mediumRiskPenalty
	score := clamp01(base - penalty)

	return OverallViability{
		Score:      score,
		Confidence: e.computeConfidence(insights),
		Notes:      viabilityNotes(score, highRisk, mediumRisk, topN),
	}
}

func (e *Engine) computeConfidence(insights []Insight) float64 {
	conf := 0.5

	totalMentions := 0
	totalCompetitors := 0
	for _, in := range insights {
		totalMentions += in.Metrics.MentionsTotal
		totalCompetitors += in.Metrics.NumCompetitorsAddressing
	}
	meanMentions := float64(totalMentions) / float64(len(insights))
	meanCompetitors := float64(totalCompetitors) / float64(len(insights))

	switch {
	case meanMentions > 20:
		conf += 0.15
	case meanMentions > 10:
		conf += 0.10
	case meanMentions > 5:
		conf += 0.05
	}
	switch {
	case meanCompetitors > 3:
		conf += 0.15
	case meanCompetitors > 1:
		conf += 0.10
	case meanCompetitors > 0:
		conf += 0.05
	}
	switch {
	case len(insights) >= e.cfg.Insights.MaxInsights:
		conf += 0.10
	case len(insights) >= e.cfg.Insights.MinInsights:
		conf += 0.05
	}
	return clamp01(conf)
}

func viabilityNotes(score float64, highRisk, mediumRisk, topN int) string {
	level := "low"
	switch {
	case score > 0.7:
		level = "high"
	case score > 0.4:
		level = "moderate"
	}

	risk := "No elevated risk among the top insights."
	if highRisk > 0 {
		risk = fmt.Sprintf("%d of the top %d insights carry high risk.", highRisk, topN)
	} else if mediumRisk > 0 {
		risk = fmt.Sprintf("%d of the top %d insights carry medium risk.", mediumRisk, topN)
	}
	return fmt.Sprintf("Overall viability is %s. %s", level, risk)
}

// FilterInsightsByThreshold keeps only insights at or above the configured
// minimum score.
func (e *Engine) FilterInsightsByThreshold(insights []Insight) []Insight {
	out := make([]Insight, 0, len(insights))
	for _, in := range insights {
		if in.Score >= e.cfg.Insights.MinScoreThreshold {
			out = append(out, in)
		}
	}
	return out
}

// LimitInsights returns the input unchanged when it fits the configured
// maximum; otherwise the top-scoring insights, ties broken by original
// position.
func (e *Engine) LimitInsights(insights []Insight) []Insight {
	if len(insights) <= e.cfg.Insights.MaxInsights {
		return insights
	}
	return sortByScoreDesc(insights)[:e.cfg.Insights.MaxInsights]
}

// sortByScoreDesc copies then sorts. The stable sort makes tie-break order
// deterministic: equal scores keep their original relative position.
func sortByScoreDesc(insights []Insight) []Insight {
	out := make([]Insight, len(insights))
	copy(out, insights)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
