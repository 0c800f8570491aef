package scoring

import (
	"math"
	"strings"
	"testing"
)

func insight(id string, score float64, risk RiskLevel) Insight {
	return Insight{ID: id, Score: score, RiskLevel: risk}
}

func TestComputeOverallViabilityEmpty(t *testing.T) {
	e := NewEngine(DefaultConfig())
	got := e.ComputeOverallViability(nil)
	if got.Score != 0 || got.Confidence != 0 {
		t.Fatalf("expected zero score and confidence, got %+v", got)
	}
	if !strings.HasPrefix(got.Notes, "No insights available") {
		t.Fatalf("unexpected notes %q", got.Notes)
	}
}

func TestComputeOverallViabilityTopNWithRiskPenalty(t *testing.T) {
	e := NewEngine(DefaultConfig())
	insights := []Insight{
		insight("a", 0.9, RiskLow),
		insight("b", 0.8, RiskHigh),
		insight("c", 0.7, RiskLow),
		insight("d", 0.3, RiskHigh),
		insight("e", 0.1, RiskMedium),
	}
	got := e.ComputeOverallViability(insights)
	// base = (0.9+0.8+0.7)/3 = 0.8, one high-risk in top 3 => penalty 0.15
	if !almostEqual(got.Score, 0.65) {
		t.Fatalf("expected final score 0.65, got %v", got.Score)
	}
	if !strings.Contains(got.Notes, "high risk") {
		t.Fatalf("notes should mention high risk, got %q", got.Notes)
	}
}

func TestComputeOverallViabilityZeroTopNStaysFinite(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Insights.TopInsightsForViability = 0
	e := NewEngine(cfg)
	got := e.ComputeOverallViability([]Insight{insight("a", 0.8, RiskLow)})
	if math.IsNaN(got.Score) || math.IsNaN(got.Confidence) {
		t.Fatalf("score must stay finite with a zero top-N config, got %+v", got)
	}
	if !almostEqual(got.Score, 0.8) {
		t.Fatalf("zero top-N should behave as top-1, got %v", got.Score)
	}
}

func TestComputeOverallViabilityHighRiskTakesPriorityInNotes(t *testing.T) {
	e := NewEngine(DefaultConfig())
	insights := []Insight{
		insight("a", 0.9, RiskHigh),
		insight("b", 0.8, RiskMedium),
		insight("c", 0.7, RiskMedium),
	}
	got := e.ComputeOverallViability(insights)
	if !strings.Contains(got.Notes, "high risk") || strings.Contains(got.Notes, "medium risk") {
		t.Fatalf("high-risk count should take priority in notes, got %q", got.Notes)
	}
}

func TestComputeOverallViabilityConfidenceTiers(t *testing.T) {
	e := NewEngine(DefaultConfig())

	// Sparse evidence: 1 insight, no mentions, no competitors.
	got := e.ComputeOverallViability([]Insight{insight("a", 0.5, RiskLow)})
	if !almostEqual(got.Confidence, 0.5) {
		t.Fatalf("baseline confidence should be 0.5, got %v", got.Confidence)
	}

	// Rich evidence: mean mentions > 20, mean competitors > 3, count >= max.
	many := make([]Insight, 10)
	for i := range many {
		many[i] = Insight{ID: "x", Score: 0.6, RiskLevel: RiskLow, Metrics: InsightMetrics{MentionsTotal: 25, NumCompetitorsAddressing: 4}}
	}
	got = e.ComputeOverallViability(many)
	if !almostEqual(got.Confidence, 0.9) {
		t.Fatalf("expected 0.5+0.15+0.15+0.10 = 0.9, got %v", got.Confidence)
	}
}

func TestComputeOverallViabilityConfidenceClamp(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Insights.MaxInsights = 1
	e := NewEngine(cfg)
	got := e.ComputeOverallViability([]Insight{
		{ID: "a", Score: 0.9, RiskLevel: RiskLow, Metrics: InsightMetrics{MentionsTotal: 100, NumCompetitorsAddressing: 10}},
	})
	if got.Confidence > 1 {
		t.Fatalf("confidence must be clamped to 1, got %v", got.Confidence)
	}
}

func TestFilterInsightsByThreshold(t *testing.T) {
	e := NewEngine(DefaultConfig())
	got := e.FilterInsightsByThreshold([]Insight{
		insight("keep", 0.3, RiskLow),
		insight("drop", 0.29, RiskLow),
		insight("keep2", 0.9, RiskLow),
	})
	if len(got) != 2 || got[0].ID != "keep" || got[1].ID != "keep2" {
		t.Fatalf("unexpected filter output %+v", got)
	}
}

func TestLimitInsights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Insights.MaxInsights = 3
	e := NewEngine(cfg)

	short := []Insight{insight("a", 0.1, RiskLow)}
	if got := e.LimitInsights(short); len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("short list should be returned unchanged, got %+v", got)
	}

	long := []Insight{
		insight("a", 0.2, RiskLow),
		insight("b", 0.9, RiskLow),
		insight("c", 0.5, RiskLow),
		insight("d", 0.8, RiskLow),
		insight("e", 0.1, RiskLow),
	}
	got := e.LimitInsights(long)
	if len(got) != 3 {
		t.Fatalf("expected 3 insights, got %d", len(got))
	}
	lowest := got[len(got)-1].Score
	for _, excluded := range []string{"a", "e"} {
		for _, in := range long {
			if in.ID == excluded && in.Score > lowest {
				t.Fatalf("excluded %s outscores kept insight", excluded)
			}
		}
	}
}

func TestLimitInsightsStableTieBreak(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Insights.MaxInsights = 2
	e := NewEngine(cfg)
	got := e.LimitInsights([]Insight{
		insight("first", 0.5, RiskLow),
		insight("second", 0.5, RiskLow),
		insight("third", 0.5, RiskLow),
	})
	if got[0].ID != "first" || got[1].ID != "second" {
		t.Fatalf("ties must keep original order, got %+v", got)
	}
}
