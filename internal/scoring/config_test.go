package scoring

import "testing"

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("SCORING_WEIGHT_REDDIT", "0.5")
	t.Setenv("SCORING_TOP_INSIGHTS", "5")
	cfg := LoadConfig()
	if cfg.SourceWeights.Reddit != 0.5 {
		t.Fatalf("reddit weight override ignored: %v", cfg.SourceWeights.Reddit)
	}
	if cfg.Insights.TopInsightsForViability != 5 {
		t.Fatalf("top insights override ignored: %v", cfg.Insights.TopInsightsForViability)
	}
}

func TestLoadConfigRejectsNonPositiveInts(t *testing.T) {
	t.Setenv("SCORING_TOP_INSIGHTS", "0")
	t.Setenv("SCORING_MAX_INSIGHTS", "-2")
	cfg := LoadConfig()
	def := DefaultConfig()
	if cfg.Insights.TopInsightsForViability != def.Insights.TopInsightsForViability {
		t.Fatalf("zero top insights must fall back to default, got %d", cfg.Insights.TopInsightsForViability)
	}
	if cfg.Insights.MaxInsights != def.Insights.MaxInsights {
		t.Fatalf("negative max insights must fall back to default, got %d", cfg.Insights.MaxInsights)
	}
}

func TestLoadConfigIgnoresGarbage(t *testing.T) {
	t.Setenv("SCORING_WEIGHT_REDDIT", "lots")
	cfg := LoadConfig()
	if cfg.SourceWeights.Reddit != DefaultConfig().SourceWeights.Reddit {
		t.Fatalf("unparseable weight must fall back to default, got %v", cfg.SourceWeights.Reddit)
	}
}
