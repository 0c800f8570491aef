package scoring

import (
	"log"
	"math"
	"os"
	"strconv"
	"strings"
)

// SourceWeights controls how much each research signal contributes to an
// insight score. The weights are configuration, not an invariant: they are
// not required to sum to 1 because the final score is clamped anyway.
type SourceWeights struct {
	Reddit         float64
	Competitors    float64
	IndustryTrends float64
}

type IntensityWeights struct {
	Low    float64
	Medium float64
	High   float64
}

type InsightConfig struct {
	TopInsightsForViability int
	MinInsights             int
	MaxInsights             int
	MinScoreThreshold       float64
}

type Config struct {
	SourceWeights    SourceWeights
	IntensityWeights IntensityWeights
	Insights         InsightConfig
}

func DefaultConfig() Config {
	return Config{
		SourceWeights:    SourceWeights{Reddit: 0.4, Competitors: 0.3, IndustryTrends: 0.3},
		IntensityWeights: IntensityWeights{Low: 0.3, Medium: 0.6, High: 1.0},
		Insights: InsightConfig{
			TopInsightsForViability: 3,
			MinInsights:             3,
			MaxInsights:             10,
			MinScoreThreshold:       0.3,
		},
	}
}

// LoadConfig returns the default configuration with any SCORING_* environment
// overrides applied. A weight set that does not sum to 1 is permitted but
// logged, since the clamp in ComputeInsightScore would otherwise hide it.
func LoadConfig() Config {
	cfg := DefaultConfig()
	cfg.SourceWeights.Reddit = envFloat("SCORING_WEIGHT_REDDIT", cfg.SourceWeights.Reddit)
	cfg.SourceWeights.Competitors = envFloat("SCORING_WEIGHT_COMPETITORS", cfg.SourceWeights.Competitors)
	cfg.SourceWeights.IndustryTrends = envFloat("SCORING_WEIGHT_INDUSTRY_TRENDS", cfg.SourceWeights.IndustryTrends)
	cfg.IntensityWeights.Low = envFloat("SCORING_INTENSITY_LOW", cfg.IntensityWeights.Low)
	cfg.IntensityWeights.Medium = envFloat("SCORING_INTENSITY_MEDIUM", cfg.IntensityWeights.Medium)
	cfg.IntensityWeights.High = envFloat("SCORING_INTENSITY_HIGH", cfg.IntensityWeights.High)
	cfg.Insights.TopInsightsForViability = envInt("SCORING_TOP_INSIGHTS", cfg.Insights.TopInsightsForViability)
	cfg.Insights.MinInsights = envInt("SCORING_MIN_INSIGHTS", cfg.Insights.MinInsights)
	cfg.Insights.MaxInsights = envInt("SCORING_MAX_INSIGHTS", cfg.Insights.MaxInsights)
	cfg.Insights.MinScoreThreshold = envFloat("SCORING_MIN_SCORE_THRESHOLD", cfg.Insights.MinScoreThreshold)

	sum := cfg.SourceWeights.Reddit + cfg.SourceWeights.Competitors + cfg.SourceWeights.IndustryTrends
	if math.Abs(sum-1.0) > 0.01 {
		log.Printf("scoring warning source_weights_sum=%.3f (expected ~1.0); insight scores will be clamped", sum)
	}
	return cfg
}

func envFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("scoring warning invalid %s=%q, keeping default %.3f", key, raw, def)
		return def
	}
	return v
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Printf("scoring warning invalid %s=%q, keeping default %d", key, raw, def)
		return def
	}
	return v
}
