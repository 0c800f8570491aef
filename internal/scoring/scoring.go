package scoring

// The scoring engine is pure arithmetic over explicit inputs. Nothing here
// performs I/O or retains state between calls, so an Engine is safe to share
// across goroutines without locks.

type Intensity string

const (
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

type TrendStance string

const (
	StanceSupportive TrendStance = "supportive"
	StanceNeutral    TrendStance = "neutral"
	StanceRisky      TrendStance = "risky"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type ComponentScores struct {
	Reddit     float64 `json:"reddit_component"`
	Competitor float64 `json:"competitor_component"`
	Trend      float64 `json:"trend_component"`
}

type InsightMetrics struct {
	MentionsTotal            int `json:"mentions_total"`
	NumCompetitorsAddressing int `json:"num_competitors_addressing"`
}

type Insight struct {
	ID        string         `json:"id"`
	Score     float64        `json:"score"`
	RiskLevel RiskLevel      `json:"risk_level"`
	Metrics   InsightMetrics `json:"metrics"`
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine { return &Engine{cfg: cfg} }

func (e *Engine) Config() Config { return e.cfg }

// NormalizeCount maps a raw count onto [0,1] relative to maxCount. A zero
// maxCount yields 0 rather than dividing by zero.
func NormalizeCount(count, maxCount int) float64 {
	if maxCount == 0 {
		return 0
	}
	v := float64(count) / float64(maxCount)
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

// MapIntensity is a table lookup, no interpolation. Unknown intensities map
// to the medium weight.
func (e *Engine) MapIntensity(in Intensity) float64 {
	switch in {
	case IntensityLow:
		return e.cfg.IntensityWeights.Low
	case IntensityMedium:
		return e.cfg.IntensityWeights.Medium
	case IntensityHigh:
		return e.cfg.IntensityWeights.High
	default:
		return e.cfg.IntensityWeights.Medium
	}
}

func (e *Engine) ComputeRedditComponent(mentions, maxMentions int, intensity Intensity) float64 {
	return NormalizeCount(mentions, maxMentions) * e.MapIntensity(intensity)
}

func ComputeCompetitorComponent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	v := float64(n) / float64(total)
	if v > 1 {
		return 1
	}
	return v
}

// ComputeTrendComponent never errors: an unrecognized stance is treated as
// neutral rather than biasing the score toward risky.
func ComputeTrendComponent(stance TrendStance) float64 {
	switch stance {
	case StanceSupportive:
		return 1.0
	case StanceRisky:
		return 0.0
	default:
		return 0.5
	}
}

func ComputeAverageTrendComponent(stances []TrendStance) float64 {
	if len(stances) == 0 {
		return 0.5
	}
	sum := 0.0
	for _, s := range stances {
		sum += ComputeTrendComponent(s)
	}
	return sum / float64(len(stances))
}

// ComputeInsightScore applies the configured source weights and clamps to
// [0,1]. Weights are configuration, not validated here; misconfigured weights
// that sum past 1 cannot push the score out of range.
func (e *Engine) ComputeInsightScore(c ComponentScores) float64 {
	w := e.cfg.SourceWeights
	v := w.Reddit*c.Reddit + w.Competitors*c.Competitor + w.IndustryTrends*c.Trend
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

// NormalizeSourceContributions divides each component by the sum of all
// three. When the sum is exactly zero it returns the fixed fallback
// {0.33, 0.33, 0.34}, asymmetric so the three values sum to exactly 1.00.
func NormalizeSourceContributions(c ComponentScores) ComponentScores {
	sum := c.Reddit + c.Competitor + c.Trend
	if sum == 0 {
		return ComponentScores{Reddit: 0.33, Competitor: 0.33, Trend: 0.34}
	}
	return ComponentScores{
		Reddit:     c.Reddit / sum,
		Competitor: c.Competitor / sum,
		Trend:      c.Trend / sum,
	}
}

// FindMaxMentions returns the maximum of the sequence, or 1 when the sequence
// is empty so downstream normalization never divides by zero.
func FindMaxMentions(counts []int) int {
	if len(counts) == 0 {
		return 1
	}
	max := counts[0]
	for _, c := range counts[1:] {
		if c > max {
			max = c
		}
	}
	return max
}
