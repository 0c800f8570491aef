package viability

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"
)

const Disclaimer = "This is an automated preliminary viability assessment, not market research or investment advice. " +
	"Estimates are derived from limited public signals and generative analysis."

const (
	CapabilityViabilityAnalysis = "idea-viability-pipeline"
	DefaultLLMModel             = "claude-sonnet-4-5"
	MaxIdeaChars                = 4000
	MinIdeaChars                = 12
)

// SourceID identifies one research branch.
type SourceID string

const (
	SourceFeedback    SourceID = "feedback"
	SourceNews        SourceID = "news"
	SourceCompetitors SourceID = "competitors"
	SourceOKR         SourceID = "okr"
)

// AllSources is the dispatch order. The dispatcher launches one branch per
// entry; FusionStage expects a result for each.
var AllSources = []SourceID{SourceFeedback, SourceNews, SourceCompetitors, SourceOKR}

type BranchStatus string

const (
	BranchOK     BranchStatus = "ok"
	BranchFailed BranchStatus = "failed"
)

// RequestState is the dispatcher state machine. A request always ends in one
// of the three terminal states.
type RequestState string

const (
	StatePending           RequestState = "PENDING"
	StateDispatching       RequestState = "DISPATCHING"
	StateAwaitingBranches  RequestState = "AWAITING_BRANCHES"
	StateFusing            RequestState = "FUSING"
	StateCompleted         RequestState = "COMPLETED"
	StateDegradedCompleted RequestState = "DEGRADED_COMPLETED"
	StateFailed            RequestState = "FAILED"
)

// AnalysisRequest is created once per invocation and never mutated.
type AnalysisRequest struct {
	Idea        string    `json:"idea"`
	RequestedAt time.Time `json:"requested_at"`
}

// SourceResult is the settled outcome of one branch. Sources holds no
// duplicate URLs, first-seen order preserved. The dispatcher owns all
// in-flight SourceResults; no branch observes another branch's slot.
type SourceResult struct {
	Source   SourceID      `json:"source_id"`
	Status   BranchStatus  `json:"status"`
	Text     string        `json:"text"`
	Sources  []string      `json:"sources"`
	Analysis *IdeaAnalysis `json:"analysis,omitempty"`
	Err      string        `json:"error,omitempty"`
}

// StringList unmarshals from either a JSON array of strings or a bare JSON
// string. Generative output occasionally collapses a one-element list into a
// scalar; the scalar is coerced into a one-element list, never discarded.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*s = arr
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StringList{single}
		return nil
	}
	return fmt.Errorf("expected string or array of strings, got %s", clampString(string(data), 40))
}

// IdeaAnalysis is the typed output of one extraction call.
type IdeaAnalysis struct {
	Title     string     `json:"title"`
	Summary   string     `json:"summary"`
	Solutions StringList `json:"solutions"`
	Sources   StringList `json:"sources"`
}

// OKRAlignment maps the idea against one internal objective.
type OKRAlignment struct {
	Objective string `json:"objective"`
	Alignment string `json:"alignment"`
	Reasoning string `json:"reasoning"`
}

type AnalysisMetadata struct {
	Idea             string       `json:"idea"`
	GeneratedAt      time.Time    `json:"generated_at"`
	Model            string       `json:"model"`
	State            RequestState `json:"state"`
	DegradedSections []SourceID   `json:"degraded_sections,omitempty"`
	DurationMS       int64        `json:"duration_ms"`
}

// ComprehensiveAnalysis is the terminal artifact of FusionStage. Every
// section is always present; degraded branches surface as placeholder
// sections plus an entry in Metadata.DegradedSections, never as a silently
// missing field.
type ComprehensiveAnalysis struct {
	Metadata           AnalysisMetadata `json:"metadata"`
	CustomerFeedback   IdeaAnalysis     `json:"customer_feedback"`
	OKR                []OKRAlignment   `json:"okr"`
	IndustryNews       IdeaAnalysis     `json:"industry_news"`
	CompetitorInsights IdeaAnalysis     `json:"competitor_insights"`
}

// AnalysisResult is what RunAnalysis hands back to callers: the fused
// document plus the per-branch evidence that produced it.
type AnalysisResult struct {
	Request  AnalysisRequest       `json:"request"`
	State    RequestState          `json:"state"`
	Analysis ComprehensiveAnalysis `json:"analysis"`
	Branches []SourceResult        `json:"branches"`
}

func clampString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ClampIdea truncates an idea at MaxIdeaChars without splitting a multi-byte
// rune at the cap.
func ClampIdea(s string) string {
	if len(s) <= MaxIdeaChars {
		return s
	}
	cut := MaxIdeaChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
