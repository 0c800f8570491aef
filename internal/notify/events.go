// Package notify is the outbound notification boundary. The pipeline emits
// one terminal event per analysis; delivery is best-effort and never blocks
// or fails the analysis itself.
package notify

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Event is the closed set of terminal notifications. Each variant carries
// exactly the fields its state has; there is no shared struct with optional
// fields to misread.
type Event interface {
	// Kind discriminates the variant for sinks that serialize events.
	Kind() string
	// Describe renders a one-line human summary.
	Describe() string
}

type AnalysisCompleted struct {
	RequestID   string
	Idea        string
	Score       float64
	Confidence  float64
	CompletedAt time.Time
}

func (e AnalysisCompleted) Kind() string { return "analysis_completed" }

func (e AnalysisCompleted) Describe() string {
	return fmt.Sprintf("analysis %s completed score=%.2f confidence=%.2f", e.RequestID, e.Score, e.Confidence)
}

type AnalysisDegraded struct {
	RequestID      string
	Idea           string
	Score          float64
	FailedSections []string
	CompletedAt    time.Time
}

func (e AnalysisDegraded) Kind() string { return "analysis_degraded" }

func (e AnalysisDegraded) Describe() string {
	return fmt.Sprintf("analysis %s degraded failed_sections=%v score=%.2f", e.RequestID, e.FailedSections, e.Score)
}

type AnalysisFailed struct {
	RequestID string
	Idea      string
	Reason    string
	FailedAt  time.Time
}

func (e AnalysisFailed) Kind() string { return "analysis_failed" }

func (e AnalysisFailed) Describe() string {
	return fmt.Sprintf("analysis %s failed reason=%q", e.RequestID, e.Reason)
}

// Notifier delivers one event. Implementations own their transport and
// retry behavior.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier is the reference sink: one log line per event.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, event Event) error {
	log.Printf("notify kind=%s %s", event.Kind(), event.Describe())
	return nil
}
