package viability

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultBranchTimeout = 90 * time.Second
	DefaultFusionTimeout = 120 * time.Second
)

var tracer = otel.Tracer("ideascope/viability")

// ProgressFn receives state transitions as they happen. Optional.
type ProgressFn func(state RequestState, message string)

type DispatcherConfig struct {
	BranchTimeout time.Duration
	FusionTimeout time.Duration
}

// TaskDispatcher fans an analysis request out across the four research
// branches, waits for every branch to settle, then runs one fusion pass.
// Each branch gets its own timeout-bounded context and writes only its own
// result slot; the dispatcher alone reads the slots after the barrier.
type TaskDispatcher struct {
	cfg      DispatcherConfig
	research *ResearchStage
	fusion   *FusionStage
	model    string
}

func NewTaskDispatcher(cfg DispatcherConfig, research *ResearchStage, fusion *FusionStage, model string) *TaskDispatcher {
	if cfg.BranchTimeout <= 0 {
		cfg.BranchTimeout = DefaultBranchTimeout
	}
	if cfg.FusionTimeout <= 0 {
		cfg.FusionTimeout = DefaultFusionTimeout
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultLLMModel
	}
	return &TaskDispatcher{cfg: cfg, research: research, fusion: fusion, model: model}
}

// RunAnalysis is the plain entry point: one idea in, one settled result out.
func (d *TaskDispatcher) RunAnalysis(ctx context.Context, idea string) (AnalysisResult, error) {
	return d.Run(ctx, AnalysisRequest{Idea: idea, RequestedAt: time.Now().UTC()}, nil)
}

// Run executes the full state machine for one request. It returns an error
// only for invalid input, missing wiring, or fusion failure; any number of
// failed branches degrades the run but still produces a document.
func (d *TaskDispatcher) Run(ctx context.Context, req AnalysisRequest, progress ProgressFn) (AnalysisResult, error) {
	started := time.Now()
	res := AnalysisResult{Request: req, State: StatePending}

	if d.research == nil || d.fusion == nil {
		res.State = StateFailed
		return res, &ConfigurationError{Missing: "research and fusion stages must be wired before dispatch"}
	}

	idea := strings.TrimSpace(req.Idea)
	if len(idea) < MinIdeaChars {
		res.State = StateFailed
		return res, fmt.Errorf("idea text too short, need at least %d characters", MinIdeaChars)
	}
	idea = ClampIdea(idea)

	ctx, span := tracer.Start(ctx, "viability.analysis",
		trace.WithAttributes(attribute.Int("idea_chars", len(idea))))
	defer span.End()

	d.transition(&res, StateDispatching, progress, "launching research branches")

	slots := make([]SourceResult, len(AllSources))
	var wg sync.WaitGroup
	for i, source := range AllSources {
		wg.Add(1)
		go func(i int, source SourceID) {
			defer wg.Done()
			slots[i] = d.runBranch(ctx, source, idea)
		}(i, source)
	}

	d.transition(&res, StateAwaitingBranches, progress, "waiting for branch barrier")
	wg.Wait()
	res.Branches = slots

	// Fusion always runs, even when every branch failed: the fused document
	// then carries four unavailability sections and the run settles degraded.
	failed := degradedSources(slots)
	d.transition(&res, StateFusing, progress, "fusing branch results")
	fuseCtx, cancel := context.WithTimeout(ctx, d.cfg.FusionTimeout)
	sections, fuseErr := d.fusion.Fuse(fuseCtx, idea, slots)
	cancel()
	if fuseErr != nil {
		log.Printf("viability fusion_failed err=%v", fuseErr)
		res.State = StateFailed
		span.SetAttributes(attribute.String("state", string(StateFailed)))
		return res, fuseErr
	}

	final := StateCompleted
	if len(failed) > 0 {
		final = StateDegradedCompleted
	}

	res.Analysis = ComprehensiveAnalysis{
		Metadata: AnalysisMetadata{
			Idea:             idea,
			GeneratedAt:      time.Now().UTC(),
			Model:            d.model,
			State:            final,
			DegradedSections: failed,
			DurationMS:       time.Since(started).Milliseconds(),
		},
		CustomerFeedback:   sections.CustomerFeedback,
		OKR:                sections.OKR,
		IndustryNews:       sections.IndustryNews,
		CompetitorInsights: sections.CompetitorInsights,
	}
	d.transition(&res, final, progress, "analysis settled")
	span.SetAttributes(
		attribute.String("state", string(final)),
		attribute.Int("degraded_branches", len(failed)),
	)
	return res, nil
}

// runBranch never panics the run and never blocks past the branch timeout.
// A timed-out branch settles as failed with a timeout marker.
func (d *TaskDispatcher) runBranch(ctx context.Context, source SourceID, idea string) SourceResult {
	bctx, cancel := context.WithTimeout(ctx, d.cfg.BranchTimeout)
	defer cancel()
	bctx, span := tracer.Start(bctx, "viability.branch",
		trace.WithAttributes(attribute.String("source", string(source))))
	defer span.End()

	out := d.research.Run(bctx, source, idea)
	if bctx.Err() == context.DeadlineExceeded && out.Status != BranchOK {
		out = SourceResult{
			Source: source,
			Status: BranchFailed,
			Err:    fmt.Sprintf("failed: timeout after %s", d.cfg.BranchTimeout),
		}
	}
	span.SetAttributes(attribute.String("status", string(out.Status)))
	if out.Status != BranchOK {
		log.Printf("viability branch_failed source=%s err=%q", source, out.Err)
	}
	return out
}

func (d *TaskDispatcher) transition(res *AnalysisResult, next RequestState, progress ProgressFn, message string) {
	res.State = next
	log.Printf("viability state=%s %s", next, message)
	if progress != nil {
		progress(next, message)
	}
}

func degradedSources(slots []SourceResult) []SourceID {
	var out []SourceID
	for _, s := range slots {
		if s.Status != BranchOK {
			out = append(out, s.Source)
		}
	}
	return out
}
