package viability

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExtractValidOutput(t *testing.T) {
	caller := &fakeCaller{respond: func(string) (string, error) {
		return `{"title":"AI meal planner","summary":"Strong demand signals.","solutions":["weekly plans","pantry tracking","macro goals"],"sources":["https://a.example"]}`, nil
	}}
	stage := NewExtractionStage(caller)
	out, err := stage.Extract(context.Background(), SourceFeedback, "meal planning app", "notes", []string{"https://b.example"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if out.Title != "AI meal planner" || len(out.Solutions) != 3 {
		t.Fatalf("unexpected analysis: %+v", out)
	}
	if out.Sources[0] != "https://a.example" {
		t.Fatalf("model sources should win when present: %v", out.Sources)
	}
}

func TestExtractScalarSolutionsCoerced(t *testing.T) {
	caller := &fakeCaller{respond: func(string) (string, error) {
		return `{"title":"t","summary":"s","solutions":"single direction","sources":[]}`, nil
	}}
	stage := NewExtractionStage(caller)
	out, err := stage.Extract(context.Background(), SourceNews, "idea", "notes", []string{"https://n.example"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(out.Solutions) != 1 || out.Solutions[0] != "single direction" {
		t.Fatalf("expected coerced one-element list, got %v", out.Solutions)
	}
	if len(out.Sources) != 1 || out.Sources[0] != "https://n.example" {
		t.Fatalf("expected branch sources backfilled, got %v", out.Sources)
	}
}

func TestExtractCapsSolutionsAtFive(t *testing.T) {
	caller := &fakeCaller{respond: func(string) (string, error) {
		return `{"title":"t","summary":"s","solutions":["1","2","3","4","5","6","7"],"sources":[]}`, nil
	}}
	stage := NewExtractionStage(caller)
	out, err := stage.Extract(context.Background(), SourceCompetitors, "idea", "notes", nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(out.Solutions) != 5 {
		t.Fatalf("expected cap at 5, got %d", len(out.Solutions))
	}
}

func TestExtractFailureYieldsFallback(t *testing.T) {
	caller := &fakeCaller{respond: func(string) (string, error) {
		return "", errors.New("transport down")
	}}
	stage := NewExtractionStage(caller)
	out, err := stage.Extract(context.Background(), SourceFeedback, "a meal planning app for climbers", "notes", []string{"https://kept.example"})
	var gerr *GenerationError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GenerationError alongside fallback, got %v", err)
	}
	if out.Title == "" || len(out.Solutions) != 3 {
		t.Fatalf("fallback not well formed: %+v", out)
	}
	if !strings.Contains(out.Summary, "unavailable") {
		t.Fatalf("fallback summary should state unavailability: %q", out.Summary)
	}
	if len(out.Sources) != 1 || out.Sources[0] != "https://kept.example" {
		t.Fatalf("fallback should keep collected sources: %v", out.Sources)
	}
	if caller.callCount() != 1 {
		t.Fatalf("stage must call the capability exactly once, got %d", caller.callCount())
	}
}

func TestExtractEmptySolutionsRejected(t *testing.T) {
	caller := &fakeCaller{respond: func(string) (string, error) {
		return `{"title":"t","summary":"s","solutions":["", "  "],"sources":[]}`, nil
	}}
	stage := NewExtractionStage(caller)
	_, err := stage.Extract(context.Background(), SourceNews, "idea", "notes", nil)
	if err == nil {
		t.Fatal("expected validation failure for all-blank solutions")
	}
}
