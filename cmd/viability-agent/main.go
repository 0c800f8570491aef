package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/stattenfield/ideascope/internal/scoring"
	"github.com/stattenfield/ideascope/internal/viability"
)

func main() {
	idea := flag.String("idea", "", "Product idea to assess")
	okrPath := flag.String("okr", "", "Path to the internal objectives markdown document")
	branchTimeout := flag.Duration("branch-timeout", viability.DefaultBranchTimeout, "Per-branch research timeout")
	fusionTimeout := flag.Duration("fusion-timeout", viability.DefaultFusionTimeout, "Fusion call timeout")
	jsonOutputPath := flag.String("json-output", "", "Optional path to write the full response envelope JSON")
	flag.Parse()

	if strings.TrimSpace(*idea) == "" {
		log.Fatal("missing required -idea")
	}
	if strings.TrimSpace(*okrPath) == "" {
		log.Fatal("missing required -okr")
	}

	caller, err := viability.NewAnthropicCallerFromEnv()
	if err != nil {
		log.Fatal(err)
	}
	searcher, err := viability.NewBraveSearcherFromEnv()
	if err != nil {
		log.Fatal(err)
	}
	defer searcher.Close()

	extract := viability.NewExtractionStage(caller)
	okrDocs := viability.NewDocCache(viability.FileDocLoader(*okrPath))
	research := viability.NewResearchStage(searcher, extract, okrDocs)
	fusion := viability.NewFusionStage(caller)
	dispatcher := viability.NewTaskDispatcher(viability.DispatcherConfig{
		BranchTimeout: *branchTimeout,
		FusionTimeout: *fusionTimeout,
	}, research, fusion, caller.ModelName())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	log.Printf("viability-agent analyzing idea (%d chars)", len(*idea))
	result, err := dispatcher.RunAnalysis(ctx, *idea)
	if err != nil {
		log.Fatalf("analysis failed: %v", err)
	}

	env := viability.BuildResponse(result, scoring.NewEngine(scoring.LoadConfig()))
	fmt.Print(env.ReportMarkdown)

	if *jsonOutputPath != "" {
		blob, err := json.MarshalIndent(env, "", "  ")
		if err != nil {
			log.Fatalf("encode envelope: %v", err)
		}
		if err := os.WriteFile(*jsonOutputPath, blob, 0o644); err != nil {
			log.Fatalf("write json output: %v", err)
		}
	}
	log.Printf("viability-agent done state=%s elapsed=%s", result.State, time.Since(start).Round(time.Millisecond))
}
