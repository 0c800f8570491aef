package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/stattenfield/ideascope/internal/httpapi"
	"github.com/stattenfield/ideascope/internal/notify"
	"github.com/stattenfield/ideascope/internal/reportstore"
	"github.com/stattenfield/ideascope/internal/scoring"
	"github.com/stattenfield/ideascope/internal/telemetry"
	"github.com/stattenfield/ideascope/internal/viability"
)

func main() {
	dbFlag := flag.String("db", "", "path to SQLite database file (overrides DB_PATH env var)")
	okrFlag := flag.String("okr", "", "path to internal objectives markdown (overrides OKR_DOC_PATH env var)")
	flag.Parse()

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}

	ctx := context.Background()
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.ConfigFromEnv("viability-server"))
	if err != nil {
		log.Fatalf("telemetry setup: %v", err)
	}
	defer func() {
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	dbPath := *dbFlag
	if dbPath == "" {
		dbPath = os.Getenv("DB_PATH")
	}
	if dbPath == "" {
		dbPath = "./data/analyses.db"
	}
	store, err := reportstore.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatalf("failed to initialize sqlite store (%s): %v", dbPath, err)
	}
	defer store.Close()
	log.Printf("using sqlite store at %s", dbPath)

	okrPath := *okrFlag
	if okrPath == "" {
		okrPath = strings.TrimSpace(os.Getenv("OKR_DOC_PATH"))
	}
	if okrPath == "" {
		log.Fatal("missing required -okr flag or OKR_DOC_PATH env var")
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

	okrCache := viability.NewDocCache(viability.FileDocLoader(okrPath))
	research := viability.NewResearchStage(searcher, viability.NewExtractionStage(caller), okrCache)
	dispatcher := viability.NewTaskDispatcher(viability.DispatcherConfig{}, research, viability.NewFusionStage(caller), caller.ModelName())

	h := httpapi.NewServer(httpapi.ServerConfig{
		Analyzer: dispatcher,
		Engine:   scoring.NewEngine(scoring.LoadConfig()),
		Store:    store,
		OKRCache: okrCache,
		Notifier: &notify.RetryingNotifier{Next: &notify.LogNotifier{}, Policy: notify.DefaultRetryPolicy()},
	})
	log.Printf("viability-server listening on %s", addr)
	if err := http.ListenAndServe(addr, h); err != nil {
		log.Fatal(err)
	}
}
