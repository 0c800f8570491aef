package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/stattenfield/ideascope/internal/renderer"
	"github.com/stattenfield/ideascope/internal/viability"
)

func main() {
	inputPath := flag.String("input", "", "Path to saved viability response envelope JSON")
	outputPath := flag.String("output", "", "Path to write the rendered PDF")
	stylePath := flag.String("style", "", "Optional path to a stylesheet overriding the built-in one")
	flag.Parse()

	if *inputPath == "" {
		log.Fatal("missing required -input")
	}
	if *outputPath == "" {
		log.Fatal("missing required -output")
	}

	in, err := os.ReadFile(*inputPath)
	if err != nil {
		log.Fatalf("read input: %v", err)
	}

	var env viability.ResponseEnvelope
	if err := json.Unmarshal(in, &env); err != nil {
		log.Fatalf("decode input JSON: %v", err)
	}

	r := renderer.NewChromiumPDFRenderer(*stylePath)
	pdf, err := r.Render(context.Background(), env)
	if err != nil {
		log.Fatalf("render pdf: %v", err)
	}
	if err := os.WriteFile(*outputPath, pdf, 0o644); err != nil {
		log.Fatalf("write pdf: %v", err)
	}
	log.Printf("wrote %d bytes to %s", len(pdf), *outputPath)
}
