// Package httpapi exposes the analysis pipeline over HTTP. Submissions are
// asynchronous: POST returns a request id immediately and the result is
// polled by id.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/stattenfield/ideascope/internal/notify"
	"github.com/stattenfield/ideascope/internal/reportstore"
	"github.com/stattenfield/ideascope/internal/scoring"
	"github.com/stattenfield/ideascope/internal/viability"
)

// Analyzer runs one idea through the pipeline. *viability.TaskDispatcher is
// the production implementation.
type Analyzer interface {
	RunAnalysis(ctx context.Context, idea string) (viability.AnalysisResult, error)
}

type Server struct {
	analyzer   Analyzer
	engine     *scoring.Engine
	store      reportstore.Store
	okrCache   *viability.DocCache
	notifier   notify.Notifier
	runTimeout time.Duration
}

type ServerConfig struct {
	Analyzer Analyzer
	Engine   *scoring.Engine
	Store    reportstore.Store
	OKRCache *viability.DocCache
	Notifier notify.Notifier
	// RunTimeout bounds one background analysis end to end.
	RunTimeout time.Duration
}

func NewServer(cfg ServerConfig) http.Handler {
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Minute
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.LogNotifier{}
	}
	s := &Server{
		analyzer:   cfg.Analyzer,
		engine:     cfg.Engine,
		store:      cfg.Store,
		okrCache:   cfg.OKRCache,
		notifier:   cfg.Notifier,
		runTimeout: cfg.RunTimeout,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/analyses", s.handleSubmit)
	mux.HandleFunc("/v1/analyses/", s.handleGet)
	mux.HandleFunc("/v1/admin/okr-cache/invalidate", s.handleInvalidateOKRCache)
	mux.HandleFunc("/v1/health", s.handleHealth)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": message})
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return []byte("{}"), nil
	}
	blob, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		blob = []byte("{}")
	}
	return blob, nil
}

func methodOnly(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	blob, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	var req struct {
		Idea string `json:"idea"`
	}
	if err := json.Unmarshal(blob, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	idea := strings.TrimSpace(req.Idea)
	if len(idea) < viability.MinIdeaChars {
		writeError(w, http.StatusUnprocessableEntity, "idea too short")
		return
	}
	idea = viability.ClampIdea(idea)

	requestID := reportstore.NewRequestID()
	rec := reportstore.Record{
		RequestID:   requestID,
		Idea:        idea,
		State:       viability.StatePending,
		RequestedAt: time.Now().UTC(),
	}
	if err := s.store.Put(r.Context(), rec); err != nil {
		writeError(w, http.StatusInternalServerError, "could not persist request")
		return
	}

	go s.runAnalysis(requestID, idea)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"ok":         true,
		"request_id": requestID,
		"state":      viability.StatePending,
	})
}

// runAnalysis executes one submission in the background and writes every
// terminal outcome through the store before notifying.
func (s *Server) runAnalysis(requestID, idea string) {
	runCtx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	result, err := s.analyzer.RunAnalysis(runCtx, idea)

	// The terminal write must land even when the run deadline expired; a
	// record stuck in PENDING would poll forever.
	ctx, putCancel := context.WithTimeout(context.WithoutCancel(runCtx), 10*time.Second)
	defer putCancel()

	rec := reportstore.Record{
		RequestID:   requestID,
		Idea:        idea,
		State:       result.State,
		RequestedAt: result.Request.RequestedAt,
	}
	if err != nil {
		rec.State = viability.StateFailed
		rec.Error = err.Error()
		if perr := s.store.Put(ctx, rec); perr != nil {
			log.Printf("httpapi store_put_failed request_id=%s err=%v", requestID, perr)
		}
		s.emit(ctx, notify.AnalysisFailed{RequestID: requestID, Idea: idea, Reason: err.Error(), FailedAt: time.Now().UTC()})
		return
	}

	env := viability.BuildResponse(result, s.engine)
	rec.Envelope = &env
	if perr := s.store.Put(ctx, rec); perr != nil {
		log.Printf("httpapi store_put_failed request_id=%s err=%v", requestID, perr)
	}

	switch result.State {
	case viability.StateDegradedCompleted:
		sections := make([]string, 0, len(result.Analysis.Metadata.DegradedSections))
		for _, src := range result.Analysis.Metadata.DegradedSections {
			sections = append(sections, string(src))
		}
		s.emit(ctx, notify.AnalysisDegraded{
			RequestID: requestID, Idea: idea,
			Score: env.Viability.Score, FailedSections: sections,
			CompletedAt: time.Now().UTC(),
		})
	default:
		s.emit(ctx, notify.AnalysisCompleted{
			RequestID: requestID, Idea: idea,
			Score: env.Viability.Score, Confidence: env.Viability.Confidence,
			CompletedAt: time.Now().UTC(),
		})
	}
}

func (s *Server) emit(ctx context.Context, event notify.Event) {
	if err := s.notifier.Notify(ctx, event); err != nil {
		log.Printf("httpapi notify_failed kind=%s err=%v", event.Kind(), err)
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	requestID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/analyses/"), "/")
	if requestID == "" || strings.Contains(requestID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	rec, err := s.store.Get(r.Context(), requestID)
	if errors.Is(err, reportstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store read failed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleInvalidateOKRCache(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	if s.okrCache == nil {
		writeError(w, http.StatusServiceUnavailable, "okr cache not configured")
		return
	}
	s.okrCache.Invalidate()
	log.Printf("httpapi okr_cache_invalidated")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "cached": s.okrCache.Cached()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"capability": viability.CapabilityViabilityAnalysis,
		"time":       time.Now().UTC().Format(time.RFC3339),
	})
}
