// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the research engine over HTTP: a health probe, a
// synchronous research endpoint, an SSE streaming endpoint, and per-session
// cancellation.
// Implements: prd007-http-service (R1-R5);
//
//	docs/ARCHITECTURE § HTTP Service.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pdiddy/deep-researcher/internal/orchestrator"
	"github.com/pdiddy/deep-researcher/pkg/types"
)

// eventBufferSize bounds the per-session outbound event queue. A listener
// that falls further behind than this is disconnected; the run continues.
const eventBufferSize = 64

// Runner executes one research session, emitting progress to sink. The
// orchestrator satisfies this.
type Runner interface {
	Run(ctx context.Context, session *types.ResearchSession, sink orchestrator.Sink) (*types.ResearchResponse, error)
}

// BuildRunner constructs the engine for one request. api carries the
// request's search backend override, empty for the configured default.
type BuildRunner func(api types.SearchAPI) (Runner, error)

// Server routes research requests to per-request engine instances and
// tracks live sessions so they can be cancelled by ID.
type Server struct {
	build BuildRunner
	log   io.Writer

	mu       sync.Mutex
	sessions map[string]*types.ResearchSession
}

// New constructs a Server. Request and warning lines go to log.
func New(build BuildRunner, log io.Writer) *Server {
	if log == nil {
		log = io.Discard
	}
	return &Server{
		build:    build,
		log:      log,
		sessions: make(map[string]*types.ResearchSession),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /research", s.handleResearch)
	mux.HandleFunc("POST /research/stream", s.handleResearchStream)
	mux.HandleFunc("POST /research/{session_id}/cancel", s.handleCancel)
	return s.logRequests(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	runner, err := s.build(req.SearchAPI)
	if err != nil {
		s.warnf("building engine: %v", err)
		writeDetail(w, http.StatusInternalServerError, "engine unavailable")
		return
	}

	session := orchestrator.NewSession(req.Topic)
	s.track(session)
	defer s.forget(session.ID)

	resp, err := runner.Run(r.Context(), session, orchestrator.Discard)
	if err != nil {
		s.warnf("session %s: %v", session.ID, err)
		writeDetail(w, http.StatusInternalServerError, "research failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResearchStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	runner, err := s.build(req.SearchAPI)
	if err != nil {
		s.warnf("building engine: %v", err)
		writeDetail(w, http.StatusInternalServerError, "engine unavailable")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeDetail(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	session := orchestrator.NewSession(req.Topic)
	s.track(session)
	defer s.forget(session.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The run drives the queue; the handler drains it onto the wire. A
	// client disconnect cancels the request context, which the run observes
	// at its next suspension point.
	queue := orchestrator.NewEventQueue(eventBufferSize)
	done := make(chan struct{})
	var runErr error
	go func() {
		defer close(done)
		_, runErr = runner.Run(r.Context(), session, queue)
		queue.Close()
	}()

	writing := true
	for writing {
		select {
		case ev, open := <-queue.Events():
			if !open {
				writing = false
				continue
			}
			writeFrame(w, flusher, ev)
		case <-r.Context().Done():
			writing = false
		}
	}
	<-done

	if runErr != nil && r.Context().Err() == nil {
		s.warnf("session %s: %v", session.ID, runErr)
		frame, _ := json.Marshal(map[string]string{"type": "error", "detail": runErr.Error()})
		fmt.Fprintf(w, "data:%s\n\n", frame)
		flusher.Flush()
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session_id")
	session := s.lookup(id)
	if session == nil {
		writeDetail(w, http.StatusNotFound, "session not found or finished")
		return
	}
	session.Cancel()
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":     "cancelling",
		"session_id": id,
	})
}

// decodeRequest parses and validates the request body, writing a 400 and
// returning ok=false on failure.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (types.ResearchRequest, bool) {
	var req types.ResearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if err := req.Validate(); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	return req, true
}

func (s *Server) track(session *types.ResearchSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
}

func (s *Server) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *Server) lookup(id string) *types.ResearchSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

func (s *Server) warnf(format string, args ...any) {
	fmt.Fprintf(s.log, "warning: "+format+"\n", args...)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		fmt.Fprintf(s.log, "%s %s %d %s\n",
			r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

// statusRecorder captures the response status for the request log while
// passing Flush through for SSE.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func writeFrame(w http.ResponseWriter, flusher http.Flusher, ev types.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data:%s\n\n", data)
	flusher.Flush()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}
