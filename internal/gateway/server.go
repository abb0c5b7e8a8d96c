// Package gateway serves the HTTP and WebSocket API of aios.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/anonx3247/aios-chat-sub000/internal/events"
	"github.com/anonx3247/aios-chat-sub000/internal/gateway/ws"
	"github.com/anonx3247/aios-chat-sub000/internal/orchestrator"
	"github.com/anonx3247/aios-chat-sub000/internal/secrets"
	"github.com/anonx3247/aios-chat-sub000/internal/sessions"
	"github.com/anonx3247/aios-chat-sub000/internal/storage"
	"github.com/anonx3247/aios-chat-sub000/internal/threads"
)

const defaultEventLimit = 50

// Orchestrator starts runs and exposes session snapshots.
type Orchestrator interface {
	Launch(ctx context.Context, threadID, task string, creds secrets.Credentials) (*orchestrator.Run, error)
	SessionSnapshot(threadID string) (*sessions.Session, bool)
}

// CredentialSource provides stored credentials.
type CredentialSource interface {
	All() (secrets.Credentials, error)
}

// Deps are the collaborators of the gateway. Bus, Orchestrator and Threads are required.
type Deps struct {
	Bus          *events.Bus
	Orchestrator Orchestrator
	Threads      *threads.Store
	Prompter     *events.Prompter
	Secrets      CredentialSource
	EventLog     *storage.EventLog
	// Metrics serves /metrics. Nil leaves the route out.
	Metrics http.Handler
}

// Server is the aios gateway HTTP server.
type Server struct {
	httpServer *http.Server
	hub        *ws.Hub
	deps       Deps

	// runCtx outlives requests so background runs survive their HTTP call.
	runCtx    context.Context
	cancelRun context.CancelFunc
}

// NewServer creates a gateway server listening on host:port.
func NewServer(deps Deps, host string, port int) *Server {
	runCtx, cancel := context.WithCancel(context.Background())
	s := &Server{deps: deps, runCtx: runCtx, cancelRun: cancel}
	s.hub = ws.NewHub(deps.Bus.SubscribeThread, s)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ws", s.hub.ServeWS)
	r.Get("/api/events", s.handleEvents)

	r.Route("/api/threads", func(r chi.Router) {
		r.Get("/", s.handleListThreads)
		r.Post("/", s.handleCreateThread)
		r.Route("/{id}", func(r chi.Router) {
			r.Delete("/", s.handleDeleteThread)
			r.Get("/messages", s.handleMessages)
			r.Post("/orchestrate", s.handleOrchestrate)
			r.Get("/session", s.handleSession)
			r.Get("/events", s.handleThreadEvents)
		})
	})
	r.Post("/api/prompts/{token}", s.handlePromptResponse)

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: r,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ClientCount returns the number of connected WebSocket clients.
func (s *Server) ClientCount() int {
	return s.hub.ClientCount()
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("aios gateway listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown stops accepting requests, disconnects clients and cancels running
// orchestrations.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	err := s.httpServer.Shutdown(ctx)
	s.cancelRun()
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, threads.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orchestrator.ErrEmptyTask):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func limitParam(r *http.Request) int {
	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	return limit
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	history := s.deps.Bus.History(r.URL.Query().Get("thread"), limitParam(r))
	if history == nil {
		history = []events.Event{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleThreadEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.EventLog == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("event log disabled"))
		return
	}
	logged, err := s.deps.EventLog.Read(chi.URLParam(r, "id"), limitParam(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if logged == nil {
		logged = []events.Event{}
	}
	writeJSON(w, http.StatusOK, logged)
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Threads.ListThreads(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if list == nil {
		list = []*threads.Thread{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
			return
		}
	}
	th, err := s.deps.Threads.CreateThread(r.Context(), body.Title)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, th)
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.deps.Threads.DeleteThread(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if s.deps.EventLog != nil {
		if err := s.deps.EventLog.Remove(id); err != nil {
			slog.Warn("remove thread event log", "thread", id, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.deps.Threads.GetThread(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	msgs, err := s.deps.Threads.Messages(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if msgs == nil {
		msgs = []*threads.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// OrchestrateRequest is the body of POST /api/threads/{id}/orchestrate.
type OrchestrateRequest struct {
	Task        string              `json:"task"`
	Credentials secrets.Credentials `json:"credentials,omitempty"`
}

// OrchestrateResponse acknowledges a started run.
type OrchestrateResponse struct {
	SessionID string `json:"session_id"`
	ThreadID  string `json:"thread_id"`
}

func (s *Server) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body OrchestrateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	resp, err := s.orchestrate(r.Context(), id, body)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// orchestrate launches a run in the background. Stored credentials are used
// unless the request overrides them.
func (s *Server) orchestrate(ctx context.Context, threadID string, req OrchestrateRequest) (OrchestrateResponse, error) {
	if _, err := s.deps.Threads.GetThread(ctx, threadID); err != nil {
		return OrchestrateResponse{}, err
	}

	creds := secrets.Credentials{}
	if s.deps.Secrets != nil {
		stored, err := s.deps.Secrets.All()
		if err != nil {
			slog.Warn("load stored credentials", "error", err)
		}
		creds = stored
	}
	creds = creds.Merge(req.Credentials)

	run, err := s.deps.Orchestrator.Launch(s.runCtx, threadID, req.Task, creds)
	if err != nil {
		return OrchestrateResponse{}, err
	}
	slog.Info("orchestration launched", "thread", threadID, "session", run.SessionID)
	return OrchestrateResponse{SessionID: run.SessionID, ThreadID: threadID}, nil
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.deps.Orchestrator.SessionSnapshot(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no session for thread"))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handlePromptResponse(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value     string `json:"value"`
		Cancelled bool   `json:"cancelled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	if err := s.respond(events.PromptResponsePayload{
		Token:     chi.URLParam(r, "token"),
		Value:     body.Value,
		Cancelled: body.Cancelled,
	}); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var errNoPrompt = errors.New("no pending prompt for token")

func (s *Server) respond(resp events.PromptResponsePayload) error {
	if s.deps.Prompter == nil || !s.deps.Prompter.Respond(resp) {
		return errNoPrompt
	}
	s.deps.Bus.Publish(events.NewTypedEvent(events.SourceGateway, "", resp))
	return nil
}
