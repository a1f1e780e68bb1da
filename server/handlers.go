package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Superego-Agent/superego-lgdemo-sub000/compare"
	"github.com/Superego-Agent/superego-lgdemo-sub000/constitution"
	"github.com/Superego-Agent/superego-lgdemo-sub000/core"
	"github.com/Superego-Agent/superego-lgdemo-sub000/runner"
)

// heartbeatInterval is the gap between SSE keepalive comments.
const heartbeatInterval = 15 * time.Second

type chatRequest struct {
	Message        string   `json:"message"`
	SessionID      string   `json:"session_id,omitempty"`
	Constitutions  []string `json:"constitutions,omitempty"`
	Provider       string   `json:"provider,omitempty"`
	Model          string   `json:"model,omitempty"`
	AdherenceLevel string   `json:"adherence_level,omitempty"`
	SkipGate       bool     `json:"skip_gate,omitempty"`
	APIKeys        APIKeys  `json:"api_keys,omitempty"`
}

type branchRequest struct {
	BranchID       string   `json:"branch_id,omitempty"`
	Constitutions  []string `json:"constitutions,omitempty"`
	Provider       string   `json:"provider,omitempty"`
	Model          string   `json:"model,omitempty"`
	AdherenceLevel string   `json:"adherence_level,omitempty"`
	SkipGate       bool     `json:"skip_gate,omitempty"`
}

type compareRequest struct {
	Message   string          `json:"message"`
	SessionID string          `json:"session_id,omitempty"`
	Branches  []branchRequest `json:"branches"`
	APIKeys   APIKeys         `json:"api_keys,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConstitutions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]constitution.Module{
		"constitutions": s.registry.List(),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("message is required"))
		return
	}

	cfg, err := s.buildRunConfig(branchRequest{
		Constitutions:  req.Constitutions,
		Provider:       req.Provider,
		Model:          req.Model,
		AdherenceLevel: req.AdherenceLevel,
		SkipGate:       req.SkipGate,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = core.NewID()
	}
	sess, err := s.store.Get(sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("load session: %w", err))
		return
	}

	human := core.NewHumanMessage(req.Message)
	if err := s.store.AppendMessages(sessionID, human); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("persist message: %w", err))
		return
	}
	initial := append(sess.Messages, human)

	br := runner.New(s.factory(req.APIKeys), cfg,
		runner.WithLogger(s.logger),
		runner.WithSession(s.store, sessionID))

	s.streamEvents(w, r, br.Run(r.Context(), initial))
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("message is required"))
		return
	}
	if len(req.Branches) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("at least one branch is required"))
		return
	}

	configs := make([]core.RunConfig, len(req.Branches))
	for i, br := range req.Branches {
		cfg, err := s.buildRunConfig(br)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("branch %d: %w", i, err))
			return
		}
		cfg.BranchID = br.BranchID
		configs[i] = cfg
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = core.NewID()
	}

	cmp := compare.New(s.factory(req.APIKeys), configs,
		compare.WithLogger(s.logger),
		compare.WithSession(s.store, sessionID))

	initial := []core.Message{core.NewHumanMessage(req.Message)}
	s.streamEvents(w, r, cmp.Run(r.Context(), initial))
}

// buildRunConfig resolves a branch request into an immutable RunConfig.
// Unknown constitution ids are a client error.
func (s *Server) buildRunConfig(br branchRequest) (core.RunConfig, error) {
	cfg := core.RunConfig{
		Provider:       br.Provider,
		ModelName:      br.Model,
		AdherenceLevel: br.AdherenceLevel,
		SkipGate:       br.SkipGate,
	}
	if cfg.Provider == "" {
		cfg.Provider = s.defaultProvider
	}
	if len(br.Constitutions) > 0 {
		text, err := s.registry.Resolve(br.Constitutions...)
		if err != nil {
			return core.RunConfig{}, err
		}
		cfg.Constitution = text
	}
	return cfg, nil
}

// streamEvents frames protocol events as SSE until the stream closes. The
// stream always ends with each branch's terminal event; client disconnects
// cancel the run via the request context.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, events <-chan core.ProtocolEvent) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			// Client went away; drain so producers can finish closing.
			for range events {
			}
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, ev); err != nil {
				s.logger.Warn("sse write failed", "error", err)
				for range events {
				}
				return
			}
			flusher.Flush()

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				for range events {
				}
				return
			}
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes a single protocol event in SSE format.
func writeSSEEvent(w http.ResponseWriter, ev core.ProtocolEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
