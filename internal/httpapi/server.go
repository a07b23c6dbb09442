// Package httpapi exposes the scan engine's HTTP surface: starting scans,
// polling status/results, and delivering HITL decisions, grounded on
// internal/api/server.go's Router()/writeJSON pattern.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.temporal.io/sdk/client"

	"github.com/SafwanAhmed08/DeplAI/internal/config"
	"github.com/SafwanAhmed08/DeplAI/internal/engine/hitl"
	"github.com/SafwanAhmed08/DeplAI/internal/scanstate"
	wf "github.com/SafwanAhmed08/DeplAI/internal/workflow"
)

// Server wires incoming HTTP requests to Temporal workflow executions, one
// per scan_id.
type Server struct {
	cfg      config.Config
	temporal client.Client
	log      *log.Logger
}

func New(cfg config.Config, temporal client.Client, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "deplai-api ", log.LstdFlags|log.LUTC)
	}
	return &Server{cfg: cfg, temporal: temporal, log: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/scan", func(r chi.Router) {
		r.Post("/start", s.handleStart)
		r.Get("/{scan_id}/status", s.handleStatus)
		r.Get("/{scan_id}/results", s.handleResults)
		r.Post("/{scan_id}/hitl-decision", s.handleHITLDecision)
	})

	return r
}

func workflowID(scanID string) string { return "scan-" + scanID }

type startRequest struct {
	RepoURL     string `json:"repo_url"`
	ProjectID   string `json:"project_id"`
	GitHubToken string `json:"github_token"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.RepoURL) == "" {
		http.Error(w, "repo_url is required", http.StatusBadRequest)
		return
	}

	token := req.GitHubToken
	if token == "" {
		token = s.cfg.GitHubToken
	}

	scanID := uuid.NewString()
	initial := scanstate.BuildInitialState(scanID, req.RepoURL, token)
	initial.ProjectID = req.ProjectID

	options := client.StartWorkflowOptions{
		ID:        workflowID(scanID),
		TaskQueue: s.cfg.TemporalTaskQueue,
	}
	if _, err := s.temporal.ExecuteWorkflow(r.Context(), options, wf.ScanWorkflow, initial); err != nil {
		s.log.Printf("start scan %s: %v", scanID, err)
		http.Error(w, "failed to start scan", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"scan_id": scanID, "status": "started"})
}

func (s *Server) queryState(r *http.Request, scanID string) (scanstate.ScanState, error) {
	resp, err := s.temporal.QueryWorkflow(r.Context(), workflowID(scanID), "", wf.ScanStateQuery)
	if err != nil {
		return scanstate.ScanState{}, err
	}
	var state scanstate.ScanState
	if err := resp.Get(&state); err != nil {
		return scanstate.ScanState{}, err
	}
	return state, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scan_id")
	state, err := s.queryState(r, scanID)
	if err != nil {
		http.Error(w, "scan not found", http.StatusNotFound)
		return
	}

	status := "running"
	switch state.Phase {
	case scanstate.PhaseCompleted:
		status = "completed"
	case scanstate.PhaseError:
		status = "failed"
	}

	messages := make([]string, 0, len(state.PhaseTimeline))
	for _, entry := range state.PhaseTimeline {
		messages = append(messages, entry.Phase+": "+entry.Event)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        status,
		"current_phase": state.Phase,
		"messages":      messages,
		"errors":        state.Errors,
	})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scan_id")
	state, err := s.queryState(r, scanID)
	if err != nil {
		http.Error(w, "scan not found", http.StatusNotFound)
		return
	}
	state.GitHubToken = ""

	status := "running"
	switch state.Phase {
	case scanstate.PhaseCompleted:
		status = "completed"
	case scanstate.PhaseError:
		status = "failed"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scan_id": scanID,
		"status":  status,
		"state":   state,
	})
}

type hitlDecisionRequest struct {
	Decision string `json:"decision"`
	Actor    string `json:"actor"`
	Reason   string `json:"reason"`
}

func (s *Server) handleHITLDecision(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scan_id")

	var req hitlDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	decision, ok := hitl.NormalizeDecision(req.Decision)
	if !ok {
		http.Error(w, "decision must be approve or reject", http.StatusBadRequest)
		return
	}

	err := s.temporal.SignalWorkflow(r.Context(), workflowID(scanID), "", wf.HITLDecisionSignal, wf.DecisionSignal{
		Decision: decision,
	})
	if err != nil {
		s.log.Printf("hitl decision signal scan=%s actor=%s: %v", scanID, req.Actor, err)
		http.Error(w, "failed to deliver decision", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scan_id":  scanID,
		"accepted": true,
		"decision": decision,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
