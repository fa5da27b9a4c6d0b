// Package server exposes the session engine and inference layer over HTTP.
// Every operation has an explicit request/response type validated at the
// boundary before anything reaches the engine.
package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/curax/triage/internal/engine"
	"github.com/curax/triage/internal/gateway"
	"github.com/curax/triage/internal/inference"
	"github.com/curax/triage/internal/model"
	"github.com/curax/triage/internal/report"
	"github.com/curax/triage/internal/session"
	"github.com/curax/triage/internal/speech"
	"github.com/curax/triage/internal/types"
)

// turnTimeout bounds how long a caller waits for a queued turn.
const turnTimeout = 2 * time.Minute

// Server is the HTTP layer.
type Server struct {
	engine   *engine.Engine
	gateway  *gateway.Gateway
	router   *inference.Router
	fallback *inference.FallbackChain
	registry *model.Registry
	reports  *report.Generator
	audio    *speech.AudioStore
	logger   *slog.Logger
	mux      chi.Router
}

// Options wires the server's collaborators. Engine, Gateway, Router, and
// Registry are required; the rest degrade gracefully when absent.
type Options struct {
	Engine   *engine.Engine
	Gateway  *gateway.Gateway
	Router   *inference.Router
	Fallback *inference.FallbackChain
	Registry *model.Registry
	Reports  *report.Generator
	Audio    *speech.AudioStore
	Logger   *slog.Logger
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:   opts.Engine,
		gateway:  opts.Gateway,
		router:   opts.Router,
		fallback: opts.Fallback,
		registry: opts.Registry,
		reports:  opts.Reports,
		audio:    opts.Audio,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", s.handleStartSession)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Post("/sessions/{id}/turns", s.handleProcessTurn)
		r.Post("/sessions/{id}/end", s.handleEndSession)
		r.Get("/sessions/{id}/report", s.handleSessionReport)
		r.Get("/audio/{ref}", s.handleAudioClip)
		r.Get("/models", s.handleListModels)
		r.Post("/infer", s.handleInfer)
		r.Post("/infer/ensemble", s.handleEnsemble)
		r.Post("/infer/fallback", s.handleFallback)
	})
	s.mux = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Health())
}

type startSessionRequest struct {
	PatientRef string `json:"patient_ref,omitempty"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	sess, err := s.engine.StartSession(r.Context(), types.PatientRef(req.PatientRef))
	if err != nil {
		s.logger.Error("start session failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.engine.ListSessions(r.Context())
	if err != nil {
		s.logger.Error("list sessions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if sessions == nil {
		sessions = []*session.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := types.SessionID(chi.URLParam(r, "id"))
	sess, err := s.engine.GetSession(r.Context(), id)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type processTurnRequest struct {
	Text         string `json:"text,omitempty"`
	AudioBase64  string `json:"audio_base64,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

type processTurnResponse struct {
	Session          *session.Session `json:"session"`
	AssistantMessage session.Message  `json:"assistant_message"`
	ActionRequired   engine.Action    `json:"action_required"`
}

func (s *Server) handleProcessTurn(w http.ResponseWriter, r *http.Request) {
	id := types.SessionID(chi.URLParam(r, "id"))

	var req processTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Text == "" && req.AudioBase64 == "" {
		writeError(w, http.StatusBadRequest, "text or audio_base64 is required")
		return
	}
	var audio []byte
	if req.AudioBase64 != "" {
		var err error
		audio, err = base64.StdEncoding.DecodeString(req.AudioBase64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "audio_base64 is not valid base64")
			return
		}
	}

	input := engine.TurnInput{Text: req.Text, Audio: audio, LanguageCode: req.LanguageCode}
	resultCh := make(chan *engine.TurnResult, 1)
	errCh := make(chan error, 1)
	err := s.gateway.Submit(id, input,
		gateway.WithOnComplete(func(res *engine.TurnResult) { resultCh <- res }),
		gateway.WithOnError(func(e error) { errCh <- e }))
	if err != nil {
		s.logger.Error("enqueue turn failed", "session_id", id, "error", err)
		writeError(w, http.StatusServiceUnavailable, "session queue full")
		return
	}

	select {
	case res := <-resultCh:
		writeJSON(w, http.StatusOK, processTurnResponse{
			Session:          res.Session,
			AssistantMessage: res.AssistantMessage,
			ActionRequired:   res.ActionRequired,
		})
	case e := <-errCh:
		s.writeSessionError(w, e)
	case <-r.Context().Done():
		writeError(w, http.StatusRequestTimeout, "client disconnected")
	case <-time.After(turnTimeout):
		writeError(w, http.StatusGatewayTimeout, "turn processing timed out")
	}
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := types.SessionID(chi.URLParam(r, "id"))
	sess, err := s.engine.EndSession(r.Context(), id)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSessionReport(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "reports not configured")
		return
	}
	id := types.SessionID(chi.URLParam(r, "id"))
	sess, err := s.engine.GetSession(r.Context(), id)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}

	pdf, err := s.reports.Generate(sess)
	if err != nil {
		s.logger.Error("report generation failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "report generation failed")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="session-`+string(id)+`.pdf"`)
	w.Write(pdf)
}

func (s *Server) handleAudioClip(w http.ResponseWriter, r *http.Request) {
	if s.audio == nil {
		writeError(w, http.StatusServiceUnavailable, "audio store not configured")
		return
	}
	ref := chi.URLParam(r, "ref")
	data, meta, err := s.audio.Get(ref)
	if err != nil {
		writeError(w, http.StatusNotFound, "audio clip not found")
		return
	}
	mime := meta.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mime)
	w.Write(data)
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

type inferRequest struct {
	Prompt      string         `json:"prompt"`
	Context     string         `json:"context,omitempty"`
	TaskType    string         `json:"task_type"`
	PatientData map[string]any `json:"patient_data,omitempty"`
	ModelID     string         `json:"model_id"`
}

func (r inferRequest) toRequest() *inference.Request {
	return &inference.Request{
		Prompt:      r.Prompt,
		Context:     r.Context,
		TaskType:    inference.TaskType(r.TaskType),
		PatientData: r.PatientData,
		ModelID:     r.ModelID,
	}
}

func (s *Server) handleInfer(w http.ResponseWriter, r *http.Request) {
	var req inferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	resp, err := s.router.Infer(r.Context(), req.toRequest())
	if err != nil {
		s.writeInferenceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type ensembleRequest struct {
	inferRequest
	Models       []string           `json:"models"`
	VotingMethod string             `json:"voting_method"`
	Weights      map[string]float64 `json:"weights,omitempty"`
}

func (s *Server) handleEnsemble(w http.ResponseWriter, r *http.Request) {
	var req ensembleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Models) == 0 {
		writeError(w, http.StatusBadRequest, "models is required")
		return
	}

	resp, err := s.router.EnsembleInfer(r.Context(), req.toRequest(), &inference.EnsembleConfig{
		Models:       req.Models,
		VotingMethod: inference.VotingMethod(req.VotingMethod),
		Weights:      req.Weights,
	})
	if err != nil {
		s.writeInferenceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type fallbackRequest struct {
	inferRequest
	PrimaryModelID string   `json:"primary_model_id"`
	KnownFailed    []string `json:"known_failed,omitempty"`
}

func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	var req fallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.PrimaryModelID == "" {
		writeError(w, http.StatusBadRequest, "primary_model_id is required")
		return
	}

	resp, err := s.fallback.Infer(r.Context(), req.toRequest(), req.PrimaryModelID, req.KnownFailed)
	if err != nil {
		s.writeInferenceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, session.ErrNotActive):
		writeError(w, http.StatusConflict, "session is not active")
	case errors.Is(err, session.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "no usable input")
	default:
		s.logger.Error("session operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) writeInferenceError(w http.ResponseWriter, err error) {
	switch inference.CodeOf(err) {
	case inference.ErrorInvalidRequest:
		writeError(w, http.StatusBadRequest, err.Error())
	case inference.ErrorModelNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	case inference.ErrorModelUnavailable, inference.ErrorAllModelsFailed:
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case inference.ErrorCompletionFailed:
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("inference failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
