package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/curax/triage/internal/engine"
	"github.com/curax/triage/internal/gateway"
	"github.com/curax/triage/internal/inference"
	"github.com/curax/triage/internal/model"
	"github.com/curax/triage/internal/session"
	"github.com/curax/triage/pkg/llm"
	"github.com/curax/triage/prompts"
)

type stubCompleter struct {
	text string
}

func (s stubCompleter) Complete(_ context.Context, _, _, _ string, _ llm.Sampling) (string, error) {
	return s.text, nil
}

func newTestServer(t *testing.T) (*Server, func()) {
	t.Helper()
	cfg, err := prompts.Load("")
	require.NoError(t, err)

	registry := model.FromSeeds(cfg.Models)
	router, err := inference.NewRouter(registry, stubCompleter{text: "General guidance."},
		cfg.SystemPrompts, cfg.Disclaimer, inference.Options{})
	require.NoError(t, err)

	eng := engine.New(session.NewMemoryStore(), cfg, engine.Options{})
	gw := gateway.New(eng, 2)
	gw.Start(context.Background())

	srv := New(Options{
		Engine:   eng,
		Gateway:  gw,
		Router:   router,
		Fallback: inference.NewFallbackChain(router, cfg.FallbackOrder),
		Registry: registry,
	})
	return srv, gw.Stop
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv, stop := newTestServer(t)
	defer stop()

	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, "healthy", report.Status)
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	srv, stop := newTestServer(t)
	defer stop()

	rec := doJSON(t, srv, http.MethodPost, "/api/sessions", map[string]string{"patient_ref": "p-1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var sess session.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	require.Equal(t, session.StatusActive, sess.Status)
	require.Len(t, sess.Transcript, 1)

	rec = doJSON(t, srv, http.MethodPost, "/api/sessions/"+string(sess.ID)+"/turns",
		map[string]string{"text": "I have a headache"})
	require.Equal(t, http.StatusOK, rec.Code)

	var turn processTurnResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &turn))
	require.Equal(t, 1, turn.Session.TurnCount)
	require.NotEmpty(t, turn.AssistantMessage.Content)

	rec = doJSON(t, srv, http.MethodGet, "/api/sessions/"+string(sess.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/sessions/"+string(sess.ID)+"/end", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// A turn against the ended session conflicts.
	rec = doJSON(t, srv, http.MethodPost, "/api/sessions/"+string(sess.ID)+"/turns",
		map[string]string{"text": "hello"})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestProcessTurnValidation(t *testing.T) {
	srv, stop := newTestServer(t)
	defer stop()

	rec := doJSON(t, srv, http.MethodPost, "/api/sessions/some-id/turns", map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/sessions/some-id/turns",
		map[string]string{"audio_base64": "!!not-base64!!"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessTurnMissingSession(t *testing.T) {
	srv, stop := newTestServer(t)
	defer stop()

	rec := doJSON(t, srv, http.MethodPost, "/api/sessions/sess-missing/turns",
		map[string]string{"text": "hello"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSessionNotFound(t *testing.T) {
	srv, stop := newTestServer(t)
	defer stop()

	rec := doJSON(t, srv, http.MethodGet, "/api/sessions/sess-missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInferEndpoint(t *testing.T) {
	srv, stop := newTestServer(t)
	defer stop()

	rec := doJSON(t, srv, http.MethodPost, "/api/infer", map[string]any{
		"prompt":    "What could cause a mild headache?",
		"task_type": "diagnosis",
		"model_id":  "medical-llm-v1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp inference.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "medical-llm-v1", resp.ModelUsed)
	require.Contains(t, resp.Text, "Disclaimer")
}

func TestInferUnknownModel(t *testing.T) {
	srv, stop := newTestServer(t)
	defer stop()

	rec := doJSON(t, srv, http.MethodPost, "/api/infer", map[string]any{
		"prompt":    "hello",
		"task_type": "chat",
		"model_id":  "no-such-model",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnsembleEndpoint(t *testing.T) {
	srv, stop := newTestServer(t)
	defer stop()

	rec := doJSON(t, srv, http.MethodPost, "/api/infer/ensemble", map[string]any{
		"prompt":        "hello",
		"task_type":     "chat",
		"models":        []string{"medical-llm-v1", "medical-llm-v2"},
		"voting_method": "majority",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp inference.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp.ModelUsed, "ensemble")
}

func TestEnsembleRequiresModels(t *testing.T) {
	srv, stop := newTestServer(t)
	defer stop()

	rec := doJSON(t, srv, http.MethodPost, "/api/infer/ensemble", map[string]any{
		"prompt":    "hello",
		"task_type": "chat",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFallbackEndpoint(t *testing.T) {
	srv, stop := newTestServer(t)
	defer stop()

	rec := doJSON(t, srv, http.MethodPost, "/api/infer/fallback", map[string]any{
		"prompt":           "hello",
		"task_type":        "chat",
		"primary_model_id": "medical-llm-v1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp inference.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.WasFallback)
}

func TestListModels(t *testing.T) {
	srv, stop := newTestServer(t)
	defer stop()

	rec := doJSON(t, srv, http.MethodGet, "/api/models", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var models []model.Model
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &models))
	require.Len(t, models, 5)
}
