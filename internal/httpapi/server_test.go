package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SafwanAhmed08/DeplAI/internal/config"
)

func newTestServer() *Server {
	return New(config.Config{TemporalTaskQueue: "deplai-scan"}, nil, nil)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "healthy", body["status"])
}

func TestStartRejectsMissingRepoURL(t *testing.T) {
	srv := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/scan/start", strings.NewReader(`{"project_id":"p1"}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartRejectsMalformedBody(t *testing.T) {
	srv := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/scan/start", strings.NewReader(`not json`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHITLDecisionRejectsInvalidDecision(t *testing.T) {
	srv := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/scan/scan-1/hitl-decision", strings.NewReader(`{"decision":"maybe"}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
