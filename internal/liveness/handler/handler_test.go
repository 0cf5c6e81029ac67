package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biogate/internal/liveness/models"
)

type stubService struct {
	result  *models.CheckResult
	err     error
	lastReq models.CheckRequest
}

func (s *stubService) Check(_ context.Context, req models.CheckRequest) (*models.CheckResult, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newTestRouter(svc Service) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	New(svc, logger).Register(r)
	return r
}

func checkBody(level float64) string {
	capture := map[string]any{
		"modality": "face",
		"data":     []byte("frame-bytes"),
		"format":   "jpeg",
		"quality":  0.9,
	}
	raw, _ := json.Marshal(map[string]any{
		"capture":        capture,
		"security_level": level,
	})
	return string(raw)
}

func TestHandleCheck(t *testing.T) {
	svc := &stubService{result: &models.CheckResult{
		SessionID:    "sess-1",
		Verdict:      models.VerdictPass,
		OverallScore: 0.91,
		Profile:      "standard",
	}}
	router := newTestRouter(svc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/liveness/checks", strings.NewReader(checkBody(0.5)))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result models.CheckResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, models.VerdictPass, result.Verdict)
	assert.Equal(t, 0.91, result.OverallScore)
	assert.Equal(t, 0.5, svc.lastReq.SecurityLevel)
}

func TestHandleCheckRejectsNonFaceCapture(t *testing.T) {
	svc := &stubService{result: &models.CheckResult{Verdict: models.VerdictPass}}
	router := newTestRouter(svc)

	body := `{"capture":{"modality":"fingerprint","data":"cHJpbnQ="},"security_level":0.5}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/liveness/checks", strings.NewReader(body))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_input")
	// Validation failed at the boundary, the service never ran.
	assert.Empty(t, svc.lastReq.Capture.Data)
}

func TestHandleCheckMalformedBody(t *testing.T) {
	router := newTestRouter(&stubService{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/liveness/checks", strings.NewReader("{"))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "bad_request")
}
