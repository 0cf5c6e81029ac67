package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biogate/internal/fusion/models"
	"biogate/pkg/domain"
)

type stubService struct {
	result *models.AuthenticationResult
	err    error
	got    models.AuthenticationRequest
}

func (s *stubService) Authenticate(ctx context.Context, req models.AuthenticationRequest) (*models.AuthenticationResult, error) {
	s.got = req
	return s.result, s.err
}

func newRouter(svc Service) http.Handler {
	r := chi.NewRouter()
	New(svc, slog.New(slog.DiscardHandler)).Register(r)
	return r
}

func TestHandleAuthenticate(t *testing.T) {
	subject := domain.NewSubjectID()
	svc := &stubService{result: &models.AuthenticationResult{
		Decision:   models.DecisionSuccess,
		Confidence: 0.874,
		Strategy:   models.StrategyMultiFactor,
		SubjectID:  &subject,
	}}
	router := newRouter(svc)

	body, _ := json.Marshal(map[string]any{
		"subject_id": subject.String(),
		"strategy":   "multi_factor",
		"captures": []map[string]any{
			{"modality": "face", "data": []byte("probe"), "format": "jpeg", "quality": 0.9},
			{"modality": "fingerprint", "data": []byte("probe"), "format": "raw", "quality": 0.8},
		},
		"timeout_seconds": 2.5,
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/authenticate", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)

	var result models.AuthenticationResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.Equal(t, models.DecisionSuccess, result.Decision)
	assert.Equal(t, 0.874, result.Confidence)

	// Wire seconds became a duration on the domain request.
	assert.Equal(t, 2500, int(svc.got.Timeout.Milliseconds()))
	require.NotNil(t, svc.got.SubjectID)
	assert.Equal(t, subject, *svc.got.SubjectID)
}

func TestHandleAuthenticateValidation(t *testing.T) {
	router := newRouter(&stubService{})

	body, _ := json.Marshal(map[string]any{"strategy": "multi_factor"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/authenticate", bytes.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
