// Package handler exposes fused authentication over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"biogate/internal/fusion/models"
	"biogate/pkg/platform/httputil"
	"biogate/pkg/requestcontext"
)

// Service defines the interface for authentication operations.
type Service interface {
	Authenticate(ctx context.Context, req models.AuthenticationRequest) (*models.AuthenticationResult, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts authentication endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/authenticate", h.HandleAuthenticate)
}

// HandleAuthenticate handles POST /authenticate requests.
func (h *Handler) HandleAuthenticate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[AuthenticateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Authenticate(ctx, req.Domain())
	if err != nil {
		h.logger.WarnContext(ctx, "authentication rejected",
			"request_id", requestID,
			"strategy", req.Strategy,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "authentication completed",
		"request_id", requestID,
		"strategy", req.Strategy,
		"decision", result.Decision.String(),
		"confidence", result.Confidence,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}
