// Package handler exposes the liveness gate over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"biogate/internal/liveness/models"
	"biogate/pkg/platform/httputil"
	"biogate/pkg/requestcontext"
)

// Service defines the interface for liveness operations.
type Service interface {
	Check(ctx context.Context, req models.CheckRequest) (*models.CheckResult, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts liveness endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/liveness/checks", h.HandleCheck)
}

// HandleCheck handles POST /liveness/checks requests.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CheckRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Check(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "liveness check rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "liveness check completed",
		"request_id", requestID,
		"session_id", result.SessionID,
		"verdict", result.Verdict.String(),
		"profile", result.Profile,
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}
