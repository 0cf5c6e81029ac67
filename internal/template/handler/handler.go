// Package handler wires template lifecycle endpoints to the template service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"biogate/internal/template/models"
	"biogate/pkg/domain"
	dErrors "biogate/pkg/domain-errors"
	"biogate/pkg/platform/httputil"
	"biogate/pkg/requestcontext"
)

// Service defines the interface for template operations.
type Service interface {
	Register(ctx context.Context, req models.RegistrationRequest) (*models.RegistrationResult, error)
	Revoke(ctx context.Context, id domain.TemplateID) error
	Load(ctx context.Context, id domain.TemplateID) (*models.Template, error)
	GetPrimary(ctx context.Context, subject domain.SubjectID, modality domain.Modality) (*models.Template, error)
	Query(ctx context.Context, q models.Query) ([]*models.Template, error)
	CleanupExpired(ctx context.Context, now time.Time) (int, error)
	Statistics(ctx context.Context) (*models.Statistics, error)
}

// Handler wires template endpoints to the template service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a template handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts template endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/templates", h.HandleRegister)
	r.Get("/templates", h.HandleQuery)
	r.Get("/templates/statistics", h.HandleStatistics)
	r.Post("/templates/cleanup", h.HandleCleanup)
	r.Get("/templates/{templateID}", h.HandleGet)
	r.Delete("/templates/{templateID}", h.HandleRevoke)
	r.Get("/subjects/{subjectID}/modalities/{modality}/primary", h.HandleGetPrimary)
}

// HandleRegister handles POST /templates requests.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.RegistrationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.CaptureDeviceID == "" {
		req.CaptureDeviceID = requestcontext.DeviceID(ctx)
	}

	result, err := h.service.Register(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "template registration rejected",
			"request_id", requestID,
			"subject_id", req.SubjectID.String(),
			"modality", req.Capture.Modality.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "template registered",
		"request_id", requestID,
		"template_id", result.TemplateID.String(),
		"quality_grade", result.QualityGrade.String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, result)
}

// HandleQuery handles GET /templates requests with filter query parameters.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query, err := queryFromParams(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	templates, err := h.service.Query(ctx, query)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"templates": templates,
		"count":     len(templates),
	})
}

// HandleGet handles GET /templates/{templateID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseTemplateID(chi.URLParam(r, "templateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	template, err := h.service.Load(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, template)
}

// HandleRevoke handles DELETE /templates/{templateID} requests.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := domain.ParseTemplateID(chi.URLParam(r, "templateID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Revoke(ctx, id); err != nil {
		h.logger.WarnContext(ctx, "template revoke rejected",
			"request_id", requestID,
			"template_id", id.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetPrimary handles GET /subjects/{subjectID}/modalities/{modality}/primary.
func (h *Handler) HandleGetPrimary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subject, err := domain.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	modality, err := domain.ParseModality(chi.URLParam(r, "modality"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	template, err := h.service.GetPrimary(ctx, subject, modality)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, template)
}

// HandleCleanup handles POST /templates/cleanup requests.
func (h *Handler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	revoked, err := h.service.CleanupExpired(ctx, requestcontext.Now(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"revoked": revoked})
}

// HandleStatistics handles GET /templates/statistics requests.
func (h *Handler) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func queryFromParams(r *http.Request) (models.Query, error) {
	var query models.Query
	params := r.URL.Query()

	if raw := params.Get("subject_id"); raw != "" {
		subject, err := domain.ParseSubjectID(raw)
		if err != nil {
			return query, err
		}
		query.SubjectID = &subject
	}
	if raw := params.Get("modality"); raw != "" {
		modality, err := domain.ParseModality(raw)
		if err != nil {
			return query, err
		}
		query.Modality = &modality
	}
	if raw := params.Get("status"); raw != "" {
		status := models.Status(raw)
		if !status.IsValid() {
			return query, dErrors.Newf(dErrors.CodeInvalidInput, "unknown template status: %q", raw)
		}
		query.Status = &status
	}
	query.PrimaryOnly = params.Get("primary_only") == "true"
	return query, nil
}
