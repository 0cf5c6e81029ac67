// Package ports defines the capability interfaces this core consumes.
// Matching, quality assessment and liveness evidence extraction are opaque
// external collaborators; the core only sees scores and evidence maps.
package ports

import (
	"context"
	"log/slog"

	livenessmodels "biogate/internal/liveness/models"
	templatemodels "biogate/internal/template/models"
	"biogate/pkg/domain"
)

// Matcher compares a raw capture against a stored template and returns a
// match score in [0,1]. Implementations wrap the actual recognition backend.
type Matcher interface {
	Compare(ctx context.Context, capture domain.Capture, template *templatemodels.Template) (float64, error)
}

// QualityAssessor scores a raw capture in [0,1]. Used at registration time
// and as the quality component of per-factor confidence.
type QualityAssessor interface {
	Assess(ctx context.Context, capture domain.Capture) (float64, error)
}

// Evidence is the raw output of one liveness test evaluation.
type Evidence struct {
	Confidence float64
	Details    map[string]any
}

// LivenessEvidenceProvider computes raw presentation-attack evidence for one
// test type against one capture.
type LivenessEvidenceProvider interface {
	Evaluate(ctx context.Context, testType livenessmodels.TestType, capture domain.Capture) (Evidence, error)
}

// AuditPublisher emits audit events for security-relevant operations.
type AuditPublisher interface {
	Emit(ctx context.Context, action string, fields map[string]any) error
}

// LogAudit publishes an audit event and mirrors it to the logger. Publish
// failures are logged, never propagated; audit must not fail the operation.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, action string, fields map[string]any) {
	if logger != nil {
		attrs := make([]any, 0, len(fields)*2)
		for k, v := range fields {
			attrs = append(attrs, k, v)
		}
		logger.InfoContext(ctx, action, attrs...)
	}
	if publisher == nil {
		return
	}
	if err := publisher.Emit(ctx, action, fields); err != nil && logger != nil {
		logger.WarnContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}
