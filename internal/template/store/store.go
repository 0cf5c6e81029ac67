// Package store defines the persistence contract for biometric templates.
// The service layer owns all lifecycle rules; implementations here only
// persist and retrieve the logical entity.
package store

import (
	"context"

	"biogate/internal/template/models"
	"biogate/pkg/domain"
)

// Repository is the storage abstraction the template service operates
// against. Implementations return sentinel.ErrNotFound for missing records
// and must never interpret lifecycle semantics.
type Repository interface {
	Save(ctx context.Context, template *models.Template) error
	Load(ctx context.Context, id domain.TemplateID) (*models.Template, error)
	Delete(ctx context.Context, id domain.TemplateID) error
	// Find returns templates matching the filter, ordered by updated_at
	// descending. The result is a snapshot; mutating returned templates
	// has no effect on the store.
	Find(ctx context.Context, query models.Query) ([]*models.Template, error)
}
