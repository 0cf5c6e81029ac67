package store

import (
	"context"
	"sort"
	"sync"

	"biogate/internal/template/models"
	"biogate/pkg/domain"
	"biogate/pkg/platform/sentinel"
)

// InMemoryRepository keeps the initial implementation lightweight and
// testable. Templates are deep-copied on both write and read so callers can
// never alias the stored records.
type InMemoryRepository struct {
	mu        sync.RWMutex
	templates map[domain.TemplateID]*models.Template

	// subjectIndex maps (subject, modality) to the template IDs stored for
	// that pair. Maintained inside the same critical section as the
	// authoritative map, never independently.
	subjectIndex map[subjectModalityKey]map[domain.TemplateID]struct{}
}

type subjectModalityKey struct {
	subject  domain.SubjectID
	modality domain.Modality
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		templates:    make(map[domain.TemplateID]*models.Template),
		subjectIndex: make(map[subjectModalityKey]map[domain.TemplateID]struct{}),
	}
}

func (r *InMemoryRepository) Save(_ context.Context, template *models.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := subjectModalityKey{template.SubjectID, template.Modality}
	if _, ok := r.subjectIndex[key]; !ok {
		r.subjectIndex[key] = make(map[domain.TemplateID]struct{})
	}
	r.subjectIndex[key][template.ID] = struct{}{}
	r.templates[template.ID] = template.Clone()
	return nil
}

func (r *InMemoryRepository) Load(_ context.Context, id domain.TemplateID) (*models.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.templates[id]; ok {
		return t.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (r *InMemoryRepository) Delete(_ context.Context, id domain.TemplateID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.templates[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	key := subjectModalityKey{t.SubjectID, t.Modality}
	if ids, ok := r.subjectIndex[key]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(r.subjectIndex, key)
		}
	}
	delete(r.templates, id)
	return nil
}

func (r *InMemoryRepository) Find(_ context.Context, query models.Query) ([]*models.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Template
	if query.SubjectID != nil && query.Modality != nil {
		// Narrow scans through the pair index when both keys are present.
		key := subjectModalityKey{*query.SubjectID, *query.Modality}
		for id := range r.subjectIndex[key] {
			if t := r.templates[id]; t != nil && query.Matches(t) {
				out = append(out, t.Clone())
			}
		}
	} else {
		for _, t := range r.templates {
			if query.Matches(t) {
				out = append(out, t.Clone())
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}
