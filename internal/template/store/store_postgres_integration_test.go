//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biogate/internal/template/models"
	"biogate/pkg/domain"
	"biogate/pkg/platform/sentinel"
	"biogate/pkg/testutil/containers"
)

func newPostgresRepo(t *testing.T) *PostgresRepository {
	t.Helper()
	pg := containers.NewPostgresContainer(t)
	repo := NewPostgres(pg.DB)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func newStoredTemplate(t *testing.T, subject domain.SubjectID, modality domain.Modality) *models.Template {
	t.Helper()
	tmpl, err := models.NewTemplate(subject, modality, []byte("feature-vector"), 0.9, "v2.1", 24*time.Hour)
	require.NoError(t, err)
	return tmpl
}

func TestPostgresRoundtrip(t *testing.T) {
	ctx := context.Background()
	repo := newPostgresRepo(t)
	subject := domain.NewSubjectID()
	tmpl := newStoredTemplate(t, subject, domain.ModalityFace)
	tmpl.IsPrimary = true
	tmpl.CaptureMetadata = map[string]any{"device": "gate-7"}

	require.NoError(t, repo.Save(ctx, tmpl))

	loaded, err := repo.Load(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, tmpl.ID, loaded.ID)
	assert.Equal(t, subject, loaded.SubjectID)
	assert.Equal(t, []byte("feature-vector"), loaded.FeaturePayload)
	assert.Equal(t, models.GradeGood, loaded.QualityGrade)
	assert.True(t, loaded.IsPrimary)
	assert.Equal(t, "gate-7", loaded.CaptureMetadata["device"])
}

func TestPostgresUpsert(t *testing.T) {
	ctx := context.Background()
	repo := newPostgresRepo(t)
	tmpl := newStoredTemplate(t, domain.NewSubjectID(), domain.ModalityFace)
	require.NoError(t, repo.Save(ctx, tmpl))

	tmpl.RecordUsage(true, time.Now())
	require.NoError(t, repo.Save(ctx, tmpl))

	loaded, err := repo.Load(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.UsageCount)
	assert.Equal(t, 1.0, loaded.SuccessRate)
}

func TestPostgresFindOrdering(t *testing.T) {
	ctx := context.Background()
	repo := newPostgresRepo(t)
	subject := domain.NewSubjectID()

	older := newStoredTemplate(t, subject, domain.ModalityFace)
	older.UpdatedAt = time.Now().Add(-time.Hour)
	newer := newStoredTemplate(t, subject, domain.ModalityFace)
	require.NoError(t, repo.Save(ctx, older))
	require.NoError(t, repo.Save(ctx, newer))

	found, err := repo.Find(ctx, models.Query{SubjectID: &subject})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, newer.ID, found[0].ID)
	assert.Equal(t, older.ID, found[1].ID)
}

func TestPostgresDelete(t *testing.T) {
	ctx := context.Background()
	repo := newPostgresRepo(t)
	tmpl := newStoredTemplate(t, domain.NewSubjectID(), domain.ModalityIris)
	require.NoError(t, repo.Save(ctx, tmpl))

	require.NoError(t, repo.Delete(ctx, tmpl.ID))

	_, err := repo.Load(ctx, tmpl.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, tmpl.ID), sentinel.ErrNotFound)
}
