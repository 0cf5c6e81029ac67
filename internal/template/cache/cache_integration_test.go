//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biogate/internal/template/models"
	"biogate/pkg/domain"
	"biogate/pkg/testutil/containers"
)

func TestTemplateCache(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	cache := New(rc.Client)

	tmpl, err := models.NewTemplate(domain.NewSubjectID(), domain.ModalityFace, []byte("feature-vector"), 0.9, "v2.1", time.Hour)
	require.NoError(t, err)

	t.Run("miss returns nil", func(t *testing.T) {
		got, err := cache.Get(ctx, tmpl.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("put then get preserves the payload", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, tmpl))

		got, err := cache.Get(ctx, tmpl.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, tmpl.ID, got.ID)
		assert.Equal(t, []byte("feature-vector"), got.FeaturePayload)
		assert.Equal(t, tmpl.QualityGrade, got.QualityGrade)
	})

	t.Run("entries carry a TTL", func(t *testing.T) {
		ttl, err := rc.Client.TTL(ctx, "biometric:template:"+tmpl.ID.String()).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
	})

	t.Run("invalidate evicts", func(t *testing.T) {
		require.NoError(t, cache.Invalidate(ctx, tmpl.ID))

		got, err := cache.Get(ctx, tmpl.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
