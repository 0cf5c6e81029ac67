package service

import (
	"context"
	"sync"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biogate/internal/template/metrics"
	"biogate/internal/template/models"
	"biogate/internal/template/store"
	"biogate/pkg/domain"
	dErrors "biogate/pkg/domain-errors"
)

type stubAssessor struct {
	score float64
	err   error
}

func (s stubAssessor) Assess(ctx context.Context, capture domain.Capture) (float64, error) {
	return s.score, s.err
}

func newTestService(t *testing.T, score float64) *Service {
	t.Helper()
	svc, err := New(store.NewInMemoryRepository(), stubAssessor{score: score}, DefaultLimits())
	require.NoError(t, err)
	return svc
}

func faceRequest(subject domain.SubjectID, primary bool) models.RegistrationRequest {
	return models.RegistrationRequest{
		SubjectID: subject,
		Capture: domain.Capture{
			Modality: domain.ModalityFace,
			Data:     []byte("feature-vector"),
			Format:   "jpeg",
			Quality:  0.9,
		},
		AlgorithmVersion: "v2.1",
		SetAsPrimary:     primary,
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("admits template above threshold", func(t *testing.T) {
		svc := newTestService(t, 0.92)
		subject := domain.NewSubjectID()

		result, err := svc.Register(ctx, faceRequest(subject, true))
		require.NoError(t, err)
		assert.Equal(t, 0.92, result.QualityScore)
		assert.Equal(t, models.GradeGood, result.QualityGrade)
		assert.Empty(t, result.Warnings)

		primary, err := svc.GetPrimary(ctx, subject, domain.ModalityFace)
		require.NoError(t, err)
		assert.Equal(t, result.TemplateID, primary.ID)
		assert.True(t, primary.IsPrimary)
		assert.Equal(t, models.StatusActive, primary.Status)
	})

	t.Run("rejects quality below admission threshold", func(t *testing.T) {
		svc := newTestService(t, 0.6499)

		_, err := svc.Register(ctx, faceRequest(domain.NewSubjectID(), false))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePolicyViolation))
	})

	t.Run("admits exactly at the threshold", func(t *testing.T) {
		svc := newTestService(t, 0.65)

		result, err := svc.Register(ctx, faceRequest(domain.NewSubjectID(), false))
		require.NoError(t, err)
		assert.Equal(t, models.GradeFair, result.QualityGrade)
		assert.NotEmpty(t, result.Warnings)
	})

	t.Run("rejects invalid request before assessment", func(t *testing.T) {
		svc := newTestService(t, 0.9)

		req := faceRequest(domain.NewSubjectID(), false)
		req.Capture.Data = nil
		_, err := svc.Register(ctx, req)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("wraps assessor failure as capability error", func(t *testing.T) {
		svc, err := New(store.NewInMemoryRepository(),
			stubAssessor{err: assert.AnError}, DefaultLimits())
		require.NoError(t, err)

		_, err = svc.Register(ctx, faceRequest(domain.NewSubjectID(), false))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeCapability))
	})
}

func TestRegisterLimits(t *testing.T) {
	ctx := context.Background()

	t.Run("enforces per-modality cap", func(t *testing.T) {
		svc := newTestService(t, 0.9)
		subject := domain.NewSubjectID()

		for i := 0; i < 3; i++ {
			_, err := svc.Register(ctx, faceRequest(subject, false))
			require.NoError(t, err)
		}
		_, err := svc.Register(ctx, faceRequest(subject, false))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePolicyViolation))
	})

	t.Run("enforces per-subject cap across modalities", func(t *testing.T) {
		limits := DefaultLimits()
		limits.MaxTemplatesPerSubject = 4
		svc, err := New(store.NewInMemoryRepository(), stubAssessor{score: 0.9}, limits)
		require.NoError(t, err)
		subject := domain.NewSubjectID()

		modalities := []domain.Modality{
			domain.ModalityFace, domain.ModalityFace,
			domain.ModalityFingerprint, domain.ModalityFingerprint,
		}
		for _, m := range modalities {
			req := faceRequest(subject, false)
			req.Capture.Modality = m
			_, err := svc.Register(ctx, req)
			require.NoError(t, err)
		}

		req := faceRequest(subject, false)
		req.Capture.Modality = domain.ModalityIris
		_, err = svc.Register(ctx, req)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePolicyViolation))
	})
}

func TestRegisterPrimaryPromotion(t *testing.T) {
	ctx := context.Background()

	t.Run("demotes previous primary", func(t *testing.T) {
		svc := newTestService(t, 0.9)
		subject := domain.NewSubjectID()

		first, err := svc.Register(ctx, faceRequest(subject, true))
		require.NoError(t, err)
		second, err := svc.Register(ctx, faceRequest(subject, true))
		require.NoError(t, err)

		primary, err := svc.GetPrimary(ctx, subject, domain.ModalityFace)
		require.NoError(t, err)
		assert.Equal(t, second.TemplateID, primary.ID)

		demoted, err := svc.Load(ctx, first.TemplateID)
		require.NoError(t, err)
		assert.False(t, demoted.IsPrimary)
		assert.Equal(t, models.StatusInactive, demoted.Status)
	})

	t.Run("active gauge tracks demotion", func(t *testing.T) {
		m := metrics.New()
		svc, err := New(store.NewInMemoryRepository(), stubAssessor{score: 0.9}, DefaultLimits(), WithMetrics(m))
		require.NoError(t, err)
		subject := domain.NewSubjectID()

		_, err = svc.Register(ctx, faceRequest(subject, true))
		require.NoError(t, err)
		assert.Equal(t, 1.0, promtestutil.ToFloat64(m.ActiveTemplates))

		// Replacing the primary demotes the old one; one active template
		// either way.
		_, err = svc.Register(ctx, faceRequest(subject, true))
		require.NoError(t, err)
		assert.Equal(t, 1.0, promtestutil.ToFloat64(m.ActiveTemplates))
	})

	t.Run("at most one active primary under concurrent registration", func(t *testing.T) {
		svc := newTestService(t, 0.9)
		subject := domain.NewSubjectID()

		var wg sync.WaitGroup
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = svc.Register(ctx, faceRequest(subject, true))
			}()
		}
		wg.Wait()

		active := models.StatusActive
		primaries, err := svc.Query(ctx, models.Query{
			SubjectID:   &subject,
			Status:      &active,
			PrimaryOnly: true,
		})
		require.NoError(t, err)
		assert.Len(t, primaries, 1)
	})
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown template", func(t *testing.T) {
		svc := newTestService(t, 0.9)
		err := svc.Revoke(ctx, domain.NewTemplateID())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("conflicts on active primary with siblings", func(t *testing.T) {
		svc := newTestService(t, 0.9)
		subject := domain.NewSubjectID()

		primary, err := svc.Register(ctx, faceRequest(subject, true))
		require.NoError(t, err)
		sibling, err := svc.Register(ctx, faceRequest(subject, false))
		require.NoError(t, err)

		err = svc.Revoke(ctx, primary.TemplateID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

		// Once the sibling is gone the primary can be revoked.
		require.NoError(t, svc.Revoke(ctx, sibling.TemplateID))
		require.NoError(t, svc.Revoke(ctx, primary.TemplateID))

		_, err = svc.GetPrimary(ctx, subject, domain.ModalityFace)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("revokes non-primary immediately", func(t *testing.T) {
		svc := newTestService(t, 0.9)
		subject := domain.NewSubjectID()

		_, err := svc.Register(ctx, faceRequest(subject, true))
		require.NoError(t, err)
		sibling, err := svc.Register(ctx, faceRequest(subject, false))
		require.NoError(t, err)

		require.NoError(t, svc.Revoke(ctx, sibling.TemplateID))
	})
}

func TestRecordUsage(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 0.9)
	subject := domain.NewSubjectID()

	result, err := svc.Register(ctx, faceRequest(subject, true))
	require.NoError(t, err)

	require.NoError(t, svc.RecordUsage(ctx, result.TemplateID, true))
	require.NoError(t, svc.RecordUsage(ctx, result.TemplateID, true))
	require.NoError(t, svc.RecordUsage(ctx, result.TemplateID, false))

	tmpl, err := svc.Load(ctx, result.TemplateID)
	require.NoError(t, err)
	assert.Equal(t, 3, tmpl.UsageCount)
	assert.Equal(t, 2, tmpl.SuccessCount)
	assert.Equal(t, 1, tmpl.FailureCount)
	assert.Equal(t, 0.6667, tmpl.SuccessRate)
	require.NotNil(t, tmpl.LastUsedAt)
}

func TestCleanupExpired(t *testing.T) {
	ctx := context.Background()
	limits := DefaultLimits()
	limits.TemplateTTL = time.Hour
	svc, err := New(store.NewInMemoryRepository(), stubAssessor{score: 0.9}, limits)
	require.NoError(t, err)

	subjectA := domain.NewSubjectID()
	subjectB := domain.NewSubjectID()
	_, err = svc.Register(ctx, faceRequest(subjectA, true))
	require.NoError(t, err)
	_, err = svc.Register(ctx, faceRequest(subjectB, true))
	require.NoError(t, err)

	t.Run("revokes templates past expiry", func(t *testing.T) {
		revoked, err := svc.CleanupExpired(ctx, time.Now().Add(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 2, revoked)
	})

	t.Run("second run is a no-op", func(t *testing.T) {
		revoked, err := svc.CleanupExpired(ctx, time.Now().Add(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, revoked)
	})

	t.Run("ignores templates still in their TTL", func(t *testing.T) {
		_, err := svc.Register(ctx, faceRequest(domain.NewSubjectID(), true))
		require.NoError(t, err)

		revoked, err := svc.CleanupExpired(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 0, revoked)
	})
}

func TestStatistics(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 0.9)

	subject := domain.NewSubjectID()
	result, err := svc.Register(ctx, faceRequest(subject, true))
	require.NoError(t, err)

	fp := faceRequest(domain.NewSubjectID(), true)
	fp.Capture.Modality = domain.ModalityFingerprint
	_, err = svc.Register(ctx, fp)
	require.NoError(t, err)

	require.NoError(t, svc.RecordUsage(ctx, result.TemplateID, true))

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalTemplates)
	assert.Equal(t, 2, stats.ActiveTemplates)
	assert.Equal(t, 1, stats.ModalityDistribution[domain.ModalityFace])
	assert.Equal(t, 1, stats.ModalityDistribution[domain.ModalityFingerprint])
	assert.Equal(t, 2, stats.GradeDistribution[models.GradeGood])
	assert.Equal(t, 0.5, stats.AverageUsageCount)
	assert.Equal(t, 1.0, stats.AverageSuccessRate)
	require.NotNil(t, stats.OldestTemplate)
	require.NotNil(t, stats.NewestTemplate)
}
