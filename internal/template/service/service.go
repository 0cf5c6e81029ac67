// Package service implements the template lifecycle: admission with quality
// gating, primary promotion, revocation, usage accounting and expiry cleanup.
// All mutations are serialized per (subject, modality) so the single-active-
// primary invariant holds under concurrent registrations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"biogate/internal/biometric/ports"
	"biogate/internal/template/cache"
	"biogate/internal/template/metrics"
	"biogate/internal/template/models"
	"biogate/internal/template/store"
	"biogate/pkg/domain"
	dErrors "biogate/pkg/domain-errors"
	"biogate/pkg/platform/round"
	"biogate/pkg/platform/sentinel"
)

// Limits is the admission policy the service enforces.
type Limits struct {
	AdmissionThreshold      float64
	MaxTemplatesPerSubject  int
	MaxTemplatesPerModality int
	TemplateTTL             time.Duration
}

// DefaultLimits mirrors the access-control deployment defaults.
func DefaultLimits() Limits {
	return Limits{
		AdmissionThreshold:      0.65,
		MaxTemplatesPerSubject:  10,
		MaxTemplatesPerModality: 3,
		TemplateTTL:             365 * 24 * time.Hour,
	}
}

type Service struct {
	repo    store.Repository
	quality ports.QualityAssessor
	limits  Limits

	cache          *cache.TemplateCache
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher ports.AuditPublisher

	// locks serializes mutations per (subject, modality). Lock entries are
	// never removed; the key space is bounded by enrolled pairs.
	locksMu sync.Mutex
	locks   map[pairKey]*sync.Mutex
}

type pairKey struct {
	subject  domain.SubjectID
	modality domain.Modality
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithCache(c *cache.TemplateCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func New(repo store.Repository, quality ports.QualityAssessor, limits Limits, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("template repository is required")
	}
	if quality == nil {
		return nil, fmt.Errorf("quality assessor is required")
	}

	svc := &Service{
		repo:    repo,
		quality: quality,
		limits:  limits,
		locks:   make(map[pairKey]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// lockPair acquires the mutation lock for one (subject, modality) pair and
// returns its unlock func. Independent pairs proceed concurrently.
func (s *Service) lockPair(subject domain.SubjectID, modality domain.Modality) func() {
	key := pairKey{subject, modality}
	s.locksMu.Lock()
	mu, ok := s.locks[key]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[key] = mu
	}
	s.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

// Register admits a new template. Quality is assessed by the capability
// before any lock is taken; the capability call must never sit inside the
// pair-level critical section.
func (s *Service) Register(ctx context.Context, req models.RegistrationRequest) (*models.RegistrationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	score, err := s.quality.Assess(ctx, req.Capture)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeCapability, "quality assessment failed")
	}
	score = round.HalfUp4(score)

	if score < s.limits.AdmissionThreshold {
		s.incrementRejected("quality_below_threshold")
		return nil, dErrors.Newf(dErrors.CodePolicyViolation,
			"quality score %.4f below admission threshold %.2f", score, s.limits.AdmissionThreshold)
	}

	unlock := s.lockPair(req.SubjectID, req.Capture.Modality)
	defer unlock()

	if err := s.checkLimits(ctx, req.SubjectID, req.Capture.Modality); err != nil {
		return nil, err
	}

	template, err := models.NewTemplate(req.SubjectID, req.Capture.Modality, req.Capture.Data,
		score, req.AlgorithmVersion, s.limits.TemplateTTL)
	if err != nil {
		return nil, err
	}
	template.CaptureDeviceID = req.CaptureDeviceID
	template.CaptureMetadata = req.CaptureMetadata
	template.IsPrimary = req.SetAsPrimary

	if req.SetAsPrimary {
		if err := s.demoteCurrentPrimary(ctx, req.SubjectID, req.Capture.Modality); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Save(ctx, template); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save template")
	}
	s.cachePut(ctx, template)

	if s.metrics != nil {
		s.metrics.IncrementRegistered(template.Modality.String())
		s.metrics.ActiveTemplates.Inc()
	}
	ports.LogAudit(ctx, s.logger, s.auditPublisher, "template_registered", map[string]any{
		"template_id":   template.ID.String(),
		"subject_id":    template.SubjectID.String(),
		"modality":      template.Modality.String(),
		"quality_score": template.QualityScore,
		"quality_grade": template.QualityGrade.String(),
		"is_primary":    template.IsPrimary,
	})

	result := &models.RegistrationResult{
		TemplateID:   template.ID,
		QualityScore: template.QualityScore,
		QualityGrade: template.QualityGrade,
	}
	if template.QualityGrade == models.GradeFair {
		result.Warnings = append(result.Warnings,
			"quality grade is fair; consider re-capturing under better conditions")
	}
	return result, nil
}

func (s *Service) checkLimits(ctx context.Context, subject domain.SubjectID, modality domain.Modality) error {
	subjectTemplates, err := s.repo.Find(ctx, models.Query{SubjectID: &subject})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count subject templates")
	}
	if len(subjectTemplates) >= s.limits.MaxTemplatesPerSubject {
		s.incrementRejected("subject_limit")
		return dErrors.Newf(dErrors.CodePolicyViolation,
			"subject has reached the maximum of %d templates", s.limits.MaxTemplatesPerSubject)
	}

	modalityCount := 0
	for _, t := range subjectTemplates {
		if t.Modality == modality {
			modalityCount++
		}
	}
	if modalityCount >= s.limits.MaxTemplatesPerModality {
		s.incrementRejected("modality_limit")
		return dErrors.Newf(dErrors.CodePolicyViolation,
			"subject has reached the maximum of %d %s templates", s.limits.MaxTemplatesPerModality, modality)
	}
	return nil
}

// demoteCurrentPrimary clears the primary flag on the pair's current primary
// and parks it inactive. Caller holds the pair lock.
func (s *Service) demoteCurrentPrimary(ctx context.Context, subject domain.SubjectID, modality domain.Modality) error {
	active := models.StatusActive
	current, err := s.repo.Find(ctx, models.Query{
		SubjectID:   &subject,
		Modality:    &modality,
		Status:      &active,
		PrimaryOnly: true,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve current primary")
	}
	for _, t := range current {
		t.IsPrimary = false
		t.Status = models.StatusInactive
		t.UpdatedAt = time.Now()
		if err := s.repo.Save(ctx, t); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to demote primary template")
		}
		s.cacheInvalidate(ctx, t.ID)
		if s.metrics != nil {
			s.metrics.ActiveTemplates.Dec()
		}
	}
	return nil
}

// Revoke deletes a template. Revoking the active primary while other active
// templates of the same modality exist is a conflict: a successor must be
// promoted first. Revoking the last template of a modality always succeeds.
func (s *Service) Revoke(ctx context.Context, id domain.TemplateID) error {
	t, err := s.repo.Load(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "template not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load template")
	}

	unlock := s.lockPair(t.SubjectID, t.Modality)
	defer unlock()

	if t.IsPrimary && t.Status == models.StatusActive {
		active := models.StatusActive
		siblings, err := s.repo.Find(ctx, models.Query{
			SubjectID: &t.SubjectID,
			Modality:  &t.Modality,
			Status:    &active,
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to inspect sibling templates")
		}
		for _, sib := range siblings {
			if sib.ID != t.ID {
				return dErrors.New(dErrors.CodeConflict,
					"template is the active primary; promote another template before revoking")
			}
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "template not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete template")
	}
	s.cacheInvalidate(ctx, id)

	if s.metrics != nil {
		s.metrics.TemplatesRevoked.Inc()
		if t.Status == models.StatusActive {
			s.metrics.ActiveTemplates.Dec()
		}
	}
	ports.LogAudit(ctx, s.logger, s.auditPublisher, "template_revoked", map[string]any{
		"template_id": id.String(),
		"subject_id":  t.SubjectID.String(),
		"modality":    t.Modality.String(),
	})
	return nil
}

// GetPrimary returns the active primary template for a pair, or
// CodeNotFound when the subject has none for that modality.
func (s *Service) GetPrimary(ctx context.Context, subject domain.SubjectID, modality domain.Modality) (*models.Template, error) {
	active := models.StatusActive
	primaries, err := s.repo.Find(ctx, models.Query{
		SubjectID:   &subject,
		Modality:    &modality,
		Status:      &active,
		PrimaryOnly: true,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve primary template")
	}
	if len(primaries) == 0 {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no primary %s template for subject", modality)
	}
	s.cachePut(ctx, primaries[0])
	return primaries[0], nil
}

// Load fetches one template, read-through the cache.
func (s *Service) Load(ctx context.Context, id domain.TemplateID) (*models.Template, error) {
	if cached, err := s.cache.Get(ctx, id); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "template cache read failed", "template_id", id.String(), "error", err)
		}
	} else if cached != nil {
		return cached, nil
	}

	t, err := s.repo.Load(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "template not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load template")
	}
	s.cachePut(ctx, t)
	return t, nil
}

// Query returns a filtered snapshot, ordered by updated_at descending.
func (s *Service) Query(ctx context.Context, q models.Query) ([]*models.Template, error) {
	out, err := s.repo.Find(ctx, q)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query templates")
	}
	return out, nil
}

// RecordUsage updates a template's usage counters after a match attempt.
func (s *Service) RecordUsage(ctx context.Context, id domain.TemplateID, success bool) error {
	t, err := s.repo.Load(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "template not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load template")
	}

	unlock := s.lockPair(t.SubjectID, t.Modality)
	defer unlock()

	// Re-load under the lock so concurrent usage recordings don't lose
	// increments.
	t, err = s.repo.Load(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "template not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load template")
	}

	t.RecordUsage(success, time.Now())
	if err := s.repo.Save(ctx, t); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record template usage")
	}
	s.cachePut(ctx, t)
	return nil
}

// CleanupExpired revokes every template whose expiry precedes now. Best
// effort: one failing revoke does not abort the batch. Returns the number of
// templates actually revoked.
func (s *Service) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	all, err := s.repo.Find(ctx, models.Query{})
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to scan for expired templates")
	}

	revoked := 0
	for _, t := range all {
		if !t.IsExpired(now) {
			continue
		}
		if err := s.Revoke(ctx, t.ID); err != nil {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "expired template revoke failed",
					"template_id", t.ID.String(), "error", err)
			}
			continue
		}
		revoked++
		if s.metrics != nil {
			s.metrics.TemplatesExpired.Inc()
		}
	}
	return revoked, nil
}

// Statistics aggregates store-wide counters by modality, grade and status.
func (s *Service) Statistics(ctx context.Context) (*models.Statistics, error) {
	all, err := s.repo.Find(ctx, models.Query{})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to aggregate statistics")
	}

	stats := &models.Statistics{
		TotalTemplates:       len(all),
		ModalityDistribution: make(map[domain.Modality]int),
		GradeDistribution:    make(map[models.QualityGrade]int),
		StatusDistribution:   make(map[models.Status]int),
	}

	var usageSum, rateSum float64
	rated := 0
	for _, t := range all {
		stats.ModalityDistribution[t.Modality]++
		stats.GradeDistribution[t.QualityGrade]++
		stats.StatusDistribution[t.Status]++
		if t.Status == models.StatusActive {
			stats.ActiveTemplates++
		}
		usageSum += float64(t.UsageCount)
		if t.UsageCount > 0 {
			rateSum += t.SuccessRate
			rated++
		}
		created := t.CreatedAt
		if stats.OldestTemplate == nil || created.Before(*stats.OldestTemplate) {
			c := created
			stats.OldestTemplate = &c
		}
		if stats.NewestTemplate == nil || created.After(*stats.NewestTemplate) {
			c := created
			stats.NewestTemplate = &c
		}
	}
	if len(all) > 0 {
		stats.AverageUsageCount = round.HalfUp4(usageSum / float64(len(all)))
	}
	if rated > 0 {
		stats.AverageSuccessRate = round.HalfUp4(rateSum / float64(rated))
	}
	return stats, nil
}

func (s *Service) cachePut(ctx context.Context, t *models.Template) {
	if err := s.cache.Put(ctx, t); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "template cache write failed", "template_id", t.ID.String(), "error", err)
	}
}

func (s *Service) cacheInvalidate(ctx context.Context, id domain.TemplateID) {
	if err := s.cache.Invalidate(ctx, id); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "template cache invalidate failed", "template_id", id.String(), "error", err)
	}
}

func (s *Service) incrementRejected(reason string) {
	if s.metrics != nil {
		s.metrics.IncrementRejected(reason)
	}
}
