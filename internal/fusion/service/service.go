// Package service implements multimodal fusion authentication: per-modality
// match attempts run in parallel against enrolled templates, then a
// strategy-specific fuser folds the factor evidence into one decision.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"biogate/internal/biometric/ports"
	"biogate/internal/fusion/metrics"
	"biogate/internal/fusion/models"
	"biogate/internal/fusion/policy"
	livenessmodels "biogate/internal/liveness/models"
	templatemodels "biogate/internal/template/models"
	"biogate/pkg/domain"
	dErrors "biogate/pkg/domain-errors"
	"biogate/pkg/platform/round"
)

// Per-factor confidence blends the raw match score with the declared capture
// quality.
const (
	matchWeight   = 0.7
	qualityWeight = 0.3
)

// TemplateDirectory is the slice of the template service fusion needs.
type TemplateDirectory interface {
	GetPrimary(ctx context.Context, subject domain.SubjectID, modality domain.Modality) (*templatemodels.Template, error)
	Query(ctx context.Context, q templatemodels.Query) ([]*templatemodels.Template, error)
	RecordUsage(ctx context.Context, id domain.TemplateID, success bool) error
}

// LivenessGate screens captures for presentation attacks before matching.
type LivenessGate interface {
	Check(ctx context.Context, req livenessmodels.CheckRequest) (*livenessmodels.CheckResult, error)
}

// TokenIssuer mints an access token for a successfully authenticated subject.
type TokenIssuer interface {
	Issue(subject domain.SubjectID, strategy models.Strategy, modalities []domain.Modality, confidence float64) (string, error)
}

type Service struct {
	templates TemplateDirectory
	matcher   ports.Matcher
	policies  *policy.Registry
	tracer    trace.Tracer

	liveness       LivenessGate
	tokens         TokenIssuer
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher ports.AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithLivenessGate(gate LivenessGate) Option {
	return func(s *Service) { s.liveness = gate }
}

func WithTokenIssuer(issuer TokenIssuer) Option {
	return func(s *Service) { s.tokens = issuer }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func New(templates TemplateDirectory, matcher ports.Matcher, policies *policy.Registry, opts ...Option) (*Service, error) {
	if templates == nil {
		return nil, fmt.Errorf("template directory is required")
	}
	if matcher == nil {
		return nil, fmt.Errorf("matcher is required")
	}
	if policies == nil {
		return nil, fmt.Errorf("policy registry is required")
	}
	svc := &Service{
		templates: templates,
		matcher:   matcher,
		policies:  policies,
		tracer:    otel.Tracer("biogate/fusion"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Authenticate runs one fused authentication attempt. Structural problems
// (bad request, unknown strategy) surface as errors; everything downstream of
// validation lands in the result's decision.
func (s *Service) Authenticate(ctx context.Context, req models.AuthenticationRequest) (*models.AuthenticationResult, error) {
	ctx, span := s.tracer.Start(ctx, "fusion.authenticate")
	defer span.End()

	start := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	pol, err := s.policies.Lookup(req.Strategy)
	if err != nil {
		return nil, err
	}
	if req.Strategy == models.StrategySingleFactor && len(req.Captures) != 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "single_factor strategy takes exactly one capture")
	}
	span.SetAttributes(
		attribute.String("fusion.strategy", req.Strategy.String()),
		attribute.Int("fusion.factor_count", len(req.Captures)),
	)

	result := &models.AuthenticationResult{
		Strategy:    req.Strategy,
		EvaluatedAt: start,
	}

	if pol.RequireLiveness && s.liveness != nil {
		live, halted, err := s.screenLiveness(ctx, req, pol, result)
		if err != nil {
			return nil, err
		}
		result.Liveness = live
		if halted {
			result.Duration = time.Since(start)
			s.finish(ctx, span, req, result)
			return result, nil
		}
	}

	actx, cancel := context.WithTimeout(ctx, req.EffectiveTimeout())
	defer cancel()

	factors := make([]models.FactorResult, len(req.Captures))
	g, gctx := errgroup.WithContext(actx)
	for i, capture := range req.Captures {
		g.Go(func() error {
			factors[i] = s.authenticateFactor(gctx, capture, req.SubjectID, pol)
			return nil
		})
	}
	// Factor workers never fail the group; outcomes land in their slots.
	_ = g.Wait()
	result.Factors = factors

	completed := make([]models.FactorResult, 0, len(factors))
	for _, f := range factors {
		if f.Decision != models.DecisionTimeout {
			completed = append(completed, f)
		}
	}
	if len(completed) == 0 {
		result.Decision = models.DecisionTimeout
		result.Duration = time.Since(start)
		s.finish(ctx, span, req, result)
		return result, nil
	}

	result.Decision = fuserFor(req.Strategy).fuse(completed, pol)
	result.Confidence = weightedConfidence(completed, pol)

	if result.Decision.IsSuccess() {
		subject, ok := resolveSubject(req.SubjectID, completed)
		if !ok {
			// Success without an attributable subject cannot grant access.
			result.Decision = models.DecisionInconclusive
		} else {
			result.SubjectID = &subject
			s.issueToken(ctx, result, req)
		}
	}

	result.Duration = time.Since(start)
	s.finish(ctx, span, req, result)
	return result, nil
}

// screenLiveness runs the liveness gate over the face capture. Halted is true
// when the attempt must stop: attack evidence fails it, gate breakage is an
// error decision. Gate rejections of the capture itself (bad format, broken
// request) are the caller's fault and return as validation errors. Requests
// without a face capture skip the screen.
func (s *Service) screenLiveness(ctx context.Context, req models.AuthenticationRequest, pol models.FusionPolicy, result *models.AuthenticationResult) (live *livenessmodels.CheckResult, halted bool, err error) {
	var face *domain.Capture
	for i := range req.Captures {
		if req.Captures[i].Modality == domain.ModalityFace || req.Captures[i].Modality == domain.ModalityFace3D {
			face = &req.Captures[i]
			break
		}
	}
	if face == nil {
		return nil, false, nil
	}

	level := req.SecurityLevel
	if pol.LivenessSecurityMin > level {
		level = pol.LivenessSecurityMin
	}
	live, err = s.liveness.Check(ctx, livenessmodels.CheckRequest{
		SubjectID:     req.SubjectID,
		Capture:       *face,
		SecurityLevel: level,
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) || dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			return nil, false, err
		}
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "liveness screen failed", "error", err)
		}
		result.Decision = models.DecisionError
		return nil, true, nil
	}
	if !live.IsLive() {
		result.Decision = models.DecisionFailure
		return live, true, nil
	}
	return live, false, nil
}

// authenticateFactor matches one capture against the subject's primary
// template (1:1) or the best candidate primary across subjects (1:N).
// Matcher breakage becomes an error decision, never a returned error.
func (s *Service) authenticateFactor(ctx context.Context, capture domain.Capture, hint *domain.SubjectID, pol models.FusionPolicy) models.FactorResult {
	start := time.Now()
	result := models.FactorResult{
		Modality:  capture.Modality,
		Threshold: pol.Threshold(capture.Modality),
	}
	defer func() { result.Duration = time.Since(start) }()

	candidates, err := s.candidateTemplates(ctx, capture.Modality, hint)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result.Decision = models.DecisionTimeout
			result.Error = "factor timed out"
			return result
		}
		result.Decision = models.DecisionFailure
		result.Error = err.Error()
		return result
	}

	var (
		best      *templatemodels.Template
		bestScore float64
	)
	for _, tmpl := range candidates {
		score, err := s.matcher.Compare(ctx, capture, tmpl)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				result.Decision = models.DecisionTimeout
				result.Error = "factor timed out"
				return result
			}
			result.Decision = models.DecisionError
			result.Error = fmt.Sprintf("matcher failed: %v", err)
			return result
		}
		if best == nil || score > bestScore {
			best, bestScore = tmpl, score
		}
	}

	result.MatchScore = round.HalfUp4(bestScore)
	result.Confidence = round.HalfUp4(matchWeight*bestScore + qualityWeight*capture.Quality)
	result.TemplateID = &best.ID
	result.SubjectID = &best.SubjectID
	if result.Confidence >= result.Threshold {
		result.Decision = models.DecisionSuccess
	} else {
		result.Decision = models.DecisionFailure
	}

	if err := s.templates.RecordUsage(ctx, best.ID, result.Decision.IsSuccess()); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "usage recording failed",
			"template_id", best.ID.String(), "error", err)
	}
	if s.metrics != nil && !result.Decision.IsSuccess() {
		s.metrics.FactorFailures.WithLabelValues(capture.Modality.String(), result.Decision.String()).Inc()
	}
	return result
}

// candidateTemplates resolves which templates a factor may match against.
func (s *Service) candidateTemplates(ctx context.Context, modality domain.Modality, hint *domain.SubjectID) ([]*templatemodels.Template, error) {
	if hint != nil {
		tmpl, err := s.templates.GetPrimary(ctx, *hint, modality)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return nil, dErrors.Newf(dErrors.CodeNotFound, "no enrolled %s template for subject", modality)
			}
			return nil, err
		}
		return []*templatemodels.Template{tmpl}, nil
	}

	active := templatemodels.StatusActive
	candidates, err := s.templates.Query(ctx, templatemodels.Query{
		Modality:    &modality,
		Status:      &active,
		PrimaryOnly: true,
	})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no enrolled %s templates", modality)
	}
	return candidates, nil
}

// resolveSubject attributes a successful attempt. The hint wins outright;
// otherwise the candidate subject with the highest cumulative confidence over
// successful factors is picked, with a lexicographic tiebreak for
// determinism.
func resolveSubject(hint *domain.SubjectID, factors []models.FactorResult) (domain.SubjectID, bool) {
	if hint != nil {
		return *hint, true
	}

	cumulative := make(map[domain.SubjectID]float64)
	for _, f := range factors {
		if f.Decision.IsSuccess() && f.SubjectID != nil {
			cumulative[*f.SubjectID] += f.Confidence
		}
	}
	if len(cumulative) == 0 {
		return domain.SubjectID{}, false
	}

	var (
		winner domain.SubjectID
		top    float64
		found  bool
	)
	for subject, total := range cumulative {
		if !found || total > top || (total == top && subject.String() < winner.String()) {
			winner, top, found = subject, total, true
		}
	}
	return winner, true
}

func (s *Service) issueToken(ctx context.Context, result *models.AuthenticationResult, req models.AuthenticationRequest) {
	if s.tokens == nil || result.SubjectID == nil {
		return
	}
	modalities := make([]domain.Modality, 0, len(result.Factors))
	for _, f := range result.Factors {
		if f.Decision.IsSuccess() {
			modalities = append(modalities, f.Modality)
		}
	}
	token, err := s.tokens.Issue(*result.SubjectID, req.Strategy, modalities, result.Confidence)
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "token issuance failed",
				"subject_id", result.SubjectID.String(), "error", err)
		}
		return
	}
	result.AccessToken = token
	if s.metrics != nil {
		s.metrics.TokensIssued.Inc()
	}
}

func (s *Service) finish(ctx context.Context, span trace.Span, req models.AuthenticationRequest, result *models.AuthenticationResult) {
	span.SetAttributes(
		attribute.String("fusion.decision", result.Decision.String()),
		attribute.Float64("fusion.confidence", result.Confidence),
	)
	if s.metrics != nil {
		s.metrics.ObserveAttempt(req.Strategy.String(), result.Decision.String(), result.Duration.Seconds())
	}
	fields := map[string]any{
		"strategy":   req.Strategy.String(),
		"decision":   result.Decision.String(),
		"confidence": result.Confidence,
		"factors":    len(result.Factors),
	}
	if result.SubjectID != nil {
		fields["subject_id"] = result.SubjectID.String()
	}
	ports.LogAudit(ctx, s.logger, s.auditPublisher, "authentication_attempt", fields)
}
