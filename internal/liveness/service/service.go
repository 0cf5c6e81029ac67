// Package service runs presentation-attack detection: a configurable set of
// independent challenge tests evaluated in parallel against one capture, with
// rule-based attack classification over the gathered evidence.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"biogate/internal/biometric/ports"
	"biogate/internal/liveness/metrics"
	"biogate/internal/liveness/models"
	"biogate/pkg/domain"
	dErrors "biogate/pkg/domain-errors"
	"biogate/pkg/platform/round"
)

// HighSecurityCutoff is the security level at which the high-security
// detection profile takes over.
const HighSecurityCutoff = 0.8

type Service struct {
	provider ports.LivenessEvidenceProvider
	tracer   trace.Tracer

	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher ports.AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func New(provider ports.LivenessEvidenceProvider, opts ...Option) (*Service, error) {
	if provider == nil {
		return nil, fmt.Errorf("liveness evidence provider is required")
	}
	svc := &Service{
		provider: provider,
		tracer:   otel.Tracer("biogate/liveness"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// SelectConfig resolves the detection profile for a security level.
func SelectConfig(securityLevel float64) models.DetectionConfig {
	if securityLevel >= HighSecurityCutoff {
		return models.HighSecurityConfig()
	}
	return models.StandardConfig()
}

// Check runs the liveness pipeline for one capture: validate, select the
// profile, run every test in parallel under its own time budget, classify
// attacks and aggregate the verdict.
func (s *Service) Check(ctx context.Context, req models.CheckRequest) (*models.CheckResult, error) {
	ctx, span := s.tracer.Start(ctx, "liveness.check")
	defer span.End()

	start := time.Now()
	session := models.NewSession(uuid.NewString(), start)
	span.SetAttributes(attribute.String("liveness.session_id", session.ID))

	if err := session.Advance(models.SessionValidating); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cfg := SelectConfig(req.SecurityLevel)
	session.Config = cfg
	if !cfg.FormatSupported(req.Capture.Format) {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput,
			"capture format %q is not supported by the %s profile", req.Capture.Format, cfg.Profile)
	}
	tests := cfg.Tests
	if len(req.Tests) > 0 {
		tests = req.Tests
	}
	if len(tests) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "no liveness tests requested")
	}

	var warnings []string
	if req.Capture.Quality < cfg.MinQuality {
		warnings = append(warnings, fmt.Sprintf(
			"capture quality %.2f below profile minimum %.2f", req.Capture.Quality, cfg.MinQuality))
	}

	if err := session.Advance(models.SessionRunning); err != nil {
		return nil, err
	}

	results := make([]models.TestResult, len(tests))
	g, gctx := errgroup.WithContext(ctx)
	for i, test := range tests {
		g.Go(func() error {
			results[i] = s.runTest(gctx, test, req.Capture, cfg)
			return nil
		})
	}
	// Workers never return errors; per-test failures land in their slot.
	_ = g.Wait()

	if err := session.Advance(models.SessionAggregating); err != nil {
		return nil, err
	}

	attacks := classifyAttacks(results)
	verdict := aggregate(results, attacks)
	score := overallScore(results)

	if err := session.Advance(models.SessionDone); err != nil {
		return nil, err
	}

	result := &models.CheckResult{
		SessionID:       session.ID,
		Verdict:         verdict,
		OverallScore:    score,
		Profile:         cfg.Profile,
		TestResults:     results,
		DetectedAttacks: attacks,
		Warnings:        warnings,
		EvaluatedAt:     start,
		Duration:        time.Since(start),
	}

	span.SetAttributes(
		attribute.String("liveness.verdict", verdict.String()),
		attribute.Float64("liveness.overall_score", score),
	)
	if s.metrics != nil {
		s.metrics.ObserveCheck(verdict.String(), result.Duration.Seconds())
		for _, a := range attacks {
			s.metrics.IncrementAttack(a.String())
		}
	}
	ports.LogAudit(ctx, s.logger, s.auditPublisher, "liveness_check", map[string]any{
		"session_id":       session.ID,
		"profile":          cfg.Profile,
		"verdict":          verdict.String(),
		"overall_score":    score,
		"detected_attacks": attackStrings(attacks),
	})
	return result, nil
}

// runTest evaluates one challenge under its own time budget. Failures stay
// inside the result; the pipeline never aborts on a single test.
func (s *Service) runTest(ctx context.Context, test models.TestType, capture domain.Capture, cfg models.DetectionConfig) models.TestResult {
	result := models.TestResult{
		Test:      test,
		Quality:   capture.Quality,
		Threshold: cfg.Threshold(test),
	}

	start := time.Now()
	tctx, cancel := context.WithTimeout(ctx, cfg.Timeout(test))
	defer cancel()

	evidence, err := s.provider.Evaluate(tctx, test, capture)
	result.Duration = time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			result.Verdict = models.VerdictTimeout
		} else {
			result.Verdict = models.VerdictError
		}
		result.Error = err.Error()
		if s.logger != nil {
			s.logger.WarnContext(ctx, "liveness test did not complete",
				"test", test.String(), "verdict", result.Verdict.String(), "error", err)
		}
		return result
	}

	result.Confidence = round.HalfUp4(evidence.Confidence)
	result.Details = evidence.Details
	if result.Confidence >= result.Threshold {
		result.Verdict = models.VerdictPass
	} else {
		result.Verdict = models.VerdictFail
		if s.metrics != nil {
			s.metrics.TestFailures.WithLabelValues(test.String()).Inc()
		}
	}
	return result
}

func classifyAttacks(results []models.TestResult) []models.AttackType {
	conf := make(map[models.TestType]float64, len(results))
	for _, r := range results {
		if r.Verdict == models.VerdictPass || r.Verdict == models.VerdictFail {
			conf[r.Test] = r.Confidence
		}
	}
	below := func(test models.TestType, threshold float64) bool {
		c, ok := conf[test]
		return ok && c < threshold
	}

	var attacks []models.AttackType
	if below(models.TestTextureAnalysis, 0.5) && below(models.TestReflectionAnalysis, 0.6) {
		attacks = append(attacks, models.AttackPhoto, models.AttackScreenReplay)
	}
	if below(models.TestBlinkDetection, 0.4) && below(models.TestHeadMovement, 0.5) {
		attacks = append(attacks, models.AttackVideo)
	}
	if below(models.TestDepthAnalysis, 0.6) && below(models.TestInfraredDetection, 0.7) {
		attacks = append(attacks, models.AttackMask)
	}
	return attacks
}

// aggregate derives the overall verdict. Attack evidence always fails the
// check; provider errors dominate everything except attacks; timeouts count
// as negative evidence, never as errors.
func aggregate(results []models.TestResult, attacks []models.AttackType) models.Verdict {
	if len(attacks) > 0 {
		return models.VerdictFail
	}
	passed, failed := 0, 0
	for _, r := range results {
		switch r.Verdict {
		case models.VerdictError:
			return models.VerdictError
		case models.VerdictPass:
			passed++
		case models.VerdictFail, models.VerdictTimeout:
			failed++
		}
	}
	if passed == len(results) {
		return models.VerdictPass
	}
	if failed*2 > len(results) {
		return models.VerdictFail
	}
	return models.VerdictInconclusive
}

// overallScore is the arithmetic mean of every per-test confidence. Tests
// that errored or timed out contribute their zero confidence.
func overallScore(results []models.TestResult) float64 {
	if len(results) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range results {
		sum += r.Confidence
	}
	return round.HalfUp4(sum / float64(len(results)))
}

func attackStrings(attacks []models.AttackType) []string {
	out := make([]string, len(attacks))
	for i, a := range attacks {
		out[i] = a.String()
	}
	return out
}
