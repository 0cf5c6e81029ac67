// Package models defines the multimodal fusion domain: strategies, policies,
// authentication requests and the per-factor and fused results.
package models

import (
	"time"

	livenessmodels "biogate/internal/liveness/models"
	"biogate/pkg/domain"
	dErrors "biogate/pkg/domain-errors"
)

// Strategy selects how factor results are fused into one decision.
type Strategy string

const (
	StrategySingleFactor Strategy = "single_factor"
	StrategyMultiFactor  Strategy = "multi_factor"
	StrategyAdaptive     Strategy = "adaptive"
)

// IsValid checks if the strategy is one of the supported enum values.
func (s Strategy) IsValid() bool {
	switch s {
	case StrategySingleFactor, StrategyMultiFactor, StrategyAdaptive:
		return true
	}
	return false
}

// String returns the string representation.
func (s Strategy) String() string {
	return string(s)
}

// ParseStrategy converts a string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(s)
	if !st.IsValid() {
		return "", dErrors.Newf(dErrors.CodeUnsupportedStrategy, "unsupported fusion strategy: %q", s)
	}
	return st, nil
}

// Decision is the fused or per-factor authentication outcome.
type Decision string

const (
	DecisionSuccess        Decision = "success"
	DecisionFailure        Decision = "failure"
	DecisionPartialSuccess Decision = "partial_success"
	DecisionInconclusive   Decision = "inconclusive"
	DecisionTimeout        Decision = "timeout"
	DecisionError          Decision = "error"
)

// String returns the string representation.
func (d Decision) String() string {
	return string(d)
}

// IsSuccess reports whether the decision grants access.
func (d Decision) IsSuccess() bool {
	return d == DecisionSuccess
}

// DefaultWeight applies to modalities a policy does not weight explicitly.
const DefaultWeight = 1.0

// FusionPolicy parameterizes one strategy: per-modality weights, per-modality
// decision thresholds and the global threshold the fused confidence must
// clear.
type FusionPolicy struct {
	Strategy            Strategy                    `json:"strategy"`
	Weights             map[domain.Modality]float64 `json:"weights"`
	ModalityThresholds  map[domain.Modality]float64 `json:"modality_thresholds,omitempty"`
	GlobalThreshold     float64                     `json:"global_threshold"`
	RequireLiveness     bool                        `json:"require_liveness"`
	LivenessSecurityMin float64                     `json:"liveness_security_min,omitempty"`
}

// Weight returns the modality's fusion weight, defaulting to 1.0 when the
// policy does not pin one.
func (p FusionPolicy) Weight(m domain.Modality) float64 {
	if w, ok := p.Weights[m]; ok {
		return w
	}
	return DefaultWeight
}

// Threshold returns the per-modality decision threshold, falling back to the
// global threshold.
func (p FusionPolicy) Threshold(m domain.Modality) float64 {
	if t, ok := p.ModalityThresholds[m]; ok {
		return t
	}
	return p.GlobalThreshold
}

// DefaultRequestTimeout bounds one authentication attempt when the request
// does not carry its own budget.
const DefaultRequestTimeout = 30 * time.Second

// AuthenticationRequest asks for a fused decision over one capture per
// modality. SubjectID, when set, turns the attempt into 1:1 verification;
// absent, candidates are resolved per modality (1:N).
type AuthenticationRequest struct {
	SubjectID     *domain.SubjectID `json:"subject_id,omitempty"`
	Strategy      Strategy          `json:"strategy"`
	Captures      []domain.Capture  `json:"captures"`
	Timeout       time.Duration     `json:"timeout,omitempty"`
	SecurityLevel float64           `json:"security_level,omitempty"`
}

// Validate rejects structurally broken authentication requests.
func (r AuthenticationRequest) Validate() error {
	if r.Strategy == "" {
		return dErrors.New(dErrors.CodeValidation, "strategy cannot be empty")
	}
	if len(r.Captures) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one capture is required")
	}
	seen := make(map[domain.Modality]struct{}, len(r.Captures))
	for _, c := range r.Captures {
		if err := c.Validate(); err != nil {
			return err
		}
		if _, dup := seen[c.Modality]; dup {
			return dErrors.Newf(dErrors.CodeValidation, "duplicate capture for modality %s", c.Modality)
		}
		seen[c.Modality] = struct{}{}
	}
	if r.Timeout < 0 {
		return dErrors.New(dErrors.CodeValidation, "timeout cannot be negative")
	}
	return nil
}

// EffectiveTimeout returns the request budget, defaulted when unset.
func (r AuthenticationRequest) EffectiveTimeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return DefaultRequestTimeout
}

// FactorResult is the outcome of one per-modality match attempt.
type FactorResult struct {
	Modality   domain.Modality    `json:"modality"`
	Decision   Decision           `json:"decision"`
	MatchScore float64            `json:"match_score"`
	Confidence float64            `json:"confidence"`
	Threshold  float64            `json:"threshold"`
	TemplateID *domain.TemplateID `json:"template_id,omitempty"`
	SubjectID  *domain.SubjectID  `json:"subject_id,omitempty"`
	Duration   time.Duration      `json:"duration"`
	Error      string             `json:"error,omitempty"`
}

// AuthenticationResult is the fused outcome of one attempt.
type AuthenticationResult struct {
	Decision    Decision                    `json:"decision"`
	Confidence  float64                     `json:"confidence"`
	Strategy    Strategy                    `json:"strategy"`
	SubjectID   *domain.SubjectID           `json:"subject_id,omitempty"`
	Factors     []FactorResult              `json:"factors"`
	Liveness    *livenessmodels.CheckResult `json:"liveness,omitempty"`
	AccessToken string                      `json:"access_token,omitempty"`
	EvaluatedAt time.Time                   `json:"evaluated_at"`
	Duration    time.Duration               `json:"duration"`
}
