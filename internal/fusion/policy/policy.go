// Package policy holds the fusion policy registry. Policies are looked up by
// strategy name; the defaults mirror the access-control deployment profiles.
package policy

import (
	"sync"

	"biogate/internal/fusion/models"
	"biogate/pkg/domain"
	dErrors "biogate/pkg/domain-errors"
)

// Registry maps strategies to their fusion policies. Safe for concurrent
// lookup and registration.
type Registry struct {
	mu       sync.RWMutex
	policies map[models.Strategy]models.FusionPolicy
}

// NewRegistry returns a registry seeded with the default policies for every
// supported strategy.
func NewRegistry() *Registry {
	r := &Registry{policies: make(map[models.Strategy]models.FusionPolicy)}
	for _, p := range defaultPolicies() {
		r.policies[p.Strategy] = p
	}
	return r
}

// Lookup resolves the policy for a strategy. Unknown strategies are an
// unsupported-strategy domain error.
func (r *Registry) Lookup(strategy models.Strategy) (models.FusionPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[strategy]
	if !ok {
		return models.FusionPolicy{}, dErrors.Newf(dErrors.CodeUnsupportedStrategy,
			"unsupported fusion strategy: %q", strategy)
	}
	return p, nil
}

// Register installs or replaces the policy for its strategy.
func (r *Registry) Register(p models.FusionPolicy) error {
	if !p.Strategy.IsValid() {
		return dErrors.Newf(dErrors.CodeUnsupportedStrategy, "unsupported fusion strategy: %q", p.Strategy)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[p.Strategy] = p
	return nil
}

func defaultPolicies() []models.FusionPolicy {
	return []models.FusionPolicy{
		{
			Strategy:        models.StrategySingleFactor,
			Weights:         map[domain.Modality]float64{domain.ModalityFace: 1.0},
			GlobalThreshold: 0.85,
		},
		{
			Strategy: models.StrategyMultiFactor,
			Weights: map[domain.Modality]float64{
				domain.ModalityFace:        0.6,
				domain.ModalityFingerprint: 0.4,
			},
			ModalityThresholds: map[domain.Modality]float64{
				domain.ModalityFace:        0.8,
				domain.ModalityFingerprint: 0.7,
			},
			GlobalThreshold: 0.75,
			RequireLiveness: true,
		},
		{
			Strategy: models.StrategyAdaptive,
			Weights: map[domain.Modality]float64{
				domain.ModalityFace:        0.5,
				domain.ModalityFingerprint: 0.3,
				domain.ModalityIris:        0.2,
			},
			GlobalThreshold: 0.70,
			RequireLiveness: true,
		},
	}
}
