package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"biogate/internal/fusion/models"
	"biogate/internal/fusion/policy"
	"biogate/pkg/domain"
)

func multiFactorPolicy(t *testing.T) models.FusionPolicy {
	t.Helper()
	pol, err := policy.NewRegistry().Lookup(models.StrategyMultiFactor)
	assert.NoError(t, err)
	return pol
}

func factor(m domain.Modality, decision models.Decision, confidence float64) models.FactorResult {
	return models.FactorResult{Modality: m, Decision: decision, Confidence: confidence}
}

func TestMultiFactorFuse(t *testing.T) {
	pol := multiFactorPolicy(t)

	t.Run("all succeed above global threshold", func(t *testing.T) {
		factors := []models.FactorResult{
			factor(domain.ModalityFace, models.DecisionSuccess, 0.90),
			factor(domain.ModalityFingerprint, models.DecisionSuccess, 0.80),
		}
		// 0.9*0.6 + 0.8*0.4 = 0.86
		assert.Equal(t, 0.86, weightedConfidence(factors, pol))
		assert.Equal(t, models.DecisionSuccess, multiFactorFuser{}.fuse(factors, pol))
	})

	t.Run("all succeed below global threshold is inconclusive", func(t *testing.T) {
		weak := models.FusionPolicy{
			Strategy:        models.StrategyMultiFactor,
			Weights:         pol.Weights,
			GlobalThreshold: 0.95,
		}
		factors := []models.FactorResult{
			factor(domain.ModalityFace, models.DecisionSuccess, 0.90),
			factor(domain.ModalityFingerprint, models.DecisionSuccess, 0.80),
		}
		assert.Equal(t, models.DecisionInconclusive, multiFactorFuser{}.fuse(factors, weak))
	})

	t.Run("even split is failure", func(t *testing.T) {
		factors := []models.FactorResult{
			factor(domain.ModalityFace, models.DecisionFailure, 0.60),
			factor(domain.ModalityFingerprint, models.DecisionSuccess, 0.80),
		}
		assert.Equal(t, models.DecisionFailure, multiFactorFuser{}.fuse(factors, pol))
	})

	t.Run("majority success is partial", func(t *testing.T) {
		factors := []models.FactorResult{
			factor(domain.ModalityFace, models.DecisionSuccess, 0.90),
			factor(domain.ModalityFingerprint, models.DecisionSuccess, 0.85),
			factor(domain.ModalityIris, models.DecisionFailure, 0.40),
		}
		assert.Equal(t, models.DecisionPartialSuccess, multiFactorFuser{}.fuse(factors, pol))
	})

	t.Run("zero factors is failure", func(t *testing.T) {
		assert.Equal(t, models.DecisionFailure, multiFactorFuser{}.fuse(nil, pol))
	})

	t.Run("deterministic over repeated invocation", func(t *testing.T) {
		factors := []models.FactorResult{
			factor(domain.ModalityFace, models.DecisionSuccess, 0.90),
			factor(domain.ModalityFingerprint, models.DecisionSuccess, 0.80),
		}
		first := multiFactorFuser{}.fuse(factors, pol)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, multiFactorFuser{}.fuse(factors, pol))
			assert.Equal(t, 0.86, weightedConfidence(factors, pol))
		}
	})
}

func TestSingleFactorFuse(t *testing.T) {
	pol := models.FusionPolicy{Strategy: models.StrategySingleFactor, GlobalThreshold: 0.85}

	assert.Equal(t, models.DecisionSuccess,
		singleFactorFuser{}.fuse([]models.FactorResult{factor(domain.ModalityFace, models.DecisionSuccess, 0.9)}, pol))
	assert.Equal(t, models.DecisionFailure,
		singleFactorFuser{}.fuse([]models.FactorResult{factor(domain.ModalityFace, models.DecisionFailure, 0.5)}, pol))
	assert.Equal(t, models.DecisionError,
		singleFactorFuser{}.fuse([]models.FactorResult{factor(domain.ModalityFace, models.DecisionError, 0)}, pol))
	assert.Equal(t, models.DecisionFailure, singleFactorFuser{}.fuse(nil, pol))
}

func TestAdaptiveFuse(t *testing.T) {
	pol, err := policy.NewRegistry().Lookup(models.StrategyAdaptive)
	assert.NoError(t, err)

	t.Run("succeeds when average clears threshold and half the factors pass", func(t *testing.T) {
		factors := []models.FactorResult{
			factor(domain.ModalityFace, models.DecisionSuccess, 0.90),
			factor(domain.ModalityFingerprint, models.DecisionFailure, 0.60),
		}
		// (0.9*0.5 + 0.6*0.3) / 0.8 = 0.7875 >= 0.70, 1 of 2 succeeded
		assert.Equal(t, models.DecisionSuccess, adaptiveFuser{}.fuse(factors, pol))
	})

	t.Run("partial when average in the middle band", func(t *testing.T) {
		factors := []models.FactorResult{
			factor(domain.ModalityFace, models.DecisionFailure, 0.65),
			factor(domain.ModalityFingerprint, models.DecisionFailure, 0.60),
		}
		// (0.65*0.5 + 0.6*0.3) / 0.8 = 0.6313: below 0.70, above 0.6
		assert.Equal(t, models.DecisionPartialSuccess, adaptiveFuser{}.fuse(factors, pol))
	})

	t.Run("fails below the partial floor", func(t *testing.T) {
		factors := []models.FactorResult{
			factor(domain.ModalityFace, models.DecisionFailure, 0.30),
			factor(domain.ModalityFingerprint, models.DecisionFailure, 0.40),
		}
		assert.Equal(t, models.DecisionFailure, adaptiveFuser{}.fuse(factors, pol))
	})

	t.Run("high average without enough successes is not success", func(t *testing.T) {
		factors := []models.FactorResult{
			factor(domain.ModalityFace, models.DecisionFailure, 0.90),
			factor(domain.ModalityFingerprint, models.DecisionFailure, 0.85),
			factor(domain.ModalityIris, models.DecisionSuccess, 0.80),
		}
		assert.Equal(t, models.DecisionPartialSuccess, adaptiveFuser{}.fuse(factors, pol))
	})
}

func TestWeightedConfidenceDefaultWeight(t *testing.T) {
	pol := models.FusionPolicy{Strategy: models.StrategyAdaptive, GlobalThreshold: 0.7}

	factors := []models.FactorResult{
		factor(domain.ModalityVoice, models.DecisionSuccess, 0.8),
		factor(domain.ModalityPalmprint, models.DecisionSuccess, 0.6),
	}
	// Unweighted modalities default to 1.0 each.
	assert.Equal(t, 0.7, weightedConfidence(factors, pol))
}
