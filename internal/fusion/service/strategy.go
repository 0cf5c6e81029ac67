package service

import (
	"biogate/internal/fusion/models"
	"biogate/pkg/platform/round"
)

// fuser folds completed factor results into one decision. The strategy set
// is closed; fuserFor panics on anything the policy registry would already
// have rejected.
type fuser interface {
	fuse(factors []models.FactorResult, policy models.FusionPolicy) models.Decision
}

func fuserFor(strategy models.Strategy) fuser {
	switch strategy {
	case models.StrategySingleFactor:
		return singleFactorFuser{}
	case models.StrategyMultiFactor:
		return multiFactorFuser{}
	case models.StrategyAdaptive:
		return adaptiveFuser{}
	default:
		panic("unreachable: strategy not in registry: " + strategy.String())
	}
}

// weightedConfidence is the weight-normalized average confidence over the
// given factors, rounded to 4 decimals half-up.
func weightedConfidence(factors []models.FactorResult, policy models.FusionPolicy) float64 {
	var sum, weights float64
	for _, f := range factors {
		w := policy.Weight(f.Modality)
		sum += f.Confidence * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return round.HalfUp4(sum / weights)
}

func countSuccesses(factors []models.FactorResult) int {
	n := 0
	for _, f := range factors {
		if f.Decision.IsSuccess() {
			n++
		}
	}
	return n
}

type singleFactorFuser struct{}

// fuse mirrors the sole factor's decision.
func (singleFactorFuser) fuse(factors []models.FactorResult, _ models.FusionPolicy) models.Decision {
	if len(factors) == 0 {
		return models.DecisionFailure
	}
	return factors[0].Decision
}

type multiFactorFuser struct{}

func (multiFactorFuser) fuse(factors []models.FactorResult, policy models.FusionPolicy) models.Decision {
	if len(factors) == 0 {
		return models.DecisionFailure
	}
	successes := countSuccesses(factors)
	failures := len(factors) - successes

	if successes == len(factors) {
		if weightedConfidence(factors, policy) >= policy.GlobalThreshold {
			return models.DecisionSuccess
		}
		return models.DecisionInconclusive
	}
	if successes > failures {
		return models.DecisionPartialSuccess
	}
	return models.DecisionFailure
}

type adaptiveFuser struct{}

// adaptivePartialFloor is the weighted-confidence floor below which adaptive
// fusion stops granting partial success.
const adaptivePartialFloor = 0.6

func (adaptiveFuser) fuse(factors []models.FactorResult, policy models.FusionPolicy) models.Decision {
	if len(factors) == 0 {
		return models.DecisionFailure
	}
	avg := weightedConfidence(factors, policy)
	successes := countSuccesses(factors)

	if avg >= policy.GlobalThreshold && 2*successes >= len(factors) {
		return models.DecisionSuccess
	}
	if avg >= adaptivePartialFloor {
		return models.DecisionPartialSuccess
	}
	return models.DecisionFailure
}
