package rater

import (
	"fmt"
	"math/big"
)

// ScoreKind selects how a solver declared the score of its settlement.
type ScoreKind int

const (
	// ScoreSolver is a score the solver computed and asserts directly.
	ScoreSolver ScoreKind = iota
	// ScoreDiscount is a discount the solver asks to have subtracted from
	// the settlement's objective value.
	ScoreDiscount
	// ScoreProtocol means the solver declared no score; the protocol uses
	// the objective value itself.
	ScoreProtocol
)

// ScoreDeclaration is what a solver submits alongside a settlement to
// describe how it should be scored.
type ScoreDeclaration struct {
	Kind   ScoreKind
	Amount *big.Int // the score itself for ScoreSolver, the discount for ScoreDiscount
}

// Resolve turns a declaration into a concrete native-token score given the
// settlement's computed objective value.
func (d ScoreDeclaration) Resolve(objectiveValue *big.Rat) (*big.Int, error) {
	switch d.Kind {
	case ScoreSolver:
		if d.Amount == nil {
			return nil, fmt.Errorf("rater: solver score declared without an amount")
		}
		return new(big.Int).Set(d.Amount), nil
	case ScoreDiscount:
		if d.Amount == nil {
			return nil, fmt.Errorf("rater: discount score declared without an amount")
		}
		objective := roundDownNonNegative(objectiveValue)
		result := new(big.Int).Sub(objective, d.Amount)
		if result.Sign() < 0 {
			result = big.NewInt(0)
		}
		return result, nil
	case ScoreProtocol:
		return roundDownNonNegative(objectiveValue), nil
	default:
		return nil, fmt.Errorf("rater: unknown score kind %d", d.Kind)
	}
}

// DefaultSuccessProbabilityCap is 0.5 native-token units, expressed in wei
// (assuming an 18-decimal native token) so it sits on the same scale as the
// wei-denominated objective value it is compared against.
func DefaultSuccessProbabilityCap() *big.Rat {
	return new(big.Rat).SetInt(new(big.Int).Mul(big.NewInt(5), new(big.Int).Exp(big.NewInt(10), big.NewInt(17), nil)))
}

// payoff is the expected payoff of bidding scoreReference as the score, given
// the settlement is actually worth objective and succeeds with the given
// probability.
func payoff(scoreReference, objective, probabilitySuccess, costFail, cap *big.Rat) *big.Rat {
	probabilityFail := new(big.Rat).Sub(big.NewRat(1, 1), probabilitySuccess)

	successGain := new(big.Rat).Sub(objective, scoreReference)
	payoffSuccess := successGain
	if cap.Cmp(successGain) < 0 {
		payoffSuccess = cap
	}

	failLoss := scoreReference
	if cap.Cmp(failLoss) < 0 {
		failLoss = cap
	}
	payoffFail := new(big.Rat).Sub(new(big.Rat).Neg(failLoss), costFail)

	expectation := new(big.Rat).Add(
		new(big.Rat).Mul(probabilitySuccess, payoffSuccess),
		new(big.Rat).Mul(probabilityFail, payoffFail),
	)
	return expectation
}

// ComputeOptimalBid picks the score that maximizes a solver's expected
// payoff given the true objective value, the probability the settlement
// actually executes, the cost incurred on failure, and a cap on how large a
// single payoff leg can be.
//
// This follows the three-branch case analysis directly: bid the expected
// value (probabilitySuccess*objective - probabilityFail*costFail) when the
// payoff of bidding the objective minus the cap is non-negative while the
// payoff of bidding the cap is non-positive; shade down from the objective
// when both payoffs are positive or the first is zero; or bid the cap scaled
// by probabilitySuccess/probabilityFail, less costFail, when the payoff of
// bidding the objective minus the cap is negative but that of bidding the
// cap is positive. Those three conditions are mutually exclusive but not
// exhaustive: when both payoffs are negative (for example a success
// probability below one half with an objective of at least twice the cap),
// or the first is negative and the second zero, an invalid-bid error is
// returned.
func ComputeOptimalBid(objective, probabilitySuccess, costFail, cap *big.Rat) (*big.Rat, error) {
	if probabilitySuccess.Sign() < 0 || probabilitySuccess.Cmp(big.NewRat(1, 1)) > 0 {
		return nil, fmt.Errorf("rater: success probability must be between 0 and 1")
	}

	probabilityFail := new(big.Rat).Sub(big.NewRat(1, 1), probabilitySuccess)
	payoffObjMinusCap := payoff(new(big.Rat).Sub(objective, cap), objective, probabilitySuccess, costFail, cap)
	payoffCap := payoff(cap, objective, probabilitySuccess, costFail, cap)

	zero := big.NewRat(0, 1)
	switch {
	case payoffObjMinusCap.Cmp(zero) >= 0 && payoffCap.Cmp(zero) <= 0:
		// probabilitySuccess*objective - probabilityFail*costFail
		return new(big.Rat).Sub(
			new(big.Rat).Mul(probabilitySuccess, objective),
			new(big.Rat).Mul(probabilityFail, costFail),
		), nil
	case payoffObjMinusCap.Cmp(zero) >= 0 && payoffCap.Cmp(zero) > 0:
		// objective - probabilityFail/probabilitySuccess*(cap+costFail)
		if probabilitySuccess.Sign() == 0 {
			return nil, fmt.Errorf("rater: invalid bid: zero success probability")
		}
		ratio := new(big.Rat).Quo(probabilityFail, probabilitySuccess)
		return new(big.Rat).Sub(objective, new(big.Rat).Mul(ratio, new(big.Rat).Add(cap, costFail))), nil
	case payoffObjMinusCap.Cmp(zero) < 0 && payoffCap.Cmp(zero) > 0:
		// probabilitySuccess/probabilityFail*cap - costFail
		if probabilityFail.Sign() == 0 {
			return nil, fmt.Errorf("rater: invalid bid: zero failure probability")
		}
		ratio := new(big.Rat).Quo(probabilitySuccess, probabilityFail)
		return new(big.Rat).Sub(new(big.Rat).Mul(ratio, cap), costFail), nil
	default:
		return nil, fmt.Errorf("rater: invalid bid")
	}
}
