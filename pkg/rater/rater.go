package rater

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/cowsettle/gpv2core/internal/logging"
	"github.com/cowsettle/gpv2core/pkg/prices"
	"github.com/cowsettle/gpv2core/pkg/settlement"
	"github.com/cowsettle/gpv2core/pkg/surplus"
)

var raterLog = logging.New("rater")

// DefaultGasLimitMargin is the headroom applied over a settlement's
// simulated gas estimate before checking the solver can afford to submit it:
// simulation traces the exact path taken on a forked node, but mainnet
// conditions can shift gas usage slightly by inclusion time.
func DefaultGasLimitMargin() *big.Rat { return big.NewRat(6, 5) }

// gasLimitForEstimate applies the margin and rounds up, since underestimating
// the required balance would defeat the point of the check.
func gasLimitForEstimate(gasEstimate *big.Int, margin *big.Rat) *big.Int {
	scaled := new(big.Rat).Mul(new(big.Rat).SetInt(gasEstimate), margin)
	limit := new(big.Int).Div(scaled.Num(), scaled.Denom())
	if new(big.Rat).SetInt(limit).Cmp(scaled) < 0 {
		limit.Add(limit, big.NewInt(1))
	}
	return limit
}

// Rater simulates and scores candidate settlements.
type Rater struct {
	AccessListEstimator AccessListEstimator
	Simulator           Simulator
	Balances            BalanceReader
	SettlementContract  common.Address

	// GasLimitMargin defaults to DefaultGasLimitMargin when nil.
	GasLimitMargin *big.Rat

	// SuccessProbabilityCap and SuccessProbabilityCostFail parameterize the
	// optimal-bid score recalculation; they default to 0.5 native-token units
	// (scaled to wei) and zero respectively when nil. See ComputeOptimalBid.
	SuccessProbabilityCap      *big.Rat
	SuccessProbabilityCostFail *big.Rat

	// History records every successfully rated settlement for audit
	// purposes. Nil disables recording.
	History RatingRecorder
}

func (r *Rater) margin() *big.Rat {
	if r.GasLimitMargin != nil {
		return r.GasLimitMargin
	}
	return DefaultGasLimitMargin()
}

// simulateOnce runs a single simulation pass for the given internalization
// strategy, tolerating an access-list estimation failure but not a
// simulation failure.
func (r *Rater) simulateOnce(ctx context.Context, solver SolverInfo, s *settlement.Settlement, gasPrice GasPrice, strategy InternalizationStrategy) (*Simulation, *big.Int, *SimulationError, error) {
	calldata, err := settlement.Encode(s)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encoding settlement: %w", err)
	}

	accessList, _ := r.AccessListEstimator.EstimateAccessList(ctx, solver.Account, r.SettlementContract, calldata)

	gasUsed, revertReason, err := r.Simulator.SimulateAndEstimateGas(ctx, solver.Account, r.SettlementContract, calldata, accessList, gasPrice)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("simulating settlement: %w", err)
	}

	sim := &Simulation{
		Transaction: SimulatedTransaction{
			Internalization:   strategy,
			AccessList:        accessList,
			To:                r.SettlementContract,
			From:              solver.Account,
			Data:              calldata,
			MaxFeePerGas:      gasPrice.MaxFeePerGas,
			PriorityFeePerGas: gasPrice.MaxPriorityFeePerGas,
		},
		Settlement: s,
		Solver:     solver,
	}

	if revertReason != "" {
		return sim, nil, &SimulationError{RevertReason: revertReason}, nil
	}
	return sim, gasUsed, nil, nil
}

// RateSettlement simulates s twice — first as it would be broadcast, then
// the way it will actually be scored with internalizable interactions
// skipped — checks the solver can afford the gas it estimates, and computes
// the settlement's surplus, fees, objective value and score.
func (r *Rater) RateSettlement(
	ctx context.Context,
	solver SolverInfo,
	s *settlement.Settlement,
	extPrices prices.ExternalPrices,
	gasPrice GasPrice,
	id int,
	executions []surplus.OrderExecution,
	score ScoreDeclaration,
	successProbability *big.Rat,
) (Rating, error) {
	firstSim, _, simErr, err := r.simulateOnce(ctx, solver, s, gasPrice, EncodeAllInteractions)
	if err != nil {
		return Rating{}, err
	}
	if simErr != nil {
		return Rating{Failure: firstSim, Err: simErr}, nil
	}

	var (
		secondSim   *Simulation
		gasEstimate *big.Int
		secondErr   *SimulationError
		simulateErr error
		solverBalance *big.Int
		balanceErr    error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		secondSim, gasEstimate, secondErr, simulateErr = r.simulateOnce(gctx, solver, s, gasPrice, SkipInternalizableInteraction)
		return simulateErr
	})
	g.Go(func() error {
		solverBalance, balanceErr = r.Balances.BalanceAt(gctx, solver.Account)
		return nil // balance lookup failure is non-fatal; treated as zero below.
	})
	if err := g.Wait(); err != nil {
		return Rating{}, err
	}
	if secondErr != nil {
		return Rating{Failure: secondSim, Err: secondErr}, nil
	}
	if balanceErr != nil || solverBalance == nil {
		solverBalance = big.NewInt(0)
	}

	effectiveGasPrice := gasPrice.EffectiveGasPrice()
	gasLimit := gasLimitForEstimate(gasEstimate, r.margin())
	requiredBalance := new(big.Int).Mul(gasLimit, gasPrice.MaxFeePerGas)
	if solverBalance.Cmp(requiredBalance) < 0 {
		return Rating{Failure: secondSim, Err: &SimulationError{
			InsufficientBalance: true,
			Needs:               requiredBalance,
			Has:                 solverBalance,
		}}, nil
	}

	earnedFees := surplus.TotalFees(s, executions, extPrices)
	surplusAmount := surplus.TotalSurplus(s, extPrices)

	gasCost := new(big.Int).Mul(gasEstimate, effectiveGasPrice)
	objectiveValue := new(big.Rat).Sub(
		new(big.Rat).Add(new(big.Rat).SetInt(surplusAmount), new(big.Rat).SetInt(earnedFees)),
		new(big.Rat).SetInt(gasCost),
	)

	resolvedScore, err := r.computeScore(score, successProbability, objectiveValue)
	if err != nil {
		return Rating{}, err
	}

	rated := RatedSettlement{
		ID:             id,
		Settlement:     s,
		Surplus:        surplusAmount,
		EarnedFees:     earnedFees,
		GasEstimate:    gasEstimate,
		GasPrice:       effectiveGasPrice,
		ObjectiveValue: objectiveValue,
		Score:          resolvedScore,
	}
	if r.History != nil {
		if err := r.History.RecordRating(rated); err != nil {
			raterLog.Warnf("recording rating for solution %d: %v", id, err)
		}
	}

	return Rating{Settlement: &rated}, nil
}

// computeScore resolves a solver's declared Score into a concrete
// native-token amount, recomputing it from a success probability when one
// was declared alongside the settlement.
func (r *Rater) computeScore(score ScoreDeclaration, successProbability *big.Rat, objectiveValue *big.Rat) (*big.Int, error) {
	base, err := score.Resolve(objectiveValue)
	if err != nil {
		return nil, err
	}
	if successProbability == nil {
		return base, nil
	}

	cap := r.SuccessProbabilityCap
	if cap == nil {
		cap = DefaultSuccessProbabilityCap()
	}
	costFail := r.SuccessProbabilityCostFail
	if costFail == nil {
		costFail = big.NewRat(0, 1)
	}

	optimal, err := ComputeOptimalBid(objectiveValue, successProbability, costFail, cap)
	if err != nil {
		// Falls back to the previously computed score rather than failing
		// the whole rating outright.
		return base, nil
	}
	return roundDownNonNegative(optimal), nil
}

func roundDownNonNegative(r *big.Rat) *big.Int {
	if r.Sign() <= 0 {
		return big.NewInt(0)
	}
	q := new(big.Int).Div(r.Num(), r.Denom())
	return q
}
