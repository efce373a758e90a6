// Package rater implements the settlement rater (C7): simulating a candidate
// settlement twice (once fully encoded, once with internalizable
// interactions skipped) to catch reverts and undercollateralized solvers
// before a solution is ever submitted on-chain, then scoring it.
package rater

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/cowsettle/gpv2core/pkg/settlement"
)

// InternalizationStrategy selects how internalizable interactions are
// encoded for a given simulation pass.
type InternalizationStrategy int

const (
	// EncodeAllInteractions simulates the settlement exactly as it would be
	// broadcast, verifying it is valid on its own.
	EncodeAllInteractions InternalizationStrategy = iota
	// SkipInternalizableInteraction simulates the settlement the way it will
	// actually be rated/scored, with interactions the driver trusts to
	// internalize omitted.
	SkipInternalizableInteraction
)

// SolverInfo identifies the account a settlement would be submitted from.
type SolverInfo struct {
	Account common.Address
}

// GasPrice is an EIP-1559 gas price estimate.
type GasPrice struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	BaseFeePerGas        *big.Int
}

// EffectiveGasPrice is the price actually paid per unit of gas: the base fee
// plus the priority fee, capped at the max fee per gas.
func (g GasPrice) EffectiveGasPrice() *big.Int {
	effective := new(big.Int).Add(g.BaseFeePerGas, g.MaxPriorityFeePerGas)
	if effective.Cmp(g.MaxFeePerGas) > 0 {
		return new(big.Int).Set(g.MaxFeePerGas)
	}
	return effective
}

// SimulatedTransaction records exactly what was simulated, for diagnostics
// when a settlement fails rating.
type SimulatedTransaction struct {
	Internalization InternalizationStrategy
	AccessList      gethtypes.AccessList
	To              common.Address
	From            common.Address
	Data            []byte
	MaxFeePerGas    *big.Int
	PriorityFeePerGas *big.Int
}

// Simulation bundles a simulated transaction with the settlement and solver
// that produced it.
type Simulation struct {
	Transaction SimulatedTransaction
	Settlement  *settlement.Settlement
	Solver      SolverInfo
}

// SimulationError explains why a settlement did not rate successfully:
// either the simulated transaction reverted, or the solver lacks the
// balance required to cover the gas it would spend.
type SimulationError struct {
	RevertReason string // non-empty for a revert

	InsufficientBalance bool
	Needs               *big.Int
	Has                 *big.Int
}

func (e *SimulationError) Error() string {
	if e.InsufficientBalance {
		return "settlement rater: solver balance insufficient: needs " + e.Needs.String() + ", has " + e.Has.String()
	}
	return "settlement rater: simulation reverted: " + e.RevertReason
}

// RatedSettlement is the outcome of successfully rating a settlement.
type RatedSettlement struct {
	ID             int
	Settlement     *settlement.Settlement
	Surplus        *big.Int
	EarnedFees     *big.Int
	GasEstimate    *big.Int
	GasPrice       *big.Int
	ObjectiveValue *big.Rat
	Score          *big.Int
}

// Rating is either a successfully rated settlement, or a simulation that
// failed along with the error that explains why.
type Rating struct {
	Settlement *RatedSettlement
	Failure    *Simulation
	Err        *SimulationError
}

// Succeeded reports whether this Rating carries a usable RatedSettlement.
func (r Rating) Succeeded() bool { return r.Err == nil }
