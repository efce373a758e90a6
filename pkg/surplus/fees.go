package surplus

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cowsettle/gpv2core/pkg/prices"
	"github.com/cowsettle/gpv2core/pkg/settlement"
)

// OrderExecution is the order-book's record of how one order was meant to be
// executed, matched up against the settlement's trades by signature to
// reconstruct the fee actually paid (spec §4.2).
type OrderExecution struct {
	Signature []byte

	SellToken common.Address
	BuyToken  common.Address

	// ExecutedSolverFee is the fee the solver already computed and reported,
	// denominated in sell-token atoms. Nil when the order is a limit order
	// whose fee must instead be recovered from the clearing-price gap.
	ExecutedSolverFee *big.Int

	// SolverDeterminesFee is true for limit orders: the fee is not reported
	// directly but recovered by comparing this settlement's clearing prices
	// against the order's own reference ("uniform") prices.
	SolverDeterminesFee bool
	UniformSellPrice    *big.Int
	UniformBuyPrice     *big.Int

	ExecutedAmount *big.Int
}

// matchTrade finds the trade in trades whose signature matches exec and
// that is still marked in `remaining`; the caller clears that mark so each
// execution is matched to at most one trade. For partially fillable
// orders, signature alone is not unique across fills, so the executed amount
// must match too. Index -1 means no match.
func matchTrade(trades []settlement.Trade, remaining []bool, exec OrderExecution) int {
	for i, t := range trades {
		if !remaining[i] {
			continue
		}
		if !bytes.Equal(t.Signature, exec.Signature) {
			continue
		}
		if t.Flags.PartiallyFillable() && t.ExecutedAmount.Cmp(exec.ExecutedAmount) != 0 {
			continue
		}
		return i
	}
	return -1
}

// OrderFeeNative reconstructs a single order's fee from its already matched
// trade, in native-token units. ok is false if the fee inputs are missing
// (no reported fee, or a missing or zero uniform or clearing price), or the
// fee cannot be priced into native units.
func OrderFeeNative(s *settlement.Settlement, t settlement.Trade, exec OrderExecution, extPrices prices.ExternalPrices) (*big.Rat, bool) {
	var feeInSellToken *big.Rat

	if !exec.SolverDeterminesFee {
		if exec.ExecutedSolverFee == nil {
			return nil, false
		}
		feeInSellToken = new(big.Rat).SetInt(exec.ExecutedSolverFee)
	} else {
		if exec.UniformSellPrice == nil || exec.UniformBuyPrice == nil ||
			exec.UniformSellPrice.Sign() == 0 || exec.UniformBuyPrice.Sign() == 0 {
			return nil, false
		}
		adjustedSellPrice := s.ClearingPriceFor(t.SellTokenIndex)
		adjustedBuyPrice := s.ClearingPriceFor(t.BuyTokenIndex)
		if adjustedSellPrice == nil || adjustedBuyPrice == nil ||
			adjustedSellPrice.Sign() == 0 || adjustedBuyPrice.Sign() == 0 {
			return nil, false
		}

		executed := new(big.Rat).SetInt(exec.ExecutedAmount)
		adjSell := new(big.Rat).SetInt(adjustedSellPrice)
		adjBuy := new(big.Rat).SetInt(adjustedBuyPrice)
		uniSell := new(big.Rat).SetInt(exec.UniformSellPrice)
		uniBuy := new(big.Rat).SetInt(exec.UniformBuyPrice)

		if t.Flags.IsBuy() {
			// required sell amount at this settlement's prices, minus what
			// would have been required at the order's own reference prices.
			requiredAdjusted := new(big.Rat).Mul(executed, adjBuy)
			requiredAdjusted.Quo(requiredAdjusted, adjSell)
			requiredUniform := new(big.Rat).Mul(executed, uniBuy)
			requiredUniform.Quo(requiredUniform, uniSell)
			feeInSellToken = new(big.Rat).Sub(requiredAdjusted, requiredUniform)
		} else {
			// sell amount actually spent, minus what would have sufficed at
			// the order's own reference prices.
			sellNeededUniform := new(big.Rat).Mul(executed, adjSell)
			sellNeededUniform.Quo(sellNeededUniform, adjBuy)
			sellNeededUniform.Mul(sellNeededUniform, uniBuy)
			sellNeededUniform.Quo(sellNeededUniform, uniSell)
			feeInSellToken = new(big.Rat).Sub(executed, sellNeededUniform)
		}
	}

	if feeInSellToken.Sign() < 0 {
		feeInSellToken = new(big.Rat)
	}
	return extPrices.NativeAmount(exec.SellToken, feeInSellToken)
}

// TotalFees sums every order's reconstructed fee, in native-token units,
// matching each execution to at most one trade by signature. Executions that
// cannot be matched, or whose fee cannot be priced, contribute zero.
func TotalFees(s *settlement.Settlement, executions []OrderExecution, extPrices prices.ExternalPrices) *big.Int {
	remaining := make([]bool, len(s.Trades))
	for i := range remaining {
		remaining[i] = true
	}

	total := new(big.Rat)
	for _, exec := range executions {
		idx := matchTrade(s.Trades, remaining, exec)
		if idx < 0 {
			continue
		}
		remaining[idx] = false

		if fee, ok := OrderFeeNative(s, s.Trades[idx], exec, extPrices); ok {
			total.Add(total, fee)
		}
	}
	return roundTowardZero(total)
}
