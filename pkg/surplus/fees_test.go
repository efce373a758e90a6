package surplus

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cowsettle/gpv2core/pkg/prices"
	"github.com/cowsettle/gpv2core/pkg/settlement"
)

func tradeWithSig(sig []byte, t settlement.Trade) settlement.Trade {
	t.Signature = sig
	return t
}

// A solver-reported fee is used directly, converted into native units.
func TestTotalFeesUsesReportedFeeDirectly(t *testing.T) {
	s := &settlement.Settlement{
		Tokens:         []common.Address{sellToken, buyToken},
		ClearingPrices: []*big.Int{big.NewInt(1), big.NewInt(1)},
		Trades:         []settlement.Trade{tradeWithSig([]byte{0xaa}, sellOrderTrade(100, 100, 50))},
	}
	ext := prices.New(native, map[common.Address]*big.Int{sellToken: prices.Denominator})

	execs := []OrderExecution{{
		Signature:         []byte{0xaa},
		SellToken:         sellToken,
		BuyToken:          buyToken,
		ExecutedSolverFee: big.NewInt(10),
	}}

	total := TotalFees(s, execs, ext)
	assert.Equal(t, big.NewInt(10), total)
}

// Unmatched executions (no trade with a matching signature) contribute zero
// rather than erroring out the whole batch.
func TestTotalFeesSkipsUnmatchedExecutions(t *testing.T) {
	s := &settlement.Settlement{
		Tokens:         []common.Address{sellToken, buyToken},
		ClearingPrices: []*big.Int{big.NewInt(1), big.NewInt(1)},
		Trades:         []settlement.Trade{tradeWithSig([]byte{0xaa}, sellOrderTrade(100, 100, 50))},
	}
	ext := prices.New(native, map[common.Address]*big.Int{sellToken: prices.Denominator})

	execs := []OrderExecution{{
		Signature:         []byte{0xbb}, // does not match any trade
		SellToken:         sellToken,
		ExecutedSolverFee: big.NewInt(10),
	}}

	total := TotalFees(s, execs, ext)
	assert.Equal(t, big.NewInt(0), total)
}

// Each execution is matched to at most one trade: two trades sharing a
// signature prefix must not let one execution double-count.
func TestTotalFeesMatchesEachExecutionAtMostOnce(t *testing.T) {
	trades := []settlement.Trade{
		tradeWithSig([]byte{0xaa}, sellOrderTrade(100, 100, 50)),
		tradeWithSig([]byte{0xaa}, sellOrderTrade(100, 100, 50)),
	}
	s := &settlement.Settlement{
		Tokens:         []common.Address{sellToken, buyToken},
		ClearingPrices: []*big.Int{big.NewInt(1), big.NewInt(1)},
		Trades:         trades,
	}
	ext := prices.New(native, map[common.Address]*big.Int{sellToken: prices.Denominator})

	execs := []OrderExecution{{
		Signature:         []byte{0xaa},
		SellToken:         sellToken,
		ExecutedSolverFee: big.NewInt(10),
	}}

	total := TotalFees(s, execs, ext)
	assert.Equal(t, big.NewInt(10), total) // only one trade consumed, not both
}

// A partially fillable order's signature is not unique across its own
// fills: matchTrade must also compare executed amount, not bind to whichever
// same-signature trade happens to be first unconsumed.
func TestMatchTradeComparesExecutedAmountForPartiallyFillableOrders(t *testing.T) {
	partiallyFillable := settlement.NewTradeFlags(big.NewInt(2)) // bit1 set, bit0 clear (sell)

	firstFill := tradeWithSig([]byte{0xdd}, sellOrderTrade(40, 100, 50))
	firstFill.Flags = partiallyFillable
	secondFill := tradeWithSig([]byte{0xdd}, sellOrderTrade(60, 100, 50))
	secondFill.Flags = partiallyFillable

	trades := []settlement.Trade{firstFill, secondFill}
	remaining := []bool{true, true}

	// Same signature as both trades, but executed amount only matches the
	// second fill. Without the amount check this would wrongly bind to the
	// first unconsumed same-signature trade (index 0).
	exec := OrderExecution{Signature: []byte{0xdd}, ExecutedAmount: big.NewInt(60)}

	idx := matchTrade(trades, remaining, exec)
	assert.Equal(t, 1, idx)
}

// Non-partially-fillable orders keep matching on signature alone: executed
// amount need not even be populated on the execution record.
func TestMatchTradeIgnoresExecutedAmountWhenNotPartiallyFillable(t *testing.T) {
	trades := []settlement.Trade{tradeWithSig([]byte{0xee}, sellOrderTrade(100, 100, 50))}
	remaining := []bool{true}

	exec := OrderExecution{Signature: []byte{0xee}, ExecutedAmount: big.NewInt(999)}

	idx := matchTrade(trades, remaining, exec)
	assert.Equal(t, 0, idx)
}

// A limit order's fee is recovered from the gap between this settlement's
// clearing prices and the order's own reference prices, not reported
// directly.
func TestTotalFeesRecoversLimitOrderFeeFromPriceGap(t *testing.T) {
	trade := tradeWithSig([]byte{0xcc}, buyOrderTrade(50, 100, 50))
	s := &settlement.Settlement{
		Tokens:         []common.Address{sellToken, buyToken},
		ClearingPrices: []*big.Int{big.NewInt(1), big.NewInt(2)}, // adjusted prices
		Trades:         []settlement.Trade{trade},
	}
	ext := prices.New(native, map[common.Address]*big.Int{sellToken: prices.Denominator})

	execs := []OrderExecution{{
		Signature:           []byte{0xcc},
		SellToken:           sellToken,
		BuyToken:            buyToken,
		SolverDeterminesFee: true,
		UniformSellPrice:    big.NewInt(1), // reference prices imply a cheaper fill
		UniformBuyPrice:     big.NewInt(1),
		ExecutedAmount:      big.NewInt(50),
	}}

	total := TotalFees(s, execs, ext)
	require.NotNil(t, total)
	assert.True(t, total.Sign() > 0)
}
