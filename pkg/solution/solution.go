// Package solution assembles the final pieces of a settlement that the
// on-chain trades themselves don't carry: the clearing-price list (with its
// ETH/WETH special case), the aggregated spender approvals, and the filter
// that distinguishes genuine user trades from liquidity the solver injected
// itself (C8).
package solution

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrMissingWethClearingPrice is returned when a settlement needs the ETH
// placeholder's price (because some user trade buys it) but the settlement
// carries no price for WETH to derive it from.
var ErrMissingWethClearingPrice = errors.New("solution: missing WETH clearing price")

// OrderClass distinguishes why a fulfillment appears in a settlement.
type OrderClass int

const (
	// ClassMarket is an ordinary market order placed by a user.
	ClassMarket OrderClass = iota
	// ClassLimit is a user's limit order.
	ClassLimit
	// ClassLiquidity is liquidity the solver injected to route a trade, not
	// something a user asked to trade.
	ClassLiquidity
	// ClassJIT is just-in-time liquidity minted solely to fill this auction.
	ClassJIT
)

// String names the class the way it is reported in metric labels, matching
// the lowercase variant names a Rust strum enum would produce.
func (c OrderClass) String() string {
	switch c {
	case ClassMarket:
		return "market"
	case ClassLimit:
		return "limit"
	case ClassLiquidity:
		return "liquidity"
	case ClassJIT:
		return "jit"
	default:
		return "unknown"
	}
}

// IsUserTrade reports whether fulfillments of this class count as trades a
// user actually placed, as opposed to solver-supplied liquidity.
func (c OrderClass) IsUserTrade() bool {
	return c == ClassMarket || c == ClassLimit
}

// Fulfillment pairs a trade's buy/sell tokens with the order class it
// fulfills, the minimum information the assembler needs about each trade.
type Fulfillment struct {
	SellToken common.Address
	BuyToken  common.Address
	Class     OrderClass
}

// UserTrades filters fulfillments down to the ones that count as user trades.
func UserTrades(fulfillments []Fulfillment) []Fulfillment {
	out := make([]Fulfillment, 0, len(fulfillments))
	for _, f := range fulfillments {
		if f.Class.IsUserTrade() {
			out = append(out, f)
		}
	}
	return out
}

// ClearingPrices produces the final emitted clearing-price map given the
// settlement's own per-token prices, the set of fulfillments, and the
// chain's ETH placeholder / WETH addresses.
//
// If any fulfillment buys the ETH placeholder, the output gets an entry for
// it equal to WETH's price (failing with ErrMissingWethClearingPrice if that
// price isn't present). The WETH entry itself is then stripped unless some
// fulfillment actually references WETH directly, since emitting a price for
// a token nothing trades costs gas for nothing.
func ClearingPrices(basePrices map[common.Address]*big.Int, fulfillments []Fulfillment, ethPlaceholder, weth common.Address) (map[common.Address]*big.Int, error) {
	out := make(map[common.Address]*big.Int, len(basePrices)+1)
	for token, price := range basePrices {
		out[token] = new(big.Int).Set(price)
	}

	needsEth := false
	usesWeth := false
	for _, f := range fulfillments {
		if f.BuyToken == ethPlaceholder {
			needsEth = true
		}
		if f.SellToken == weth || f.BuyToken == weth {
			usesWeth = true
		}
	}

	if needsEth {
		wethPrice, ok := basePrices[weth]
		if !ok {
			return nil, ErrMissingWethClearingPrice
		}
		out[ethPlaceholder] = new(big.Int).Set(wethPrice)
	}

	if !usesWeth {
		delete(out, weth)
	}

	return out, nil
}

// AllowanceRequirement is a spender's need to move amount of token, as
// determined by whatever interaction requires it.
type AllowanceRequirement struct {
	Token   common.Address
	Spender common.Address
	Amount  *big.Int
}

// spenderKey groups requirements per (token, spender) pair: a single spender
// may need allowances on several different tokens, each tracked separately.
type spenderKey struct {
	Token   common.Address
	Spender common.Address
}

// Approval is a single ERC20 approval to emit, always set to MaxApprovalAmount
// so that a spender's allowance never needs to be re-approved for a later
// settlement, at the cost of trusting the spender with an unlimited amount.
type Approval struct {
	Token   common.Address
	Spender common.Address
	Amount  *big.Int
}

// MaxApprovalAmount is the conventional "infinite approval" sentinel.
var MaxApprovalAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Allowances aggregates requirements by (token, spender) and emits one
// max-value approval per distinct pair, regardless of how many individual
// interactions needed that spender.
func Allowances(requirements []AllowanceRequirement) []Approval {
	seen := make(map[spenderKey]struct{})
	var out []Approval
	for _, req := range requirements {
		key := spenderKey{Token: req.Token, Spender: req.Spender}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Approval{Token: req.Token, Spender: req.Spender, Amount: MaxApprovalAmount})
	}
	return out
}
