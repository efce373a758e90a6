// Package surplus implements per-trade surplus and per-order fee
// reconstruction (C3): turning a decoded settlement's executed amounts and
// clearing prices into native-token-denominated surplus and fee figures.
package surplus

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cowsettle/gpv2core/pkg/prices"
	"github.com/cowsettle/gpv2core/pkg/settlement"
)

// TradeSurplus computes a single trade's surplus in the counterparty token
// (buy-token units for a sell order, sell-token units for a buy order), per
// spec §4.2. ok is false when the corresponding limit amount is zero, in
// which case surplus is undefined rather than zero.
//
// Sell order: surplus = executed_sell*sell_price - (executed_sell*buy_limit/sell_limit)*buy_price,
// expressed in buy-token units by dividing through by buy_price.
//
// Buy order: surplus = (executed_buy*sell_limit/buy_limit)*sell_price - executed_buy*buy_price,
// expressed in sell-token units by dividing through by sell_price.
//
// Negative results are clamped to zero: a trade can never have negative surplus.
func TradeSurplus(t settlement.Trade, sellPrice, buyPrice *big.Int) (amount *big.Rat, ok bool) {
	if sellPrice == nil || buyPrice == nil || sellPrice.Sign() == 0 || buyPrice.Sign() == 0 {
		return nil, false
	}

	executed := new(big.Rat).SetInt(t.ExecutedAmount)
	sellLimit := new(big.Rat).SetInt(t.SellAmount)
	buyLimit := new(big.Rat).SetInt(t.BuyAmount)
	sp := new(big.Rat).SetInt(sellPrice)
	bp := new(big.Rat).SetInt(buyPrice)

	var valueSurplus *big.Rat // in price-units (amount * price)
	var dividend *big.Rat

	if t.Flags.IsBuy() {
		if buyLimit.Sign() == 0 {
			return nil, false
		}
		// (executed_buy * sell_limit / buy_limit) * sell_price - executed_buy * buy_price
		requiredSell := new(big.Rat).Mul(executed, sellLimit)
		requiredSell.Quo(requiredSell, buyLimit)
		valueSurplus = new(big.Rat).Mul(requiredSell, sp)
		valueSurplus.Sub(valueSurplus, new(big.Rat).Mul(executed, bp))
		dividend = sp
	} else {
		if sellLimit.Sign() == 0 {
			return nil, false
		}
		// executed_sell * sell_price - (executed_sell * buy_limit / sell_limit) * buy_price
		requiredBuy := new(big.Rat).Mul(executed, buyLimit)
		requiredBuy.Quo(requiredBuy, sellLimit)
		valueSurplus = new(big.Rat).Mul(executed, sp)
		valueSurplus.Sub(valueSurplus, new(big.Rat).Mul(requiredBuy, bp))
		dividend = bp
	}

	if valueSurplus.Sign() < 0 {
		return new(big.Rat), true
	}
	result := new(big.Rat).Quo(valueSurplus, dividend)
	return result, true
}

// TradeSurplusNative converts a single trade's surplus into native-token
// units, looking up the relevant token's price in extPrices. ok is false when
// the trade's limit amount is zero or the reference token has no known price.
func TradeSurplusNative(s *settlement.Settlement, t settlement.Trade, extPrices prices.ExternalPrices) (*big.Rat, bool) {
	sellPrice := s.ClearingPriceFor(t.SellTokenIndex)
	buyPrice := s.ClearingPriceFor(t.BuyTokenIndex)
	amount, ok := TradeSurplus(t, sellPrice, buyPrice)
	if !ok {
		return nil, false
	}

	var referenceToken common.Address
	if t.Flags.IsBuy() {
		referenceToken = s.TokenAt(t.SellTokenIndex)
	} else {
		referenceToken = s.TokenAt(t.BuyTokenIndex)
	}
	return extPrices.NativeAmount(referenceToken, amount)
}

// TotalSurplus sums every trade's native-unit surplus, rounding the final sum
// toward zero. Trades whose surplus cannot be computed (zero limit amount or
// unpriced token) contribute zero rather than aborting the whole settlement.
func TotalSurplus(s *settlement.Settlement, extPrices prices.ExternalPrices) *big.Int {
	total := new(big.Rat)
	for _, t := range s.Trades {
		if amount, ok := TradeSurplusNative(s, t, extPrices); ok {
			total.Add(total, amount)
		}
	}
	return roundTowardZero(total)
}

func roundTowardZero(r *big.Rat) *big.Int {
	quotient := new(big.Int).Quo(r.Num(), r.Denom())
	return quotient
}
