// Package prices implements the external-price oracle snapshot (C4): a
// token-to-native-token price map plus the conversion helper surplus/fee math
// and the settlement rater use to express everything in native-token units.
package prices

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Denominator is the fixed-point scale of every price in the map: price[t]
// is the native-token-wei value of one atom (smallest unit) of token t,
// multiplied by Denominator. The native pseudo-token therefore always maps to
// exactly Denominator (spec §3: "the native token maps to 1 in its own unit").
var Denominator = new(big.Int).SetUint64(1_000_000_000_000_000_000) // 1e18

// ExternalPrices is an immutable snapshot of token prices in the native
// reference unit, as observed at auction time.
type ExternalPrices struct {
	native common.Address
	byToken map[common.Address]*big.Int
}

// New builds an ExternalPrices snapshot. The native token's own entry is set
// to Denominator regardless of what (if anything) the caller supplied, since
// by definition the native token is worth exactly itself.
func New(native common.Address, raw map[common.Address]*big.Int) ExternalPrices {
	byToken := make(map[common.Address]*big.Int, len(raw)+1)
	for token, price := range raw {
		byToken[token] = new(big.Int).Set(price)
	}
	byToken[native] = new(big.Int).Set(Denominator)
	return ExternalPrices{native: native, byToken: byToken}
}

// Native returns the native pseudo-token address this snapshot is relative to.
func (p ExternalPrices) Native() common.Address {
	return p.native
}

// Price returns the raw price entry for a token and whether one was found.
func (p ExternalPrices) Price(token common.Address) (*big.Int, bool) {
	v, ok := p.byToken[token]
	return v, ok
}

// NativeAmount converts an amount of `token` (in token atoms, as an exact
// rational to preserve precision across chained conversions) into native-unit
// atoms. Returns false if no price is known for the token.
func (p ExternalPrices) NativeAmount(token common.Address, amount *big.Rat) (*big.Rat, bool) {
	price, ok := p.byToken[token]
	if !ok {
		return nil, false
	}
	result := new(big.Rat).Mul(amount, new(big.Rat).SetInt(price))
	result.Quo(result, new(big.Rat).SetInt(Denominator))
	return result, true
}

// WithDerivedWeth returns a copy of the price map with an additional entry
// for the ETH placeholder address, set equal to WETH's price (spec §4.6: "if
// any trade buys the reserved ETH placeholder address, the emitted price list
// must include an entry keyed by the ETH pseudo-token whose value equals the
// WETH price"). ok is false if weth has no known price.
func (p ExternalPrices) WithDerivedWeth(ethPlaceholder, weth common.Address) (ExternalPrices, bool) {
	wethPrice, ok := p.byToken[weth]
	if !ok {
		return ExternalPrices{}, false
	}
	out := ExternalPrices{native: p.native, byToken: make(map[common.Address]*big.Int, len(p.byToken)+1)}
	for token, price := range p.byToken {
		out.byToken[token] = price
	}
	out.byToken[ethPlaceholder] = wethPrice
	return out, true
}
