// Package settlement implements the settle-calldata codec (C2): decoding and
// re-encoding the settlement contract's ABI tuple, including the optional
// trailing metadata envelope used to associate a settlement with an auction id.
package settlement

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MetadataLength is the size, in bytes, of the trailing auction-id envelope
// that may follow the ABI-encoded settle() arguments.
const MetadataLength = 8

// TradeFlags is the packed 256-bit flags field of a decoded trade. Bit 0
// selects buy/sell kind; bit 1 marks the order as partially fillable. All
// other bits are reserved and preserved verbatim on re-encode.
type TradeFlags struct {
	raw *big.Int
}

// NewTradeFlags wraps a raw flags integer.
func NewTradeFlags(raw *big.Int) TradeFlags {
	return TradeFlags{raw: new(big.Int).Set(raw)}
}

// Raw returns the underlying packed integer, unchanged, for re-encoding.
func (f TradeFlags) Raw() *big.Int {
	return new(big.Int).Set(f.raw)
}

// IsBuy reports whether bit 0 is set (buy kind); otherwise the trade is sell.
func (f TradeFlags) IsBuy() bool {
	return f.raw.Bit(0) == 1
}

// PartiallyFillable reports whether bit 1 is set.
func (f TradeFlags) PartiallyFillable() bool {
	return f.raw.Bit(1) == 1
}

// Trade is a decoded trade entry: token references are indices into the
// settlement's token list, not addresses.
type Trade struct {
	SellTokenIndex  *big.Int
	BuyTokenIndex   *big.Int
	Receiver        common.Address
	SellAmount      *big.Int
	BuyAmount       *big.Int
	ValidTo         uint32
	AppData         [32]byte
	FeeAmount       *big.Int
	Flags           TradeFlags
	ExecutedAmount  *big.Int
	Signature       []byte
}

// InteractionPhase names the three ordered interaction groups.
type InteractionPhase int

const (
	PhasePre InteractionPhase = iota
	PhaseIntra
	PhasePost
)

// Interaction is a single contract call emitted as part of a settlement,
// grouped into one of three ordered phases.
type Interaction struct {
	Target   common.Address
	Value    *big.Int
	CallData []byte
}

// Settlement is the fully decoded settle() calldata.
type Settlement struct {
	Tokens          []common.Address
	ClearingPrices  []*big.Int
	Trades          []Trade
	Interactions    [3][]Interaction
	// Metadata is the optional trailing 8-byte auction-id envelope. Nil when
	// the calldata carried no metadata.
	Metadata *[MetadataLength]byte
}

// ClearingPriceFor returns the clearing price of the token at the given
// index, or nil if the index is out of range.
func (s *Settlement) ClearingPriceFor(tokenIndex *big.Int) *big.Int {
	i := tokenIndex.Int64()
	if i < 0 || i >= int64(len(s.ClearingPrices)) {
		return nil
	}
	return s.ClearingPrices[i]
}

// TokenAt returns the token address at the given index, or the zero address
// if the index is out of range.
func (s *Settlement) TokenAt(tokenIndex *big.Int) common.Address {
	i := tokenIndex.Int64()
	if i < 0 || i >= int64(len(s.Tokens)) {
		return common.Address{}
	}
	return s.Tokens[i]
}
