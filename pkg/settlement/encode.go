package settlement

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// packedTrade mirrors the settle() trade tuple shape for encoding. Field
// names are capitalized ABI component names so go-ethereum's struct-tuple
// packer matches them positionally without needing the anonymous type Unpack
// produced.
type packedTrade struct {
	SellTokenIndex *big.Int
	BuyTokenIndex  *big.Int
	Receiver       common.Address
	SellAmount     *big.Int
	BuyAmount      *big.Int
	ValidTo        uint32
	AppData        [32]byte
	FeeAmount      *big.Int
	Flags          *big.Int
	ExecutedAmount *big.Int
	Signature      []byte
}

type packedInteraction struct {
	Target   common.Address
	Value    *big.Int
	CallData []byte
}

func toPackedTrades(trades []Trade) []packedTrade {
	out := make([]packedTrade, len(trades))
	for i, t := range trades {
		out[i] = packedTrade{
			SellTokenIndex: t.SellTokenIndex,
			BuyTokenIndex:  t.BuyTokenIndex,
			Receiver:       t.Receiver,
			SellAmount:     t.SellAmount,
			BuyAmount:      t.BuyAmount,
			ValidTo:        t.ValidTo,
			AppData:        t.AppData,
			FeeAmount:      t.FeeAmount,
			Flags:          t.Flags.Raw(),
			ExecutedAmount: t.ExecutedAmount,
			Signature:      t.Signature,
		}
	}
	return out
}

func toPackedInteractions(interactions [3][]Interaction) [3][]packedInteraction {
	var out [3][]packedInteraction
	for phase := 0; phase < 3; phase++ {
		phaseOut := make([]packedInteraction, len(interactions[phase]))
		for i, in := range interactions[phase] {
			phaseOut[i] = packedInteraction{Target: in.Target, Value: in.Value, CallData: in.CallData}
		}
		out[phase] = phaseOut
	}
	return out
}

// Encode re-serializes a Settlement into settle() calldata, appending the
// 8-byte metadata envelope when present. Invariant 1/2 (spec §8) depends on
// Encode(Decode(x)) round-tripping byte-for-byte modulo selector reuse.
func Encode(s *Settlement) ([]byte, error) {
	method := settleABI.Methods["settle"]
	args, err := method.Inputs.Pack(
		s.Tokens,
		s.ClearingPrices,
		toPackedTrades(s.Trades),
		toPackedInteractions(s.Interactions),
	)
	if err != nil {
		return nil, newDecodeErr(err)
	}

	sel := Selector()
	out := make([]byte, 0, 4+len(args)+MetadataLength)
	out = append(out, sel[:]...)
	out = append(out, args...)
	if s.Metadata != nil {
		out = append(out, s.Metadata[:]...)
	}
	return out, nil
}
