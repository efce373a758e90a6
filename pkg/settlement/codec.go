package settlement

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidSelector is returned when the leading 4 bytes do not identify the
// settle() method this codec understands.
var ErrInvalidSelector = errors.New("settlement: invalid function selector")

// ErrDecode wraps any ABI-decoding failure; it is never a panic, even for
// adversarial input.
type ErrDecode struct {
	cause error
}

func (e *ErrDecode) Error() string { return fmt.Sprintf("settlement: decode error: %v", e.cause) }
func (e *ErrDecode) Unwrap() error { return e.cause }

func newDecodeErr(cause error) error { return &ErrDecode{cause: cause} }

// Decode parses settle() calldata into a Settlement. Per spec §4.1, it first
// attempts to interpret the tail as ABI-encoded arguments followed by an
// 8-byte metadata envelope (valid only when the remaining length, after
// removing the envelope, is itself a multiple of 32); if that fails for any
// reason it falls back to decoding the entire tail as metadata-less
// arguments. The function never panics on malformed input.
func Decode(input []byte) (*Settlement, error) {
	if len(input) < 4 {
		return nil, ErrInvalidSelector
	}
	selector := Selector()
	if input[0] != selector[0] || input[1] != selector[1] || input[2] != selector[2] || input[3] != selector[3] {
		return nil, ErrInvalidSelector
	}
	tail := input[4:]

	if len(tail) >= MetadataLength {
		withoutMeta := tail[:len(tail)-MetadataLength]
		if len(withoutMeta)%32 == 0 {
			if s, err := decodeArgs(withoutMeta); err == nil {
				var meta [MetadataLength]byte
				copy(meta[:], tail[len(tail)-MetadataLength:])
				s.Metadata = &meta
				return s, nil
			}
		}
	}

	s, err := decodeArgs(tail)
	if err != nil {
		return nil, newDecodeErr(err)
	}
	return s, nil
}

func decodeArgs(data []byte) (*Settlement, error) {
	if len(data)%32 != 0 {
		return nil, newDecodeErr(errors.New("argument data is not 32-byte aligned"))
	}
	method := settleABI.Methods["settle"]
	values, err := method.Inputs.Unpack(data)
	if err != nil {
		return nil, newDecodeErr(err)
	}
	if len(values) != 4 {
		return nil, newDecodeErr(fmt.Errorf("expected 4 top-level values, got %d", len(values)))
	}

	tokens, ok := values[0].([]common.Address)
	if !ok {
		return nil, newDecodeErr(errors.New("tokens: unexpected type"))
	}
	prices, ok := values[1].([]*big.Int)
	if !ok {
		return nil, newDecodeErr(errors.New("clearingPrices: unexpected type"))
	}

	trades, err := decodeTrades(values[2])
	if err != nil {
		return nil, newDecodeErr(err)
	}

	interactions, err := decodeInteractionPhases(values[3])
	if err != nil {
		return nil, newDecodeErr(err)
	}

	return &Settlement{
		Tokens:         tokens,
		ClearingPrices: prices,
		Trades:         trades,
		Interactions:   interactions,
	}, nil
}

// decodeTrades extracts the trade tuple slice positionally by reflection,
// since no generated binding type exists for the anonymous ABI tuple struct.
func decodeTrades(v interface{}) ([]Trade, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, errors.New("trades: unexpected type")
	}
	out := make([]Trade, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		t, err := decodeTradeTuple(rv.Index(i))
		if err != nil {
			return nil, fmt.Errorf("trade %d: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}

func decodeTradeTuple(v reflect.Value) (Trade, error) {
	if v.Kind() != reflect.Struct || v.NumField() != 11 {
		return Trade{}, errors.New("unexpected trade tuple shape")
	}
	sellTokenIndex, ok := fieldAs[*big.Int](v.Field(0))
	if !ok {
		return Trade{}, errors.New("sellTokenIndex: unexpected type")
	}
	buyTokenIndex, ok := fieldAs[*big.Int](v.Field(1))
	if !ok {
		return Trade{}, errors.New("buyTokenIndex: unexpected type")
	}
	receiver, ok := fieldAs[common.Address](v.Field(2))
	if !ok {
		return Trade{}, errors.New("receiver: unexpected type")
	}
	sellAmount, ok := fieldAs[*big.Int](v.Field(3))
	if !ok {
		return Trade{}, errors.New("sellAmount: unexpected type")
	}
	buyAmount, ok := fieldAs[*big.Int](v.Field(4))
	if !ok {
		return Trade{}, errors.New("buyAmount: unexpected type")
	}
	validTo, ok := fieldAs[uint32](v.Field(5))
	if !ok {
		return Trade{}, errors.New("validTo: unexpected type")
	}
	appData, ok := fieldAs[[32]byte](v.Field(6))
	if !ok {
		return Trade{}, errors.New("appData: unexpected type")
	}
	feeAmount, ok := fieldAs[*big.Int](v.Field(7))
	if !ok {
		return Trade{}, errors.New("feeAmount: unexpected type")
	}
	flagsRaw, ok := fieldAs[*big.Int](v.Field(8))
	if !ok {
		return Trade{}, errors.New("flags: unexpected type")
	}
	executedAmount, ok := fieldAs[*big.Int](v.Field(9))
	if !ok {
		return Trade{}, errors.New("executedAmount: unexpected type")
	}
	signature, ok := fieldAs[[]byte](v.Field(10))
	if !ok {
		return Trade{}, errors.New("signature: unexpected type")
	}

	return Trade{
		SellTokenIndex: sellTokenIndex,
		BuyTokenIndex:  buyTokenIndex,
		Receiver:       receiver,
		SellAmount:     sellAmount,
		BuyAmount:      buyAmount,
		ValidTo:        validTo,
		AppData:        appData,
		FeeAmount:      feeAmount,
		Flags:          NewTradeFlags(flagsRaw),
		ExecutedAmount: executedAmount,
		Signature:      signature,
	}, nil
}

// decodeInteractionPhases extracts the fixed-3 array of dynamic interaction
// slices.
func decodeInteractionPhases(v interface{}) ([3][]Interaction, error) {
	var out [3][]Interaction
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Array || rv.Len() != 3 {
		return out, errors.New("interactions: unexpected type")
	}
	for phase := 0; phase < 3; phase++ {
		phaseSlice := rv.Index(phase)
		if phaseSlice.Kind() != reflect.Slice {
			return out, fmt.Errorf("interactions[%d]: unexpected type", phase)
		}
		interactions := make([]Interaction, phaseSlice.Len())
		for i := 0; i < phaseSlice.Len(); i++ {
			in, err := decodeInteractionTuple(phaseSlice.Index(i))
			if err != nil {
				return out, fmt.Errorf("interactions[%d][%d]: %w", phase, i, err)
			}
			interactions[i] = in
		}
		out[phase] = interactions
	}
	return out, nil
}

func decodeInteractionTuple(v reflect.Value) (Interaction, error) {
	if v.Kind() != reflect.Struct || v.NumField() != 3 {
		return Interaction{}, errors.New("unexpected interaction tuple shape")
	}
	target, ok := fieldAs[common.Address](v.Field(0))
	if !ok {
		return Interaction{}, errors.New("target: unexpected type")
	}
	value, ok := fieldAs[*big.Int](v.Field(1))
	if !ok {
		return Interaction{}, errors.New("value: unexpected type")
	}
	callData, ok := fieldAs[[]byte](v.Field(2))
	if !ok {
		return Interaction{}, errors.New("callData: unexpected type")
	}
	return Interaction{Target: target, Value: value, CallData: callData}, nil
}

// fieldAs asserts a reflect.Value's underlying interface to type T,
// succeeding (ok=true) only on an exact type match.
func fieldAs[T any](v reflect.Value) (T, bool) {
	var zero T
	if !v.CanInterface() {
		return zero, false
	}
	asserted, ok := v.Interface().(T)
	if !ok {
		return zero, false
	}
	return asserted, true
}
