package settlement

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// settleABIJSON describes the single `settle` method this codec understands.
// The tuple shapes are fixed by the settlement contract's wire format (spec
// §4.1/§6): a 4-tuple of (tokens[], clearingPrices[], trades[11-tuple],
// interactions[3][3-tuple]).
const settleABIJSON = `[{
	"type": "function",
	"name": "settle",
	"inputs": [
		{"name": "tokens", "type": "address[]"},
		{"name": "clearingPrices", "type": "uint256[]"},
		{
			"name": "trades",
			"type": "tuple[]",
			"components": [
				{"name": "sellTokenIndex", "type": "uint256"},
				{"name": "buyTokenIndex", "type": "uint256"},
				{"name": "receiver", "type": "address"},
				{"name": "sellAmount", "type": "uint256"},
				{"name": "buyAmount", "type": "uint256"},
				{"name": "validTo", "type": "uint32"},
				{"name": "appData", "type": "bytes32"},
				{"name": "feeAmount", "type": "uint256"},
				{"name": "flags", "type": "uint256"},
				{"name": "executedAmount", "type": "uint256"},
				{"name": "signature", "type": "bytes"}
			]
		},
		{
			"name": "interactions",
			"type": "tuple[][3]",
			"components": [
				{"name": "target", "type": "address"},
				{"name": "value", "type": "uint256"},
				{"name": "callData", "type": "bytes"}
			]
		}
	],
	"outputs": [],
	"stateMutability": "nonpayable"
}]`

// settleABI is parsed once at package init; a malformed literal above would be
// a programming error, not a runtime condition.
var settleABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(settleABIJSON))
	if err != nil {
		panic("settlement: invalid embedded ABI: " + err.Error())
	}
	settleABI = parsed
}

// Selector returns the 4-byte function selector for settle(...).
func Selector() [4]byte {
	method := settleABI.Methods["settle"]
	var sel [4]byte
	copy(sel[:], method.ID)
	return sel
}
