// Package badtoken implements the bad-token detector (C6): simulating a
// round-trip transfer of a token through the settlement contract to an
// address with no prior balance, to catch tokens that behave in ways that
// would break settlement (transfer fees, freezes, balance non-conservation).
package badtoken

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenQuality is the verdict of a single detection run.
type TokenQuality struct {
	Good   bool
	Reason string // populated only when Good is false
}

// Good constructs a passing verdict.
func Good() TokenQuality { return TokenQuality{Good: true} }

// Bad constructs a failing verdict carrying a human-readable reason.
func Bad(reason string) TokenQuality { return TokenQuality{Good: false, Reason: reason} }

// errBalanceChanged signals that the owner's balance moved between being
// observed and being used in the simulated trace, which warrants a retry
// rather than a verdict.
var errBalanceChanged = errors.New("badtoken: token owner balance changed")

// OwnerFinder locates an address holding at least minAmount of token, along
// with its observed balance, to use as the simulated transfer's source.
type OwnerFinder interface {
	FindOwner(ctx context.Context, token common.Address, minAmount *big.Int) (owner common.Address, balance *big.Int, found bool, err error)
}

// CallRequest is a single eth_call to be simulated, without being broadcast.
type CallRequest struct {
	From *common.Address
	To   common.Address
	Data []byte
}

// CallTrace is the simulated-execution outcome of a state-changing call.
type CallTrace struct {
	GasUsed *big.Int
	// Error is non-empty if the simulated transaction reverted.
	Error string
}

// TraceResult is one simulated call's result: read-only calls populate
// Output, state-changing calls populate Trace.
type TraceResult struct {
	Output []byte
	Trace  *CallTrace
}

// Tracer simulates a batch of calls against the same block and state,
// applying earlier calls' state changes to later ones in the same batch
// (as a real debug_traceCallMany / trace_callMany node RPC would).
type Tracer interface {
	TraceMany(ctx context.Context, requests []CallRequest) ([]TraceResult, error)
}
