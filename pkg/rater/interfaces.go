package rater

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// AccessListEstimator predicts the storage slots a transaction will touch,
// so the simulated gas estimate reflects a warmed access list the way the
// real broadcast transaction will use one. A failure here is non-fatal: the
// rater proceeds without an access list rather than failing the rating.
type AccessListEstimator interface {
	EstimateAccessList(ctx context.Context, from, to common.Address, data []byte) (gethtypes.AccessList, error)
}

// Simulator executes a transaction against a forked node without
// broadcasting it, returning the gas it would consume or the reason it
// would revert.
type Simulator interface {
	SimulateAndEstimateGas(ctx context.Context, from, to common.Address, data []byte, accessList gethtypes.AccessList, gasPrice GasPrice) (gasUsed *big.Int, revertReason string, err error)
}

// BalanceReader reads an account's native-token balance at the current block.
type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
}

// RatingRecorder persists a successfully rated settlement for audit purposes.
// A recording failure is logged and otherwise ignored: losing the audit
// trail must never fail a rating that already succeeded.
type RatingRecorder interface {
	RecordRating(rating RatedSettlement) error
}
