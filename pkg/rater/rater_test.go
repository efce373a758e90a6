package rater

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cowsettle/gpv2core/pkg/prices"
	"github.com/cowsettle/gpv2core/pkg/settlement"
	"github.com/cowsettle/gpv2core/pkg/surplus"
)

type fakeAccessListEstimator struct{}

func (fakeAccessListEstimator) EstimateAccessList(ctx context.Context, from, to common.Address, data []byte) (gethtypes.AccessList, error) {
	return nil, nil
}

type scriptedSimulator struct {
	calls   int
	gasUsed []*big.Int
	revert  []string
}

func (s *scriptedSimulator) SimulateAndEstimateGas(ctx context.Context, from, to common.Address, data []byte, accessList gethtypes.AccessList, gasPrice GasPrice) (*big.Int, string, error) {
	i := s.calls
	s.calls++
	return s.gasUsed[i], s.revert[i], nil
}

type fakeBalanceReader struct {
	balance *big.Int
}

func (f fakeBalanceReader) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	return f.balance, nil
}

func testSettlement() *settlement.Settlement {
	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	native := common.HexToAddress("0x2222222222222222222222222222222222222222")
	return &settlement.Settlement{
		Tokens:         []common.Address{token, native},
		ClearingPrices: []*big.Int{big.NewInt(1), big.NewInt(1)},
		Trades:         nil,
		Interactions:   [3][]settlement.Interaction{},
	}
}

func TestRateSettlementFailsOnFirstSimulationRevert(t *testing.T) {
	r := &Rater{
		AccessListEstimator: fakeAccessListEstimator{},
		Simulator:           &scriptedSimulator{gasUsed: []*big.Int{nil}, revert: []string{"execution reverted"}},
		Balances:            fakeBalanceReader{balance: big.NewInt(0)},
		SettlementContract:  common.HexToAddress("0x3333333333333333333333333333333333333333"),
	}

	rating, err := r.RateSettlement(context.Background(), SolverInfo{}, testSettlement(), prices.New(common.Address{}, nil),
		GasPrice{MaxFeePerGas: big.NewInt(10), MaxPriorityFeePerGas: big.NewInt(1), BaseFeePerGas: big.NewInt(5)},
		1, nil, ScoreDeclaration{Kind: ScoreProtocol}, nil)
	require.NoError(t, err)
	require.False(t, rating.Succeeded())
	assert.Equal(t, "execution reverted", rating.Err.RevertReason)
}

func TestRateSettlementFailsOnInsufficientBalance(t *testing.T) {
	r := &Rater{
		AccessListEstimator: fakeAccessListEstimator{},
		Simulator: &scriptedSimulator{
			gasUsed: []*big.Int{big.NewInt(100_000), big.NewInt(90_000)},
			revert:  []string{"", ""},
		},
		Balances:           fakeBalanceReader{balance: big.NewInt(1)},
		SettlementContract: common.HexToAddress("0x3333333333333333333333333333333333333333"),
	}

	rating, err := r.RateSettlement(context.Background(), SolverInfo{}, testSettlement(), prices.New(common.Address{}, nil),
		GasPrice{MaxFeePerGas: big.NewInt(10), MaxPriorityFeePerGas: big.NewInt(1), BaseFeePerGas: big.NewInt(5)},
		1, nil, ScoreDeclaration{Kind: ScoreProtocol}, nil)
	require.NoError(t, err)
	require.False(t, rating.Succeeded())
	assert.True(t, rating.Err.InsufficientBalance)
}

func TestRateSettlementSucceedsAndComputesObjectiveValue(t *testing.T) {
	native := common.HexToAddress("0x2222222222222222222222222222222222222222")
	r := &Rater{
		AccessListEstimator: fakeAccessListEstimator{},
		Simulator: &scriptedSimulator{
			gasUsed: []*big.Int{big.NewInt(100_000), big.NewInt(90_000)},
			revert:  []string{"", ""},
		},
		Balances:           fakeBalanceReader{balance: big.NewInt(1_000_000_000_000)},
		SettlementContract: common.HexToAddress("0x3333333333333333333333333333333333333333"),
	}

	extPrices := prices.New(native, nil)
	rating, err := r.RateSettlement(context.Background(), SolverInfo{}, testSettlement(), extPrices,
		GasPrice{MaxFeePerGas: big.NewInt(10), MaxPriorityFeePerGas: big.NewInt(1), BaseFeePerGas: big.NewInt(5)},
		7, []surplus.OrderExecution{}, ScoreDeclaration{Kind: ScoreProtocol}, nil)
	require.NoError(t, err)
	require.True(t, rating.Succeeded())

	// No trades, so surplus and fees are both zero; objective value is the
	// negative of gas used (90,000 from the second pass) times the effective
	// gas price (min(maxFee=10, base(5)+priority(1)=6) = 6).
	assert.Equal(t, 7, rating.Settlement.ID)
	assert.Equal(t, big.NewInt(0), rating.Settlement.Surplus)
	assert.Equal(t, big.NewInt(0), rating.Settlement.EarnedFees)
	assert.Equal(t, big.NewInt(6), rating.Settlement.GasPrice)
	wantObjective := big.NewRat(-540_000, 1) // -90,000 * 6
	assert.Equal(t, wantObjective.RatString(), rating.Settlement.ObjectiveValue.RatString())
	assert.Equal(t, big.NewInt(0), rating.Settlement.Score) // objective is negative, rounds down to 0
}

type recordingHistory struct {
	recorded []RatedSettlement
	err      error
}

func (h *recordingHistory) RecordRating(rating RatedSettlement) error {
	h.recorded = append(h.recorded, rating)
	return h.err
}

func TestRateSettlementRecordsHistoryOnSuccess(t *testing.T) {
	native := common.HexToAddress("0x2222222222222222222222222222222222222222")
	history := &recordingHistory{}
	r := &Rater{
		AccessListEstimator: fakeAccessListEstimator{},
		Simulator: &scriptedSimulator{
			gasUsed: []*big.Int{big.NewInt(100_000), big.NewInt(90_000)},
			revert:  []string{"", ""},
		},
		Balances:           fakeBalanceReader{balance: big.NewInt(1_000_000_000_000)},
		SettlementContract: common.HexToAddress("0x3333333333333333333333333333333333333333"),
		History:            history,
	}

	rating, err := r.RateSettlement(context.Background(), SolverInfo{}, testSettlement(), prices.New(native, nil),
		GasPrice{MaxFeePerGas: big.NewInt(10), MaxPriorityFeePerGas: big.NewInt(1), BaseFeePerGas: big.NewInt(5)},
		9, []surplus.OrderExecution{}, ScoreDeclaration{Kind: ScoreProtocol}, nil)
	require.NoError(t, err)
	require.True(t, rating.Succeeded())
	require.Len(t, history.recorded, 1)
	assert.Equal(t, 9, history.recorded[0].ID)
}

// A recorder failure must not fail the rating itself: the audit trail is
// best-effort, the rating outcome is not.
func TestRateSettlementSurvivesHistoryRecordFailure(t *testing.T) {
	native := common.HexToAddress("0x2222222222222222222222222222222222222222")
	history := &recordingHistory{err: assertError("db unavailable")}
	r := &Rater{
		AccessListEstimator: fakeAccessListEstimator{},
		Simulator: &scriptedSimulator{
			gasUsed: []*big.Int{big.NewInt(100_000), big.NewInt(90_000)},
			revert:  []string{"", ""},
		},
		Balances:           fakeBalanceReader{balance: big.NewInt(1_000_000_000_000)},
		SettlementContract: common.HexToAddress("0x3333333333333333333333333333333333333333"),
		History:            history,
	}

	rating, err := r.RateSettlement(context.Background(), SolverInfo{}, testSettlement(), prices.New(native, nil),
		GasPrice{MaxFeePerGas: big.NewInt(10), MaxPriorityFeePerGas: big.NewInt(1), BaseFeePerGas: big.NewInt(5)},
		9, []surplus.OrderExecution{}, ScoreDeclaration{Kind: ScoreProtocol}, nil)
	require.NoError(t, err)
	require.True(t, rating.Succeeded())
}

type assertError string

func (e assertError) Error() string { return string(e) }

func TestGasLimitForEstimateRoundsUp(t *testing.T) {
	got := gasLimitForEstimate(big.NewInt(100), big.NewRat(6, 5))
	assert.Equal(t, big.NewInt(120), got)

	got = gasLimitForEstimate(big.NewInt(101), big.NewRat(6, 5))
	// 101 * 1.2 = 121.2, rounds up to 122
	assert.Equal(t, big.NewInt(122), got)
}
