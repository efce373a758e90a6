package solution

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ethPlaceholder = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")
	weth           = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	dai            = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	usdc           = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
)

func TestClearingPricesAddsEthWhenBoughtAndWethAvailable(t *testing.T) {
	base := map[common.Address]*big.Int{
		weth: big.NewInt(1_000_000),
		dai:  big.NewInt(500),
	}
	fulfillments := []Fulfillment{
		{SellToken: dai, BuyToken: ethPlaceholder, Class: ClassMarket},
	}

	out, err := ClearingPrices(base, fulfillments, ethPlaceholder, weth)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_000_000), out[ethPlaceholder])
	// WETH itself isn't traded directly, so its entry is stripped.
	_, wethPresent := out[weth]
	assert.False(t, wethPresent)
}

func TestClearingPricesKeepsWethWhenDirectlyTraded(t *testing.T) {
	base := map[common.Address]*big.Int{
		weth: big.NewInt(1_000_000),
		dai:  big.NewInt(500),
	}
	fulfillments := []Fulfillment{
		{SellToken: dai, BuyToken: ethPlaceholder, Class: ClassMarket},
		{SellToken: weth, BuyToken: usdc, Class: ClassMarket},
	}

	out, err := ClearingPrices(base, fulfillments, ethPlaceholder, weth)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_000_000), out[weth])
	assert.Equal(t, big.NewInt(1_000_000), out[ethPlaceholder])
}

func TestClearingPricesFailsWithoutWethPrice(t *testing.T) {
	base := map[common.Address]*big.Int{dai: big.NewInt(500)}
	fulfillments := []Fulfillment{{SellToken: dai, BuyToken: ethPlaceholder, Class: ClassMarket}}

	_, err := ClearingPrices(base, fulfillments, ethPlaceholder, weth)
	assert.ErrorIs(t, err, ErrMissingWethClearingPrice)
}

func TestClearingPricesLeavesMapUntouchedWhenEthNotBought(t *testing.T) {
	base := map[common.Address]*big.Int{dai: big.NewInt(500), usdc: big.NewInt(1)}
	fulfillments := []Fulfillment{{SellToken: dai, BuyToken: usdc, Class: ClassMarket}}

	out, err := ClearingPrices(base, fulfillments, ethPlaceholder, weth)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	_, ethPresent := out[ethPlaceholder]
	assert.False(t, ethPresent)
}

func TestUserTradesFiltersOutLiquidityAndJIT(t *testing.T) {
	fulfillments := []Fulfillment{
		{Class: ClassMarket},
		{Class: ClassLimit},
		{Class: ClassLiquidity},
		{Class: ClassJIT},
	}

	got := UserTrades(fulfillments)
	require.Len(t, got, 2)
	assert.Equal(t, ClassMarket, got[0].Class)
	assert.Equal(t, ClassLimit, got[1].Class)
}

func TestAllowancesDeduplicatesBySpenderAndToken(t *testing.T) {
	spenderA := common.HexToAddress("0x1111111111111111111111111111111111111111")
	spenderB := common.HexToAddress("0x2222222222222222222222222222222222222222")

	reqs := []AllowanceRequirement{
		{Token: dai, Spender: spenderA, Amount: big.NewInt(100)},
		{Token: dai, Spender: spenderA, Amount: big.NewInt(50)}, // same pair, different amount
		{Token: dai, Spender: spenderB, Amount: big.NewInt(10)},
		{Token: usdc, Spender: spenderA, Amount: big.NewInt(5)},
	}

	approvals := Allowances(reqs)
	require.Len(t, approvals, 3)
	for _, a := range approvals {
		assert.Equal(t, MaxApprovalAmount, a.Amount)
	}
}
