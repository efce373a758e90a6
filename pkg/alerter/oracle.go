package alerter

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ethPlaceholder is the reserved pseudo-token address some order-book APIs
// use in place of WETH for orders that trade native ETH directly.
var ethPlaceholder = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// weth is substituted for ethPlaceholder when querying the oracle, since
// swap-price oracles quote ERC20 pairs and have no notion of native ETH.
var weth = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")

// HTTPSwapPriceOracle queries an external swap-price endpoint of the shape
// described in the external interfaces list: GET {base}/swap/v1/price.
type HTTPSwapPriceOracle struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPSwapPriceOracle builds an oracle client against baseURL.
func NewHTTPSwapPriceOracle(baseURL string) (*HTTPSwapPriceOracle, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("alerter: invalid swap price oracle base url: %w", err)
	}
	return &HTTPSwapPriceOracle{
		base:   base,
		client: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// CanBeSettled reports whether the oracle's quoted price satisfies order's
// limit: quoting no more sell and no less buy than the order demands.
func (o *HTTPSwapPriceOracle) CanBeSettled(ctx context.Context, order Order) (bool, error) {
	u := *o.base
	u.Path = joinPath(u.Path, "swap/v1/price")

	query := u.Query()
	query.Set("sellToken", order.SellToken.Hex())
	buyToken := order.BuyToken
	if buyToken == ethPlaceholder {
		buyToken = weth
	}
	query.Set("buyToken", buyToken.Hex())
	if order.Kind == OrderKindBuy {
		query.Set("buyAmount", order.BuyAmount.String())
	} else {
		query.Set("sellAmount", order.SellAmount.String())
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return false, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var quote struct {
		SellAmount string `json:"sellAmount"`
		BuyAmount  string `json:"buyAmount"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return false, err
	}

	quotedSell, ok := new(big.Int).SetString(quote.SellAmount, 10)
	if !ok {
		return false, fmt.Errorf("alerter: invalid sellAmount %q in oracle quote", quote.SellAmount)
	}
	quotedBuy, ok := new(big.Int).SetString(quote.BuyAmount, 10)
	if !ok {
		return false, fmt.Errorf("alerter: invalid buyAmount %q in oracle quote", quote.BuyAmount)
	}

	return quotedSell.Cmp(order.SellAmount) <= 0 && quotedBuy.Cmp(order.BuyAmount) >= 0, nil
}
