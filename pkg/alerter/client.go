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

	"github.com/cowsettle/gpv2core/pkg/solution"
)

// HTTPOrderBookClient talks to the order-book API described in the external
// interfaces list: GET api/v1/auction for the current solvable set, GET
// api/v1/orders/{uid} for a single order's live status.
type HTTPOrderBookClient struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPOrderBookClient builds a client against baseURL with a fixed
// request timeout, matching the ambient 10s timeout every external HTTP
// client in this system uses.
func NewHTTPOrderBookClient(baseURL string) (*HTTPOrderBookClient, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("alerter: invalid order book base url: %w", err)
	}
	return &HTTPOrderBookClient{
		base:   base,
		client: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type wireOrder struct {
	Kind              string         `json:"kind"`
	BuyToken          common.Address `json:"buyToken"`
	BuyAmount         string         `json:"buyAmount"`
	SellToken         common.Address `json:"sellToken"`
	SellAmount        string         `json:"sellAmount"`
	UID               string         `json:"uid"`
	Status            string         `json:"status"`
	CreationDate      time.Time      `json:"creationDate"`
	PartiallyFillable bool           `json:"partiallyFillable"`
	IsLiquidityOrder  bool           `json:"isLiquidityOrder"`
	Class             string         `json:"class"`
}

func (w wireOrder) toOrder() (Order, error) {
	buyAmount, ok := new(big.Int).SetString(w.BuyAmount, 10)
	if !ok {
		return Order{}, fmt.Errorf("alerter: invalid buyAmount %q", w.BuyAmount)
	}
	sellAmount, ok := new(big.Int).SetString(w.SellAmount, 10)
	if !ok {
		return Order{}, fmt.Errorf("alerter: invalid sellAmount %q", w.SellAmount)
	}

	kind := OrderKindSell
	if w.Kind == "buy" {
		kind = OrderKindBuy
	}

	class := solutionClassFromWire(w.Class)

	return Order{
		UID:               OrderUID(w.UID),
		Kind:              kind,
		SellToken:         w.SellToken,
		SellAmount:        sellAmount,
		BuyToken:          w.BuyToken,
		BuyAmount:         buyAmount,
		Status:            OrderStatus(w.Status),
		CreationDate:      w.CreationDate,
		PartiallyFillable: w.PartiallyFillable,
		IsLiquidityOrder:  w.IsLiquidityOrder,
		Class:             class,
	}, nil
}

func (c *HTTPOrderBookClient) SolvableOrders(ctx context.Context) ([]Order, error) {
	u := *c.base
	u.Path = joinPath(u.Path, "api/v1/auction")

	var auction struct {
		Orders []wireOrder `json:"orders"`
	}
	if err := c.getJSON(ctx, u.String(), &auction); err != nil {
		return nil, fmt.Errorf("alerter: solvable_orders: %w", err)
	}

	orders := make([]Order, 0, len(auction.Orders))
	for _, w := range auction.Orders {
		order, err := w.toOrder()
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (c *HTTPOrderBookClient) Order(ctx context.Context, uid OrderUID) (Order, error) {
	u := *c.base
	u.Path = joinPath(u.Path, "api/v1/orders/"+string(uid))

	var w wireOrder
	if err := c.getJSON(ctx, u.String(), &w); err != nil {
		return Order{}, fmt.Errorf("alerter: order %s: %w", uid, err)
	}
	return w.toOrder()
}

func (c *HTTPOrderBookClient) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func joinPath(base, rel string) string {
	if base == "" {
		return "/" + rel
	}
	if base[len(base)-1] == '/' {
		return base + rel
	}
	return base + "/" + rel
}

func solutionClassFromWire(class string) solution.OrderClass {
	switch class {
	case "limit":
		return solution.ClassLimit
	case "liquidity":
		return solution.ClassLiquidity
	case "jit":
		return solution.ClassJIT
	default:
		return solution.ClassMarket
	}
}
