package alerter

import "context"

// OrderBookClient is the subset of the order-book API the alerter consumes:
// the current open-order auction snapshot, and a single order's live status.
type OrderBookClient interface {
	SolvableOrders(ctx context.Context) ([]Order, error)
	Order(ctx context.Context, uid OrderUID) (Order, error)
}

// PriceOracle answers whether an order's limit price is currently
// achievable according to some external swap-price source.
type PriceOracle interface {
	CanBeSettled(ctx context.Context, order Order) (bool, error)
}
