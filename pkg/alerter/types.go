// Package alerter watches the order book for a telltale sign the solver has
// stopped working: no trade has settled in a while, yet an order exists that
// an external price source says could be settled right now (C9).
package alerter

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cowsettle/gpv2core/pkg/solution"
)

// OrderKind is which side of the order the limit amount constrains.
type OrderKind int

const (
	OrderKindSell OrderKind = iota
	OrderKindBuy
)

// OrderStatus mirrors the order-book API's published lifecycle states.
type OrderStatus string

const (
	StatusOpen      OrderStatus = "open"
	StatusFulfilled OrderStatus = "fulfilled"
	StatusCancelled OrderStatus = "cancelled"
	StatusExpired   OrderStatus = "expired"
)

// OrderUID is the order book's 56-byte order identifier, hex-encoded on the wire.
type OrderUID string

// Order is the subset of the order-book API's order representation the
// alerter needs.
type Order struct {
	UID               OrderUID
	Kind              OrderKind
	SellToken         common.Address
	SellAmount        *big.Int
	BuyToken          common.Address
	BuyAmount         *big.Int
	Status            OrderStatus
	CreationDate      time.Time
	PartiallyFillable bool
	IsLiquidityOrder  bool
	Class             solution.OrderClass
}
