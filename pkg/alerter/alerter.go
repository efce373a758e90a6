package alerter

import (
	"context"
	"fmt"
	"time"

	"github.com/cowsettle/gpv2core/internal/logging"
	"github.com/cowsettle/gpv2core/pkg/solution"
)

var alertLog = logging.New("alerter")

// Config tunes the alert condition.
type Config struct {
	// TimeWithoutTrade is how long the alerter waits for a settled trade
	// before it starts worrying.
	TimeWithoutTrade time.Duration
	// MinOrderSolvableTime is how long an order must have looked settleable
	// before the alerter will flag it; gives the solver time to act on it.
	MinOrderSolvableTime time.Duration
	// MinAlertInterval bounds how often the alerter repeats itself.
	MinAlertInterval time.Duration
}

type openOrder struct {
	order          Order
	matchableSince *time.Time
}

// Alerter watches the order book and alerts when the solver appears stuck.
type Alerter struct {
	OrderBook OrderBookClient
	Oracle    PriceOracle
	Config    Config
	Metrics   *Metrics

	lastObservedTrade time.Time
	lastAlert         *time.Time
	openOrders        []openOrder
}

// New builds an Alerter with its clock reset to now, matching a freshly
// started process that has not yet observed any trade.
func New(orderBook OrderBookClient, oracle PriceOracle, config Config, metrics *Metrics) *Alerter {
	return &Alerter{
		OrderBook:         orderBook,
		Oracle:            oracle,
		Config:            config,
		Metrics:           metrics,
		lastObservedTrade: time.Now(),
	}
}

// updateOpenOrders refreshes the tracked open-order set from the order
// book, preserving each surviving order's matchable-since timestamp, and
// bumps lastObservedTrade if any order that just disappeared turns out to
// have been fulfilled.
func (a *Alerter) updateOpenOrders(ctx context.Context) error {
	fetched, err := a.OrderBook.SolvableOrders(ctx)
	if err != nil {
		return fmt.Errorf("solvable_orders: %w", err)
	}

	next := make([]openOrder, 0, len(fetched))
	for _, order := range fetched {
		if order.IsLiquidityOrder || order.PartiallyFillable {
			continue
		}
		var matchableSince *time.Time
		for _, existing := range a.openOrders {
			if existing.order.UID == order.UID {
				matchableSince = existing.matchableSince
				break
			}
		}
		next = append(next, openOrder{order: order, matchableSince: matchableSince})
	}

	previous := a.openOrders
	a.openOrders = next

	for _, prev := range previous {
		stillOpen := false
		for _, cur := range next {
			if cur.order.UID == prev.order.UID {
				stillOpen = true
				break
			}
		}
		if stillOpen {
			continue
		}
		order, err := a.OrderBook.Order(ctx, prev.order.UID)
		if err != nil {
			return err
		}
		if order.Status == StatusFulfilled {
			a.lastObservedTrade = time.Now()
			break
		}
	}

	return nil
}

type matchableOrder struct {
	order        Order
	matchableFor time.Duration
}

// matchableOrders queries the price oracle for every open order, updating
// each order's matchable-since timestamp in place, and returns the ones
// currently matchable along with how long they've been so.
func (a *Alerter) matchableOrders(ctx context.Context) ([]matchableOrder, error) {
	var result []matchableOrder
	now := time.Now()
	for i := range a.openOrders {
		entry := &a.openOrders[i]
		canBeSettled, err := a.Oracle.CanBeSettled(ctx, entry.order)
		if err != nil {
			return nil, fmt.Errorf("can_be_settled: %w", err)
		}
		if canBeSettled {
			if entry.matchableSince == nil {
				t := now
				entry.matchableSince = &t
			}
			result = append(result, matchableOrder{order: entry.order, matchableFor: now.Sub(*entry.matchableSince)})
		} else {
			entry.matchableSince = nil
		}
	}
	return result, nil
}

// Update runs one tick of the alert loop.
func (a *Alerter) Update(ctx context.Context) error {
	if err := a.updateOpenOrders(ctx); err != nil {
		return err
	}
	matchable, err := a.matchableOrders(ctx)
	if err != nil {
		return err
	}

	a.reportMatchableCounts(matchable)

	if time.Since(a.lastObservedTrade) <= a.Config.TimeWithoutTrade {
		a.Metrics.noTradesButMatchableOrder.Set(0)
		// A recent trade means we don't want to alert regardless of how long
		// anything has looked matchable; clearing the timestamps here stops
		// a stale "matchable since" from carrying across a period where the
		// system was known to be working.
		for i := range a.openOrders {
			a.openOrders[i].matchableSince = nil
		}
		return nil
	}

	var toAlert *Order
	for i := range matchable {
		if matchable[i].matchableFor > a.Config.MinOrderSolvableTime {
			toAlert = &matchable[i].order
			break
		}
	}

	if toAlert != nil {
		shouldAlert := a.lastAlert == nil || time.Since(*a.lastAlert) >= a.Config.MinAlertInterval
		if shouldAlert {
			now := time.Now()
			a.lastAlert = &now
			a.alert(*toAlert)
		}
		a.Metrics.noTradesButMatchableOrder.Set(1)
	} else {
		a.Metrics.noTradesButMatchableOrder.Set(0)
	}

	return nil
}

func (a *Alerter) reportMatchableCounts(matchable []matchableOrder) {
	counts := map[solution.OrderClass]int{
		solution.ClassMarket:    0,
		solution.ClassLimit:     0,
		solution.ClassLiquidity: 0,
		solution.ClassJIT:       0,
	}
	for _, m := range matchable {
		counts[m.order.Class]++
	}
	for class, count := range counts {
		a.Metrics.matchableOrdersCount.WithLabelValues(class.String()).Set(float64(count))
	}
}

func (a *Alerter) alert(order Order) {
	alertLog.Warnf("no orders settled in %s even though order %s is solvable and priceable",
		a.Config.TimeWithoutTrade, order.UID)
}
