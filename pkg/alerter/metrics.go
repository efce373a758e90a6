package alerter

import "github.com/prometheus/client_golang/prometheus"

// Metrics mirrors the alerter's own dashboard: whether the alert condition
// is currently satisfied, and how many open orders are matchable per class.
type Metrics struct {
	noTradesButMatchableOrder prometheus.Gauge
	matchableOrdersCount      *prometheus.GaugeVec
}

// NewMetrics registers the alerter's gauges on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	noTrades := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "alerter_no_trades_but_matchable_order",
		Help: "1 if no trade has settled recently but a matchable order exists, 0 otherwise",
	})
	matchable := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "alerter_matchable_orders_count",
		Help: "number of open, matchable orders by class",
	}, []string{"class"})
	if err := reg.Register(noTrades); err != nil {
		return nil, err
	}
	if err := reg.Register(matchable); err != nil {
		return nil, err
	}
	return &Metrics{noTradesButMatchableOrder: noTrades, matchableOrdersCount: matchable}, nil
}
