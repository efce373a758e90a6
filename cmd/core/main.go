package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cowsettle/gpv2core/configs"
	"github.com/cowsettle/gpv2core/internal/db"
	"github.com/cowsettle/gpv2core/internal/logging"
	"github.com/cowsettle/gpv2core/pkg/alerter"
)

var mainLog = logging.New("core")

func main() {
	conf, err := configs.LoadConfig("configs/config.yml")
	if err != nil {
		panic(err)
	}

	client, err := ethclient.Dial(conf.RPC)
	if err != nil {
		panic(err)
	}
	defer client.Close()

	dsn, err := conf.DatabaseDSN()
	if err != nil {
		panic(err)
	}
	eventLog, err := db.NewMySQLOrderEventLog(dsn)
	if err != nil {
		panic(err)
	}
	defer eventLog.Close()

	orderBook, err := alerter.NewHTTPOrderBookClient(conf.Alerter.OrderBookURL)
	if err != nil {
		panic(err)
	}
	oracle, err := alerter.NewHTTPSwapPriceOracle(conf.Alerter.SwapPriceOracleURL)
	if err != nil {
		panic(err)
	}
	metrics, err := alerter.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		panic(err)
	}

	watch := alerter.New(orderBook, oracle, conf.ToAlerterConfig(), metrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventLog.Store([]db.OrderEvent{{OrderUID: "startup", Label: db.LabelReady}})

	mainLog.Infof("starting alerter loop against %s", conf.Alerter.OrderBookURL)
	alerter.Run(ctx, watch, conf.ToAlerterRunLoopConfig())
	mainLog.Infof("shutting down")
}
