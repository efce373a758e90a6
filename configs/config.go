// Package configs loads config.yml into a raw YAML-shaped struct and
// converts it into the strongly-typed runtime configs each component
// expects. Secrets (private keys, database credentials) are never read from
// the YAML file; they come from environment variables, the same split the
// original cmd wiring used.
package configs

import (
	"fmt"
	"math/big"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cowsettle/gpv2core/pkg/alerter"
	"github.com/cowsettle/gpv2core/pkg/cache"
)

// Config represents the entire configuration structure from config.yml.
type Config struct {
	RPC                string           `yaml:"rpc"`
	SettlementContract string           `yaml:"settlementContract"`
	Cache              CacheYAMLData    `yaml:"cache"`
	Alerter            AlerterYAMLData  `yaml:"alerter"`
	Rater              RaterYAMLData    `yaml:"rater"`
	Database           DatabaseYAMLData `yaml:"database"`
}

// CacheYAMLData configures the recent-block cache (C5).
type CacheYAMLData struct {
	NumberOfBlocksToCache       uint64 `yaml:"numberOfBlocksToCache"`
	NumberOfEntriesToAutoUpdate int    `yaml:"numberOfEntriesToAutoUpdate"`
	MaximumRecentBlockAge       uint64 `yaml:"maximumRecentBlockAge"`
	MaxRetries                  int    `yaml:"maxRetries"`
	DelayBetweenRetriesMs       int    `yaml:"delayBetweenRetriesMs"`
}

// AlerterYAMLData configures the matchable-order alert loop (C9).
type AlerterYAMLData struct {
	TimeWithoutTradeSec     int    `yaml:"timeWithoutTradeSec"`
	MinOrderSolvableTimeSec int    `yaml:"minOrderSolvableTimeSec"`
	MinAlertIntervalSec     int    `yaml:"minAlertIntervalSec"`
	UpdateIntervalSec       int    `yaml:"updateIntervalSec"`
	ErrorsInARowBeforeAlert uint32 `yaml:"errorsInARowBeforeAlert"`
	OrderBookURL            string `yaml:"orderBookUrl"`
	SwapPriceOracleURL      string `yaml:"swapPriceOracleUrl"`
}

// RaterYAMLData configures the settlement rater's (C7) risk policy.
// Amounts are decimal strings since YAML has no native big-integer type.
type RaterYAMLData struct {
	GasLimitMarginNumerator   int64  `yaml:"gasLimitMarginNumerator"`
	GasLimitMarginDenominator int64  `yaml:"gasLimitMarginDenominator"`
	SuccessProbabilityCapWei  string `yaml:"successProbabilityCapWei"`
}

// DatabaseYAMLData configures the order-event log's (C10) MySQL connection.
// Host/port/name are non-secret and live in YAML; user/password come from
// environment variables.
type DatabaseYAMLData struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Name string `yaml:"name"`
}

// LoadConfig reads and parses config.yml into a Config struct.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	return &config, nil
}

// ToCacheConfig converts the YAML cache section into cache.Config.
func (c *Config) ToCacheConfig() cache.Config {
	return cache.Config{
		NumberOfBlocksToCache:       c.Cache.NumberOfBlocksToCache,
		NumberOfEntriesToAutoUpdate: c.Cache.NumberOfEntriesToAutoUpdate,
		MaximumRecentBlockAge:       c.Cache.MaximumRecentBlockAge,
		MaxRetries:                  c.Cache.MaxRetries,
		DelayBetweenRetries:         time.Duration(c.Cache.DelayBetweenRetriesMs) * time.Millisecond,
	}
}

// ToAlerterConfig converts the YAML alerter section into alerter.Config.
func (c *Config) ToAlerterConfig() alerter.Config {
	return alerter.Config{
		TimeWithoutTrade:     time.Duration(c.Alerter.TimeWithoutTradeSec) * time.Second,
		MinOrderSolvableTime: time.Duration(c.Alerter.MinOrderSolvableTimeSec) * time.Second,
		MinAlertInterval:     time.Duration(c.Alerter.MinAlertIntervalSec) * time.Second,
	}
}

// ToAlerterRunLoopConfig converts the YAML alerter section into the loop's
// own ticking/escalation knobs.
func (c *Config) ToAlerterRunLoopConfig() alerter.RunLoopConfig {
	return alerter.RunLoopConfig{
		UpdateInterval:          time.Duration(c.Alerter.UpdateIntervalSec) * time.Second,
		ErrorsInARowBeforeAlert: c.Alerter.ErrorsInARowBeforeAlert,
	}
}

// RaterPolicy is the subset of rater.Rater's risk knobs this package can
// populate from config without constructing the live simulator/estimator
// dependencies, which are wired up by the caller.
type RaterPolicy struct {
	GasLimitMargin        *big.Rat
	SuccessProbabilityCap *big.Rat
}

// ToRaterPolicy converts the YAML rater section into RaterPolicy. A blank
// SuccessProbabilityCapWei leaves the cap nil so the rater falls back to its
// own default.
func (c *Config) ToRaterPolicy() (RaterPolicy, error) {
	policy := RaterPolicy{}
	if c.Rater.GasLimitMarginDenominator != 0 {
		policy.GasLimitMargin = big.NewRat(c.Rater.GasLimitMarginNumerator, c.Rater.GasLimitMarginDenominator)
	}
	if c.Rater.SuccessProbabilityCapWei != "" {
		capWei, ok := new(big.Int).SetString(c.Rater.SuccessProbabilityCapWei, 10)
		if !ok {
			return RaterPolicy{}, fmt.Errorf("configs: invalid successProbabilityCapWei %q", c.Rater.SuccessProbabilityCapWei)
		}
		policy.SuccessProbabilityCap = new(big.Rat).SetInt(capWei)
	}
	return policy, nil
}

// DatabaseDSN assembles a MySQL DSN from the YAML host/port/name and the
// DB_USER/DB_PASSWORD environment variables.
func (c *Config) DatabaseDSN() (string, error) {
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	if user == "" || password == "" {
		return "", fmt.Errorf("configs: DB_USER and DB_PASSWORD must be set")
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, password, c.Database.Host, c.Database.Port, c.Database.Name), nil
}
