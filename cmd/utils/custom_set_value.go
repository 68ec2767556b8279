package utils

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stellar/go-stellar-sdk/support/config"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/zanopay/zano-deposit-watcher/internal/crashtracker"
	"github.com/zanopay/zano-deposit-watcher/internal/data"
	"github.com/zanopay/zano-deposit-watcher/internal/depositwatcher"
	"github.com/zanopay/zano-deposit-watcher/internal/monitor"
)

func SetConfigOptionMetricType(co *config.ConfigOption) error {
	metricType := viper.GetString(co.Name)

	metricTypeParsed, err := monitor.ParseMetricType(metricType)
	if err != nil {
		return fmt.Errorf("couldn't parse metric type: %w", err)
	}

	*(co.ConfigKey.(*monitor.MetricType)) = metricTypeParsed
	return nil
}

func SetConfigOptionCrashTrackerType(co *config.ConfigOption) error {
	ctType := viper.GetString(co.Name)

	ctTypeParsed, err := crashtracker.ParseCrashTrackerType(ctType)
	if err != nil {
		return fmt.Errorf("couldn't parse crash tracker type: %w", err)
	}

	*(co.ConfigKey.(*crashtracker.CrashTrackerType)) = ctTypeParsed
	return nil
}

func SetConfigOptionLogLevel(co *config.ConfigOption) error {
	// parse string to logLevel object
	logLevelStr := viper.GetString(co.Name)
	logLevel, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		return fmt.Errorf("couldn't parse log level: %w", err)
	}

	// update the configKey
	key, ok := co.ConfigKey.(*logrus.Level)
	if !ok {
		return fmt.Errorf("configKey has an invalid type %T", co.ConfigKey)
	}
	*key = logLevel

	// Log for debugging
	if config.IsExplicitlySet(co) {
		log.Debugf("Setting log level to: %q", logLevel)
		log.DefaultLogger.SetLevel(*key)
	} else {
		log.Debugf("Using default log level: %q", logLevel)
	}
	return nil
}

func SetCorsAllowedOrigins(co *config.ConfigOption) error {
	corsAllowedOriginsOptions := viper.GetString(co.Name)

	if corsAllowedOriginsOptions == "" {
		return fmt.Errorf("cors allowed addresses cannot be empty")
	}

	corsAllowedOrigins := strings.Split(corsAllowedOriginsOptions, ",")

	// validate addresses
	for _, address := range corsAllowedOrigins {
		_, err := url.ParseRequestURI(address)
		if err != nil {
			return fmt.Errorf("error parsing cors addresses: %w", err)
		}
		if address == "*" {
			log.Warn(`The value "*" for the CORS Allowed Origins is too permissive and not recommended.`)
		}
	}

	key, ok := co.ConfigKey.(*[]string)
	if !ok {
		return fmt.Errorf("the expected type for this config key is a string slice, but got a %T instead", co.ConfigKey)
	}
	*key = corsAllowedOrigins

	return nil
}

func SetConfigOptionURLString(co *config.ConfigOption) error {
	u := viper.GetString(co.Name)

	if u == "" {
		return fmt.Errorf("url cannot be empty")
	}

	_, err := url.ParseRequestURI(u)
	if err != nil {
		return fmt.Errorf("error parsing url: %w", err)
	}

	key, ok := co.ConfigKey.(*string)
	if !ok {
		return fmt.Errorf("the expected type for this config key is a string, but got a %T instead", co.ConfigKey)
	}
	*key = u

	return nil
}

// SetConfigOptionTickerList splits a comma-separated ticker list, normalizing
// each entry to lowercase. Empty entries are rejected rather than skipped so a
// typo like "zano,,fusd" surfaces at startup.
func SetConfigOptionTickerList(co *config.ConfigOption) error {
	tickersStr := viper.GetString(co.Name)

	if tickersStr == "" {
		return fmt.Errorf("ticker list cannot be empty")
	}

	tickers := strings.Split(tickersStr, ",")
	for i, ticker := range tickers {
		ticker = strings.ToLower(strings.TrimSpace(ticker))
		if ticker == "" {
			return fmt.Errorf("ticker list %q contains an empty entry", tickersStr)
		}
		tickers[i] = ticker
	}

	key, ok := co.ConfigKey.(*[]string)
	if !ok {
		return fmt.Errorf("the expected type for this config key is a string slice, but got a %T instead", co.ConfigKey)
	}
	*key = tickers

	return nil
}

// SetConfigOptionStringIntMap parses a JSON object with integer values, e.g.
// '{"zano":12,"fusd":12}'. An empty input leaves the config key nil so the
// package defaults apply.
func SetConfigOptionStringIntMap(co *config.ConfigOption) error {
	key, ok := co.ConfigKey.(*map[string]int)
	if !ok {
		return fmt.Errorf("the expected type for this config key is a map of string to int, but got a %T instead", co.ConfigKey)
	}

	raw := viper.GetString(co.Name)
	if raw == "" {
		return nil
	}

	parsed := map[string]int{}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return fmt.Errorf("parsing %s as a JSON map of string to int: %w", co.Name, err)
	}
	*key = lowercaseKeys(parsed)

	return nil
}

// SetConfigOptionStringMap parses a JSON object with string values, e.g.
// '{"fusd":"86143..."}'. An empty input leaves the config key nil.
func SetConfigOptionStringMap(co *config.ConfigOption) error {
	key, ok := co.ConfigKey.(*map[string]string)
	if !ok {
		return fmt.Errorf("the expected type for this config key is a map of string to string, but got a %T instead", co.ConfigKey)
	}

	raw := viper.GetString(co.Name)
	if raw == "" {
		return nil
	}

	parsed := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return fmt.Errorf("parsing %s as a JSON map of string to string: %w", co.Name, err)
	}
	*key = lowercaseKeys(parsed)

	return nil
}

// SetConfigOptionConsolidationRules parses the per-ticker treasury sweep
// rules, e.g. '{"zano":{"enabled":true,"address":"Zx...","feeAtomic":"10000000000"}}'.
func SetConfigOptionConsolidationRules(co *config.ConfigOption) error {
	key, ok := co.ConfigKey.(*map[string]depositwatcher.ConsolidationRule)
	if !ok {
		return fmt.Errorf("the expected type for this config key is a map of string to ConsolidationRule, but got a %T instead", co.ConfigKey)
	}

	raw := viper.GetString(co.Name)
	if raw == "" {
		return nil
	}

	parsed := map[string]depositwatcher.ConsolidationRule{}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return fmt.Errorf("parsing %s as a JSON map of consolidation rules: %w", co.Name, err)
	}
	for ticker, rule := range parsed {
		if rule.Enabled && rule.Address == "" {
			return fmt.Errorf("consolidation rule for ticker %q is enabled but has no address", ticker)
		}
	}
	*key = lowercaseKeys(parsed)

	return nil
}

// SetConfigOptionDurationMS converts an integer flag expressed in
// milliseconds into a time.Duration config key.
func SetConfigOptionDurationMS(co *config.ConfigOption) error {
	key, ok := co.ConfigKey.(*time.Duration)
	if !ok {
		return fmt.Errorf("the expected type for this config key is a time.Duration, but got a %T instead", co.ConfigKey)
	}

	ms := viper.GetInt64(co.Name)
	if ms < 0 {
		return fmt.Errorf("%s cannot be negative", co.Name)
	}
	*key = time.Duration(ms) * time.Millisecond

	return nil
}

// SetConfigOptionDurationSeconds converts an integer flag expressed in
// seconds into a time.Duration config key.
func SetConfigOptionDurationSeconds(co *config.ConfigOption) error {
	key, ok := co.ConfigKey.(*time.Duration)
	if !ok {
		return fmt.Errorf("the expected type for this config key is a time.Duration, but got a %T instead", co.ConfigKey)
	}

	seconds := viper.GetInt64(co.Name)
	if seconds < 0 {
		return fmt.Errorf("%s cannot be negative", co.Name)
	}
	*key = time.Duration(seconds) * time.Second

	return nil
}

// SetConfigOptionInt64 reads an integer flag into an int64 config key.
func SetConfigOptionInt64(co *config.ConfigOption) error {
	key, ok := co.ConfigKey.(*int64)
	if !ok {
		return fmt.Errorf("the expected type for this config key is an int64, but got a %T instead", co.ConfigKey)
	}
	*key = viper.GetInt64(co.Name)

	return nil
}

// SetConfigOptionFloat64 parses a string flag into a float64 config key. The
// flag is a string so ratios like "2.5" survive env var round-trips.
func SetConfigOptionFloat64(co *config.ConfigOption) error {
	key, ok := co.ConfigKey.(*float64)
	if !ok {
		return fmt.Errorf("the expected type for this config key is a float64, but got a %T instead", co.ConfigKey)
	}

	raw := viper.GetString(co.Name)
	if raw == "" {
		return nil
	}

	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("parsing %s as a float: %w", co.Name, err)
	}
	*key = parsed

	return nil
}

func SetConfigOptionLedgerMode(co *config.ConfigOption) error {
	modeStr := viper.GetString(co.Name)

	mode, err := data.ParseLedgerMode(modeStr)
	if err != nil {
		return fmt.Errorf("couldn't parse deposit ledger mode: %w", err)
	}

	*(co.ConfigKey.(*data.LedgerMode)) = mode
	return nil
}

// lowercaseKeys normalizes ticker-keyed maps so lookups match the lowercase
// ticker list.
func lowercaseKeys[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}
