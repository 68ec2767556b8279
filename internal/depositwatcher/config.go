package depositwatcher

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/zanopay/zano-deposit-watcher/internal/webhook"
)

// Defaults applied by Config.withDefaults. The ticker and decimals cover the
// wallet family this service was built for.
const (
	DefaultTicker         = "zano"
	DefaultDecimals       = 12
	DefaultMinConf        = 3
	DefaultPollInterval   = 15 * time.Second
	DefaultScanCount      = 100
	DefaultErrorBackoff   = 30 * time.Second
	DefaultMaxRetryWindow = 2 * time.Hour
)

// ErrNotConfigured signals that the watcher is missing required settings and
// must not start. Callers log it once and exit cleanly instead of crashing.
var ErrNotConfigured = errors.New("deposit watcher is not configured")

// ConsolidationRule describes the optional treasury sweep for one ticker.
// Rules arrive as a JSON map keyed by ticker, so the fields carry JSON tags.
type ConsolidationRule struct {
	Enabled   bool   `json:"enabled"`
	Address   string `json:"address"`
	FeeAtomic string `json:"feeAtomic"`
	// MinConfirmations gates the sweep independently of the deposit
	// threshold; a deposit can settle before its funds are swept.
	MinConfirmations int `json:"minConfirmations"`
	// AssetID overrides the ticker's configured asset id on the sweep
	// destination. Empty means the ticker default.
	AssetID  string `json:"assetId,omitempty"`
	Mixin    int    `json:"mixin,omitempty"`
	Priority int    `json:"priority,omitempty"`
}

// Config is the immutable watcher configuration shared by the scheduler, the
// job state machine, and the intake API.
type Config struct {
	// Tickers are processed in the order given, one full job scan per pass.
	Tickers []string
	// TickerDecimals maps ticker to its atomic-to-decimal scale.
	TickerDecimals map[string]int
	// DefaultMinConf applies when TickerMinConf has no entry for a ticker.
	DefaultMinConf int
	TickerMinConf  map[string]int
	// AssetIDs maps ticker to asset id; a non-empty value switches the
	// matcher to the recent-txs feed for that ticker.
	AssetIDs map[string]string

	PollInterval time.Duration
	ScanCount    int64
	ErrorBackoff time.Duration

	// WebhookURLs overrides WebhookURL per ticker.
	WebhookURL    string
	WebhookURLs   map[string]string
	WebhookSecret string

	Backoff webhook.Backoff
	// WebhookMaxAttempts of zero means unlimited. When positive and reached,
	// the job is held in CONFIRMING for manual intervention, never deleted.
	WebhookMaxAttempts    int
	WebhookMaxRetryWindow time.Duration

	ConsolidationRules map[string]ConsolidationRule
}

func (c Config) withDefaults() Config {
	if len(c.Tickers) == 0 {
		c.Tickers = []string{DefaultTicker}
	}
	if c.TickerDecimals == nil {
		c.TickerDecimals = map[string]int{"zano": DefaultDecimals, "fusd": DefaultDecimals}
	}
	if c.DefaultMinConf <= 0 {
		c.DefaultMinConf = DefaultMinConf
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ScanCount <= 0 {
		c.ScanCount = DefaultScanCount
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = DefaultErrorBackoff
	}
	if c.WebhookMaxRetryWindow <= 0 {
		c.WebhookMaxRetryWindow = DefaultMaxRetryWindow
	}
	return c
}

// Validate enforces the startup gate: a watcher without a webhook secret or
// a resolvable webhook URL for every enabled ticker must not run.
func (c Config) Validate() error {
	if len(c.Tickers) == 0 {
		return fmt.Errorf("%w: no tickers enabled", ErrNotConfigured)
	}
	if c.WebhookSecret == "" {
		return fmt.Errorf("%w: webhook secret is missing", ErrNotConfigured)
	}
	for _, ticker := range c.Tickers {
		if ticker == "" {
			return fmt.Errorf("%w: empty ticker in ticker list", ErrNotConfigured)
		}
		if c.WebhookURLFor(ticker) == "" {
			return fmt.Errorf("%w: no webhook URL for ticker %q", ErrNotConfigured, ticker)
		}
	}
	return nil
}

// IsTickerEnabled reports whether the intake API and the watcher accept the
// ticker.
func (c Config) IsTickerEnabled(ticker string) bool {
	return slices.Contains(c.Tickers, ticker)
}

func (c Config) DecimalsFor(ticker string) int {
	if decimals, ok := c.TickerDecimals[ticker]; ok && decimals >= 0 {
		return decimals
	}
	return DefaultDecimals
}

func (c Config) MinConfFor(ticker string) int {
	if minConf, ok := c.TickerMinConf[ticker]; ok && minConf > 0 {
		return minConf
	}
	if c.DefaultMinConf > 0 {
		return c.DefaultMinConf
	}
	return DefaultMinConf
}

// AssetIDFor returns the ticker's asset id, empty for the base coin.
func (c Config) AssetIDFor(ticker string) string {
	return c.AssetIDs[ticker]
}

// WebhookURLFor resolves the per-ticker override, falling back to the global
// URL.
func (c Config) WebhookURLFor(ticker string) string {
	if url, ok := c.WebhookURLs[ticker]; ok && url != "" {
		return url
	}
	return c.WebhookURL
}

// RuleFor returns the ticker's consolidation rule with the sweep asset id
// defaulted to the ticker's configured asset id.
func (c Config) RuleFor(ticker string) (ConsolidationRule, bool) {
	rule, ok := c.ConsolidationRules[ticker]
	if !ok {
		return ConsolidationRule{}, false
	}
	if rule.AssetID == "" {
		rule.AssetID = c.AssetIDFor(ticker)
	}
	return rule, true
}
