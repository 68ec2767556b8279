package utils

import (
	"go/types"
	"time"

	"github.com/stellar/go-stellar-sdk/support/config"

	"github.com/zanopay/zano-deposit-watcher/internal/crashtracker"
	"github.com/zanopay/zano-deposit-watcher/internal/data"
	"github.com/zanopay/zano-deposit-watcher/internal/depositwatcher"
	"github.com/zanopay/zano-deposit-watcher/internal/wallet"
)

// TickerConfigOptions returns the per-ticker deposit parameters shared by the
// serve and watcher commands.
func TickerConfigOptions(cfg *depositwatcher.Config) []*config.ConfigOption {
	return []*config.ConfigOption{
		{
			Name:           "tickers",
			Usage:          `Comma-separated list of tickers to accept. Example: "zano,fusd".`,
			OptType:        types.String,
			CustomSetValue: SetConfigOptionTickerList,
			ConfigKey:      &cfg.Tickers,
			FlagDefault:    depositwatcher.DefaultTicker,
			Required:       true,
		},
		{
			Name:           "ticker-decimals",
			Usage:          `JSON map of ticker to atomic decimals. Example: '{"zano":12,"fusd":12}'.`,
			OptType:        types.String,
			CustomSetValue: SetConfigOptionStringIntMap,
			ConfigKey:      &cfg.TickerDecimals,
			Required:       false,
		},
		{
			Name:        "default-min-confirmations",
			Usage:       "Confirmations required before a deposit settles, for tickers without an override.",
			OptType:     types.Int,
			ConfigKey:   &cfg.DefaultMinConf,
			FlagDefault: depositwatcher.DefaultMinConf,
			Required:    true,
		},
		{
			Name:           "ticker-min-confirmations",
			Usage:          `JSON map of per-ticker confirmation overrides. Example: '{"fusd":6}'.`,
			OptType:        types.String,
			CustomSetValue: SetConfigOptionStringIntMap,
			ConfigKey:      &cfg.TickerMinConf,
			Required:       false,
		},
		{
			Name:           "ticker-asset-ids",
			Usage:          "JSON map of ticker to asset id. A non-empty asset id switches that ticker to the recent-txs feed.",
			OptType:        types.String,
			CustomSetValue: SetConfigOptionStringMap,
			ConfigKey:      &cfg.AssetIDs,
			Required:       false,
		},
		{
			Name:           "poll-interval-ms",
			Usage:          "Interval in milliseconds between polling passes.",
			OptType:        types.Int,
			CustomSetValue: SetConfigOptionDurationMS,
			ConfigKey:      &cfg.PollInterval,
			FlagDefault:    15000,
			Required:       true,
		},
	}
}

// WalletRPCConfigOptions returns the wallet JSON-RPC connection options. The
// watcher cannot run without them; serve uses them only to synthesize
// integrated addresses, so the URL stays optional here.
func WalletRPCConfigOptions(opts *wallet.Options) []*config.ConfigOption {
	return []*config.ConfigOption{
		{
			Name:      "wallet-rpc-url",
			Usage:     "The URL of the wallet JSON-RPC endpoint. Example: http://127.0.0.1:11212/json_rpc.",
			OptType:   types.String,
			ConfigKey: &opts.RPCURL,
			Required:  false,
		},
		{
			Name:      "wallet-rpc-user",
			Usage:     "Username for HTTP basic auth on the wallet RPC endpoint.",
			OptType:   types.String,
			ConfigKey: &opts.Username,
			Required:  false,
		},
		{
			Name:      "wallet-rpc-pass",
			Usage:     "Password for HTTP basic auth on the wallet RPC endpoint.",
			OptType:   types.String,
			ConfigKey: &opts.Password,
			Required:  false,
		},
		{
			Name:           "wallet-rpc-timeout-ms",
			Usage:          "Timeout in milliseconds for each wallet RPC call.",
			OptType:        types.Int,
			CustomSetValue: SetConfigOptionDurationMS,
			ConfigKey:      &opts.Timeout,
			FlagDefault:    10000,
			Required:       false,
		},
	}
}

// DataConfigOptions returns the record TTL options shared by the serve and
// watcher commands.
func DataConfigOptions(cfg *data.Config) []*config.ConfigOption {
	return []*config.ConfigOption{
		{
			Name:           "job-ttl-seconds",
			Usage:          "Default TTL in seconds for registered deposit jobs.",
			OptType:        types.Int,
			CustomSetValue: SetConfigOptionDurationSeconds,
			ConfigKey:      &cfg.JobTTL,
			FlagDefault:    86400,
			Required:       false,
		},
		{
			Name:           "status-ttl-seconds",
			Usage:          "TTL in seconds for deposit status records.",
			OptType:        types.Int,
			CustomSetValue: SetConfigOptionDurationSeconds,
			ConfigKey:      &cfg.StatusTTL,
			FlagDefault:    604800,
			Required:       false,
		},
		{
			Name:           "seen-ttl-seconds",
			Usage:          "TTL in seconds for the seen-hash guard that blocks payment id reuse.",
			OptType:        types.Int,
			CustomSetValue: SetConfigOptionDurationSeconds,
			ConfigKey:      &cfg.SeenTTL,
			FlagDefault:    14400,
			Required:       false,
		},
	}
}

// LedgerConfigOptions returns the audit trail options. Only the watcher
// writes the ledger.
func LedgerConfigOptions(cfg *data.Config) []*config.ConfigOption {
	return []*config.ConfigOption{
		{
			Name:           "deposit-ledger-mode",
			Usage:          `Where the per-deposit audit trail is kept. Options: "off", "kv", "disk".`,
			OptType:        types.String,
			CustomSetValue: SetConfigOptionLedgerMode,
			ConfigKey:      &cfg.LedgerMode,
			FlagDefault:    string(data.LedgerModeOff),
			Required:       true,
		},
		{
			Name:        "deposit-ledger-dir",
			Usage:       "Directory for the disk ledger files. Only used when the ledger mode is disk.",
			OptType:     types.String,
			ConfigKey:   &cfg.LedgerDir,
			FlagDefault: "./ledger",
			Required:    false,
		},
	}
}

// WebhookConfigOptions returns the webhook delivery options. The timeout is
// dispatcher state rather than watcher config, so it lands in the caller's
// variable.
func WebhookConfigOptions(cfg *depositwatcher.Config, timeout *time.Duration) []*config.ConfigOption {
	return []*config.ConfigOption{
		{
			Name:      "webhook-url",
			Usage:     "The URL deposit completion webhooks are POSTed to. Per-ticker overrides take precedence.",
			OptType:   types.String,
			ConfigKey: &cfg.WebhookURL,
			Required:  false,
		},
		{
			Name:           "webhook-urls",
			Usage:          `JSON map of per-ticker webhook URL overrides. Example: '{"fusd":"https://pay.example.com/hooks/fusd"}'.`,
			OptType:        types.String,
			CustomSetValue: SetConfigOptionStringMap,
			ConfigKey:      &cfg.WebhookURLs,
			Required:       false,
		},
		{
			Name:      "webhook-secret",
			Usage:     "Shared secret sent in the X-Zano-Secret header of every webhook.",
			OptType:   types.String,
			ConfigKey: &cfg.WebhookSecret,
			Required:  true,
		},
		{
			Name:           "webhook-timeout-ms",
			Usage:          "Timeout in milliseconds for each webhook delivery attempt.",
			OptType:        types.Int,
			CustomSetValue: SetConfigOptionDurationMS,
			ConfigKey:      timeout,
			FlagDefault:    10000,
			Required:       false,
		},
		{
			Name:           "webhook-backoff-base-ms",
			Usage:          "Initial delay in milliseconds before the first webhook retry.",
			OptType:        types.Int,
			CustomSetValue: SetConfigOptionDurationMS,
			ConfigKey:      &cfg.Backoff.Base,
			FlagDefault:    1000,
			Required:       false,
		},
		{
			Name:           "webhook-backoff-factor",
			Usage:          "Multiplier applied to the webhook retry delay after each failure.",
			OptType:        types.String,
			CustomSetValue: SetConfigOptionFloat64,
			ConfigKey:      &cfg.Backoff.Factor,
			FlagDefault:    "2",
			Required:       false,
		},
		{
			Name:           "webhook-backoff-max-ms",
			Usage:          "Upper bound in milliseconds for the webhook retry delay.",
			OptType:        types.Int,
			CustomSetValue: SetConfigOptionDurationMS,
			ConfigKey:      &cfg.Backoff.Max,
			FlagDefault:    1200000,
			Required:       false,
		},
		{
			Name:        "webhook-backoff-jitter",
			Usage:       "Whether the webhook retry delay is drawn uniformly from [0, delay].",
			OptType:     types.Bool,
			ConfigKey:   &cfg.Backoff.Jitter,
			FlagDefault: true,
			Required:    false,
		},
		{
			Name:        "webhook-max-attempts",
			Usage:       "Maximum webhook delivery attempts per deposit. Zero retries until the retry window closes.",
			OptType:     types.Int,
			ConfigKey:   &cfg.WebhookMaxAttempts,
			FlagDefault: 0,
			Required:    false,
		},
		{
			Name:           "webhook-max-retry-window-ms",
			Usage:          "How long in milliseconds a deposit keeps retrying its webhook before it is marked failed.",
			OptType:        types.Int,
			CustomSetValue: SetConfigOptionDurationMS,
			ConfigKey:      &cfg.WebhookMaxRetryWindow,
			FlagDefault:    7200000,
			Required:       false,
		},
	}
}

// WatcherLoopConfigOptions returns the polling loop tunables.
func WatcherLoopConfigOptions(cfg *depositwatcher.Config) []*config.ConfigOption {
	return []*config.ConfigOption{
		{
			Name:           "scan-count",
			Usage:          "Page size for each KV scan over registered jobs.",
			OptType:        types.Int,
			CustomSetValue: SetConfigOptionInt64,
			ConfigKey:      &cfg.ScanCount,
			FlagDefault:    100,
			Required:       false,
		},
		{
			Name:           "error-backoff-ms",
			Usage:          "Backoff in milliseconds applied to a ticker after one of its polling passes fails.",
			OptType:        types.Int,
			CustomSetValue: SetConfigOptionDurationMS,
			ConfigKey:      &cfg.ErrorBackoff,
			FlagDefault:    30000,
			Required:       false,
		},
		{
			Name:           "consolidation-rules",
			Usage:          `JSON map of per-ticker treasury sweep rules. Example: '{"zano":{"enabled":true,"address":"Zx...","feeAtomic":"10000000000","minConfirmations":10}}'.`,
			OptType:        types.String,
			CustomSetValue: SetConfigOptionConsolidationRules,
			ConfigKey:      &cfg.ConsolidationRules,
			Required:       false,
		},
	}
}

func CrashTrackerTypeConfigOption(targetPointer interface{}) *config.ConfigOption {
	return &config.ConfigOption{
		Name:           "crash-tracker-type",
		Usage:          `Crash tracker type. Options: "SENTRY", "DRY_RUN"`,
		OptType:        types.String,
		CustomSetValue: SetConfigOptionCrashTrackerType,
		ConfigKey:      targetPointer,
		FlagDefault:    string(crashtracker.CrashTrackerTypeDryRun),
		Required:       true,
	}
}
