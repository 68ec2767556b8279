package depositwatcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Config_withDefaults(t *testing.T) {
	t.Run("zero config gets every default", func(t *testing.T) {
		cfg := Config{}.withDefaults()

		assert.Equal(t, []string{"zano"}, cfg.Tickers)
		assert.Equal(t, map[string]int{"zano": 12, "fusd": 12}, cfg.TickerDecimals)
		assert.Equal(t, 3, cfg.DefaultMinConf)
		assert.Equal(t, 15*time.Second, cfg.PollInterval)
		assert.Equal(t, int64(100), cfg.ScanCount)
		assert.Equal(t, 30*time.Second, cfg.ErrorBackoff)
		assert.Equal(t, 2*time.Hour, cfg.WebhookMaxRetryWindow)
	})

	t.Run("explicit values survive", func(t *testing.T) {
		cfg := Config{
			Tickers:               []string{"fusd"},
			TickerDecimals:        map[string]int{"fusd": 4},
			DefaultMinConf:        9,
			PollInterval:          time.Minute,
			ScanCount:             25,
			ErrorBackoff:          5 * time.Second,
			WebhookMaxRetryWindow: time.Hour,
		}.withDefaults()

		assert.Equal(t, []string{"fusd"}, cfg.Tickers)
		assert.Equal(t, map[string]int{"fusd": 4}, cfg.TickerDecimals)
		assert.Equal(t, 9, cfg.DefaultMinConf)
		assert.Equal(t, time.Minute, cfg.PollInterval)
		assert.Equal(t, int64(25), cfg.ScanCount)
		assert.Equal(t, 5*time.Second, cfg.ErrorBackoff)
		assert.Equal(t, time.Hour, cfg.WebhookMaxRetryWindow)
	})
}

func Test_Config_Validate(t *testing.T) {
	validConfig := func() Config {
		return Config{
			Tickers:       []string{"zano", "fusd"},
			WebhookURL:    "https://merchant.example.com/hook",
			WebhookSecret: "s3cr3t",
		}
	}

	testCases := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:   "🎉 valid config passes",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "no tickers",
			mutate:  func(cfg *Config) { cfg.Tickers = nil },
			wantErr: "deposit watcher is not configured: no tickers enabled",
		},
		{
			name:    "missing webhook secret",
			mutate:  func(cfg *Config) { cfg.WebhookSecret = "" },
			wantErr: "deposit watcher is not configured: webhook secret is missing",
		},
		{
			name:    "empty ticker in list",
			mutate:  func(cfg *Config) { cfg.Tickers = []string{"zano", ""} },
			wantErr: "deposit watcher is not configured: empty ticker in ticker list",
		},
		{
			name: "ticker without a resolvable webhook URL",
			mutate: func(cfg *Config) {
				cfg.WebhookURL = ""
				cfg.WebhookURLs = map[string]string{"zano": "https://merchant.example.com/zano"}
			},
			wantErr: `deposit watcher is not configured: no webhook URL for ticker "fusd"`,
		},
		{
			name: "🎉 per-ticker URLs cover every ticker",
			mutate: func(cfg *Config) {
				cfg.WebhookURL = ""
				cfg.WebhookURLs = map[string]string{
					"zano": "https://merchant.example.com/zano",
					"fusd": "https://merchant.example.com/fusd",
				}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.EqualError(t, err, tc.wantErr)
				require.ErrorIs(t, err, ErrNotConfigured)
			}
		})
	}
}

func Test_Config_lookupHelpers(t *testing.T) {
	cfg := Config{
		Tickers:        []string{"zano", "fusd"},
		TickerDecimals: map[string]int{"zano": 12, "fusd": 6},
		DefaultMinConf: 3,
		TickerMinConf:  map[string]int{"fusd": 10},
		AssetIDs:       map[string]string{"fusd": "86143388462d047b1b462293fdc4bae8b34b2605a72ce980225e44bbf6b0d709"},
		WebhookURL:     "https://merchant.example.com/hook",
		WebhookURLs:    map[string]string{"fusd": "https://merchant.example.com/fusd"},
	}

	t.Run("IsTickerEnabled", func(t *testing.T) {
		assert.True(t, cfg.IsTickerEnabled("zano"))
		assert.True(t, cfg.IsTickerEnabled("fusd"))
		assert.False(t, cfg.IsTickerEnabled("btc"))
	})

	t.Run("DecimalsFor falls back to the default scale", func(t *testing.T) {
		assert.Equal(t, 12, cfg.DecimalsFor("zano"))
		assert.Equal(t, 6, cfg.DecimalsFor("fusd"))
		assert.Equal(t, DefaultDecimals, cfg.DecimalsFor("unknown"))
	})

	t.Run("MinConfFor prefers the per-ticker entry", func(t *testing.T) {
		assert.Equal(t, 10, cfg.MinConfFor("fusd"))
		assert.Equal(t, 3, cfg.MinConfFor("zano"))

		bare := Config{}
		assert.Equal(t, DefaultMinConf, bare.MinConfFor("zano"))
	})

	t.Run("AssetIDFor is empty for the base coin", func(t *testing.T) {
		assert.Equal(t, "", cfg.AssetIDFor("zano"))
		assert.NotEmpty(t, cfg.AssetIDFor("fusd"))
	})

	t.Run("WebhookURLFor prefers the per-ticker override", func(t *testing.T) {
		assert.Equal(t, "https://merchant.example.com/fusd", cfg.WebhookURLFor("fusd"))
		assert.Equal(t, "https://merchant.example.com/hook", cfg.WebhookURLFor("zano"))
	})
}

func Test_Config_RuleFor(t *testing.T) {
	cfg := Config{
		AssetIDs: map[string]string{"fusd": "asset-123"},
		ConsolidationRules: map[string]ConsolidationRule{
			"fusd": {Enabled: true, Address: "ZxTreasury", FeeAtomic: "10000"},
			"zano": {Enabled: true, Address: "ZxTreasury", AssetID: "override-456"},
		},
	}

	t.Run("missing rule", func(t *testing.T) {
		_, ok := cfg.RuleFor("btc")
		assert.False(t, ok)
	})

	t.Run("rule inherits the ticker asset id", func(t *testing.T) {
		rule, ok := cfg.RuleFor("fusd")
		require.True(t, ok)
		assert.Equal(t, "asset-123", rule.AssetID)
		assert.Equal(t, "10000", rule.FeeAtomic)
	})

	t.Run("explicit rule asset id wins", func(t *testing.T) {
		rule, ok := cfg.RuleFor("zano")
		require.True(t, ok)
		assert.Equal(t, "override-456", rule.AssetID)
	})
}
