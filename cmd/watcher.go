package cmd

import (
	"context"
	"errors"
	"go/types"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellar/go-stellar-sdk/support/config"
	"github.com/stellar/go-stellar-sdk/support/log"

	cmdUtils "github.com/zanopay/zano-deposit-watcher/cmd/utils"
	"github.com/zanopay/zano-deposit-watcher/internal/crashtracker"
	"github.com/zanopay/zano-deposit-watcher/internal/data"
	"github.com/zanopay/zano-deposit-watcher/internal/depositwatcher"
	"github.com/zanopay/zano-deposit-watcher/internal/kvstore"
	"github.com/zanopay/zano-deposit-watcher/internal/monitor"
	"github.com/zanopay/zano-deposit-watcher/internal/serve"
	"github.com/zanopay/zano-deposit-watcher/internal/wallet"
	"github.com/zanopay/zano-deposit-watcher/internal/webhook"
)

type WatcherCommand struct{}

type WatcherServiceInterface interface {
	StartWatcher(ctx context.Context, opts depositwatcher.Options)
	StartMetricsServe(ctx context.Context, opts serve.MetricsServeOptions, httpServer serve.HTTPServerInterface, crashTrackerClient crashtracker.CrashTrackerClient)
}

type WatcherService struct{}

// Making sure that WatcherService implements WatcherServiceInterface
var _ WatcherServiceInterface = (*WatcherService)(nil)

// StartWatcher starts the deposit polling loop. It blocks until the context
// is cancelled or a termination signal arrives.
func (s *WatcherService) StartWatcher(ctx context.Context, opts depositwatcher.Options) {
	manager, err := depositwatcher.NewManager(ctx, opts)
	if err != nil {
		// A configuration gap logs once and leaves the loop unstarted.
		if errors.Is(err, depositwatcher.ErrNotConfigured) {
			log.Ctx(ctx).Errorf("Deposit watcher is not starting: %s", err.Error())
			return
		}
		if opts.CrashTrackerClient != nil {
			opts.CrashTrackerClient.LogAndReportErrors(ctx, err, "Cannot start deposit watcher")
		}
		log.Ctx(ctx).Fatalf("Error starting deposit watcher: %s", err.Error())
	}

	manager.ProcessDeposits(ctx)
}

func (s *WatcherService) StartMetricsServe(ctx context.Context, opts serve.MetricsServeOptions, httpServer serve.HTTPServerInterface, crashTrackerClient crashtracker.CrashTrackerClient) {
	err := serve.MetricsServe(opts, httpServer)
	if err != nil {
		crashTrackerClient.LogAndReportErrors(ctx, err, "Cannot start metrics service")
		log.Fatalf("Error starting metrics server: %s", err.Error())
	}
}

func (c *WatcherCommand) Command(watcherService WatcherServiceInterface, monitorService monitor.MonitorServiceInterface) *cobra.Command {
	watcherOpts := depositwatcher.Options{}
	watcherCfg := depositwatcher.Config{}
	walletOptions := wallet.Options{}
	dataConfig := data.Config{}
	var webhookTimeout time.Duration

	configOpts := config.ConfigOptions{}
	configOpts = append(configOpts, cmdUtils.TickerConfigOptions(&watcherCfg)...)
	configOpts = append(configOpts, cmdUtils.WalletRPCConfigOptions(&walletOptions)...)
	configOpts = append(configOpts, cmdUtils.DataConfigOptions(&dataConfig)...)
	configOpts = append(configOpts, cmdUtils.LedgerConfigOptions(&dataConfig)...)
	configOpts = append(configOpts, cmdUtils.WebhookConfigOptions(&watcherCfg, &webhookTimeout)...)
	configOpts = append(configOpts, cmdUtils.WatcherLoopConfigOptions(&watcherCfg)...)

	// crash tracker options
	crashTrackerOptions := crashtracker.CrashTrackerOptions{}
	configOpts = append(configOpts, cmdUtils.CrashTrackerTypeConfigOption(&crashTrackerOptions.CrashTrackerType))

	// metrics server options
	metricsServeOpts := serve.MetricsServeOptions{}
	configOpts = append(configOpts,
		&config.ConfigOption{
			Name:           "metrics-type",
			Usage:          `Metric monitor type. Options: "WATCHER_PROMETHEUS"`,
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionMetricType,
			ConfigKey:      &metricsServeOpts.MetricType,
			FlagDefault:    "WATCHER_PROMETHEUS",
			Required:       true,
		},
		&config.ConfigOption{
			Name:        "metrics-port",
			Usage:       "Port where the metrics server will be listening on",
			OptType:     types.Int,
			ConfigKey:   &metricsServeOpts.Port,
			FlagDefault: 8002,
			Required:    true,
		})

	cmd := &cobra.Command{
		Use:   "watcher",
		Short: "Run the deposit polling watcher",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.Parent().PersistentPreRun(cmd.Parent(), args)
			ctx := cmd.Context()

			// Validate & ingest input parameters
			configOpts.Require()
			err := configOpts.SetValues()
			if err != nil {
				log.Ctx(ctx).Fatalf("Error setting values of config options: %s", err.Error())
			}

			// Initializing monitor service
			err = monitorService.Start(monitor.MetricOptions{
				MetricType:  metricsServeOpts.MetricType,
				Environment: globalOptions.Environment,
			})
			if err != nil {
				log.Ctx(ctx).Fatalf("Error creating monitor service: %s", err.Error())
			}
			watcherOpts.MonitorService = monitorService

			// Inject metrics server dependencies
			metricsServeOpts.MonitorService = monitorService
			metricsServeOpts.Environment = globalOptions.Environment

			// Setup the KV store and the models on top of it
			store, err := kvstore.GetStore(kvstore.Options{URL: globalOptions.KVURL, Token: globalOptions.KVToken})
			if err != nil {
				log.Ctx(ctx).Fatalf("error connecting to the KV store: %s", err.Error())
			}
			dataConfig.KeyPrefix = globalOptions.KeyPrefix
			watcherOpts.Models, err = data.NewModels(store, dataConfig)
			if err != nil {
				log.Ctx(ctx).Fatalf("error creating models for the watcher: %s", err.Error())
			}

			// Setup the wallet RPC client
			watcherOpts.WalletClient, err = wallet.NewClient(walletOptions)
			if err != nil {
				log.Ctx(ctx).Fatalf("error creating wallet RPC client: %s", err.Error())
			}

			// Setup the webhook dispatcher
			watcherOpts.Dispatcher = webhook.NewDispatcher(webhookTimeout)
			watcherOpts.Config = watcherCfg

			// Inject crash tracker options dependencies
			globalOptions.PopulateCrashTrackerOptions(&crashTrackerOptions)
			// Setup default Crash Tracker client
			crashTrackerClient, err := crashtracker.GetClient(ctx, crashTrackerOptions)
			if err != nil {
				log.Ctx(ctx).Fatalf("error creating crash tracker client: %s", err.Error())
			}
			watcherOpts.CrashTrackerClient = crashTrackerClient
		},
		Run: func(cmd *cobra.Command, _ []string) {
			ctx := cmd.Context()

			// Starting Metrics Server (background job)
			go watcherService.StartMetricsServe(ctx, metricsServeOpts, &serve.HTTPServer{}, watcherOpts.CrashTrackerClient)

			// Start the deposit polling watcher
			watcherService.StartWatcher(ctx, watcherOpts)
		},
	}
	err := configOpts.Init(cmd)
	if err != nil {
		log.Fatalf("Error initializing a config option: %s", err.Error())
	}

	return cmd
}
