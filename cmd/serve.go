package cmd

import (
	"go/types"

	"github.com/spf13/cobra"
	"github.com/stellar/go-stellar-sdk/support/config"
	"github.com/stellar/go-stellar-sdk/support/log"

	cmdUtils "github.com/zanopay/zano-deposit-watcher/cmd/utils"
	"github.com/zanopay/zano-deposit-watcher/internal/crashtracker"
	"github.com/zanopay/zano-deposit-watcher/internal/kvstore"
	"github.com/zanopay/zano-deposit-watcher/internal/monitor"
	"github.com/zanopay/zano-deposit-watcher/internal/serve"
)

type ServeCommand struct{}

type ServerServiceInterface interface {
	StartServe(opts serve.ServeOptions, httpServer serve.HTTPServerInterface)
	StartMetricsServe(opts serve.MetricsServeOptions, httpServer serve.HTTPServerInterface)
}

type ServerService struct{}

// Making sure that ServerService implements ServerServiceInterface
var _ ServerServiceInterface = (*ServerService)(nil)

func (s *ServerService) StartServe(opts serve.ServeOptions, httpServer serve.HTTPServerInterface) {
	err := serve.Serve(opts, httpServer)
	if err != nil {
		log.Fatalf("Error starting server: %s", err.Error())
	}
}

func (s *ServerService) StartMetricsServe(opts serve.MetricsServeOptions, httpServer serve.HTTPServerInterface) {
	err := serve.MetricsServe(opts, httpServer)
	if err != nil {
		log.Fatalf("Error starting metrics server: %s", err.Error())
	}
}

func (c *ServeCommand) Command(serverService ServerServiceInterface, monitorService monitor.MonitorServiceInterface) *cobra.Command {
	serveOpts := serve.ServeOptions{}

	configOpts := config.ConfigOptions{
		{
			Name:        "port",
			Usage:       "Port where the server will be listening on",
			OptType:     types.Int,
			ConfigKey:   &serveOpts.Port,
			FlagDefault: 8001,
			Required:    true,
		},
		{
			Name:      "api-key",
			Usage:     "API key required in the X-Api-Key header to register deposits. When empty the create endpoint is disabled.",
			OptType:   types.String,
			ConfigKey: &serveOpts.APIKey,
			Required:  false,
		},
		{
			Name:      "callback-secret",
			Usage:     "Shared secret required in the X-Zano-Secret header of the settlement callback. When empty the callback endpoint is disabled.",
			OptType:   types.String,
			ConfigKey: &serveOpts.CallbackSecret,
			Required:  false,
		},
		{
			Name:           "cors-allowed-origins",
			Usage:          `Cors URLs that are allowed to access the endpoints, separated by ","`,
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetCorsAllowedOrigins,
			ConfigKey:      &serveOpts.CorsAllowedOrigins,
			FlagDefault:    "*",
			Required:       true,
		},
		{
			Name:        "rate-limit-requests",
			Usage:       "Requests allowed per client IP on the status endpoint within the rate limit window.",
			OptType:     types.Int,
			ConfigKey:   &serveOpts.RateLimitRequests,
			FlagDefault: serve.DefaultRateLimitRequests,
			Required:    false,
		},
		{
			Name:           "rate-limit-window-ms",
			Usage:          "Length in milliseconds of the status endpoint rate limit window.",
			OptType:        types.Int,
			CustomSetValue: cmdUtils.SetConfigOptionDurationMS,
			ConfigKey:      &serveOpts.RateLimitWindow,
			FlagDefault:    60000,
			Required:       false,
		},
		{
			Name:           "status-cache-ttl-ms",
			Usage:          "TTL in milliseconds of the in-process status cache. The effective TTL never exceeds the poll interval.",
			OptType:        types.Int,
			CustomSetValue: cmdUtils.SetConfigOptionDurationMS,
			ConfigKey:      &serveOpts.StatusCacheTTL,
			FlagDefault:    5000,
			Required:       false,
		},
	}
	configOpts = append(configOpts, cmdUtils.TickerConfigOptions(&serveOpts.WatcherConfig)...)
	configOpts = append(configOpts, cmdUtils.WalletRPCConfigOptions(&serveOpts.WalletOptions)...)
	configOpts = append(configOpts, cmdUtils.DataConfigOptions(&serveOpts.DataConfig)...)

	// crash tracker options
	crashTrackerOptions := crashtracker.CrashTrackerOptions{}
	configOpts = append(configOpts, cmdUtils.CrashTrackerTypeConfigOption(&crashTrackerOptions.CrashTrackerType))

	// metrics server options
	metricsServeOpts := serve.MetricsServeOptions{}
	configOpts = append(configOpts,
		&config.ConfigOption{
			Name:           "metrics-type",
			Usage:          `Metric monitor type. Options: "PROMETHEUS"`,
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionMetricType,
			ConfigKey:      &metricsServeOpts.MetricType,
			FlagDefault:    "PROMETHEUS",
			Required:       true,
		},
		&config.ConfigOption{
			Name:        "metrics-port",
			Usage:       "Port where the metrics server will be listening on",
			OptType:     types.Int,
			ConfigKey:   &metricsServeOpts.Port,
			FlagDefault: 8003,
			Required:    true,
		})

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Deposit Watcher intake API",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.Parent().PersistentPreRun(cmd.Parent(), args)

			// Validate & ingest input parameters
			configOpts.Require()
			err := configOpts.SetValues()
			if err != nil {
				log.Fatalf("Error setting values of config options: %s", err.Error())
			}

			// Initializing monitor service
			metricOptions := monitor.MetricOptions{
				MetricType:  metricsServeOpts.MetricType,
				Environment: globalOptions.Environment,
			}

			err = monitorService.Start(metricOptions)
			if err != nil {
				log.Fatalf("Error creating monitor service: %s", err.Error())
			}

			// Inject crash tracker options dependencies
			globalOptions.PopulateCrashTrackerOptions(&crashTrackerOptions)

			// Inject server dependencies
			serveOpts.Environment = globalOptions.Environment
			serveOpts.GitCommit = globalOptions.GitCommit
			serveOpts.Version = globalOptions.Version
			serveOpts.MonitorService = monitorService
			serveOpts.KVOptions = kvstore.Options{URL: globalOptions.KVURL, Token: globalOptions.KVToken}
			serveOpts.DataConfig.KeyPrefix = globalOptions.KeyPrefix

			// Inject metrics server dependencies
			metricsServeOpts.MonitorService = monitorService
			metricsServeOpts.Environment = globalOptions.Environment
		},
		Run: func(cmd *cobra.Command, _ []string) {
			ctx := cmd.Context()

			// Setup the Crash Tracker client
			crashTrackerClient, err := crashtracker.GetClient(ctx, crashTrackerOptions)
			if err != nil {
				log.Ctx(ctx).Fatalf("error creating crash tracker client: %s", err.Error())
			}
			serveOpts.CrashTrackerClient = crashTrackerClient

			// Starting Metrics Server (background job)
			log.Ctx(ctx).Info("Starting Metrics Server...")
			go serverService.StartMetricsServe(metricsServeOpts, &serve.HTTPServer{})

			// Starting Application Server
			log.Ctx(ctx).Info("Starting Application Server...")
			serverService.StartServe(serveOpts, &serve.HTTPServer{})
		},
	}
	err := configOpts.Init(cmd)
	if err != nil {
		log.Fatalf("Error initializing a config option: %s", err.Error())
	}

	return cmd
}
