package cmd

import (
	"go/types"

	"github.com/spf13/cobra"
	"github.com/stellar/go-stellar-sdk/support/config"
	"github.com/stellar/go-stellar-sdk/support/log"

	cmdUtils "github.com/zanopay/zano-deposit-watcher/cmd/utils"
	"github.com/zanopay/zano-deposit-watcher/internal/data"
	"github.com/zanopay/zano-deposit-watcher/internal/monitor"
)

// globalOptions is a variable that holds the global CLI options that can be
// applied to any command or subcommand.
var globalOptions cmdUtils.GlobalOptionsType

func rootCmd() *cobra.Command {
	configOpts := config.ConfigOptions{
		{
			Name:           "log-level",
			Usage:          `The log level used in this project. Options: "TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL", or "PANIC".`,
			OptType:        types.String,
			FlagDefault:    "INFO",
			ConfigKey:      &globalOptions.LogLevel,
			CustomSetValue: cmdUtils.SetConfigOptionLogLevel,
			Required:       true,
		},
		{
			Name:      "sentry-dsn",
			Usage:     "The DSN (client key) of the Sentry project. If not provided, Sentry will not be used.",
			OptType:   types.String,
			ConfigKey: &globalOptions.SentryDSN,
			Required:  false,
		},
		{
			Name:        "environment",
			Usage:       `The environment where the application is running. Example: "development", "staging", "production".`,
			OptType:     types.String,
			FlagDefault: "development",
			ConfigKey:   &globalOptions.Environment,
			Required:    true,
		},
		{
			Name:           "kv-url",
			Usage:          "KV store URL. redis:// and rediss:// select the native Redis client, https:// the REST backend.",
			OptType:        types.String,
			FlagDefault:    "redis://localhost:6379",
			ConfigKey:      &globalOptions.KVURL,
			CustomSetValue: cmdUtils.SetConfigOptionURLString,
			Required:       true,
		},
		{
			Name:      "kv-token",
			Usage:     "Bearer token for the KV REST backend. Ignored for redis URLs.",
			OptType:   types.String,
			ConfigKey: &globalOptions.KVToken,
			Required:  false,
		},
		{
			Name:        "key-prefix",
			Usage:       "Prefix applied to every KV key written by this service.",
			OptType:     types.String,
			FlagDefault: data.DefaultKeyPrefix,
			ConfigKey:   &globalOptions.KeyPrefix,
			Required:    true,
		},
	}

	rootCmd := &cobra.Command{
		Use:     "zano-deposit-watcher",
		Short:   "Zano Deposit Watcher",
		Long:    "The Zano Deposit Watcher detects incoming ZANO and FUSD deposits, tracks their confirmations, and settles them with signed webhooks.",
		Version: globalOptions.Version,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			configOpts.Require()
			err := configOpts.SetValues()
			if err != nil {
				log.Fatalf("Error setting values of config options: %s", err.Error())
			}
			log.Info("Version: ", globalOptions.Version)
			log.Info("GitCommit: ", globalOptions.GitCommit)
		},
		Run: func(cmd *cobra.Command, args []string) {
			err := cmd.Help()
			if err != nil {
				log.Fatalf("Error calling help command: %s", err.Error())
			}
		},
	}

	err := configOpts.Init(rootCmd)
	if err != nil {
		log.Fatalf("Error initializing a config option: %s", err.Error())
	}

	// The env file is loaded in main() before cobra parses anything; the
	// flag is registered here only so cobra accepts it.
	rootCmd.PersistentFlags().String("env-file", "", "Path to a dotenv file loaded before flags and environment variables are read.")

	return rootCmd
}

// SetupCLI sets up the CLI and returns the root command with the subcommands
// attached.
func SetupCLI(version, gitCommit string) *cobra.Command {
	globalOptions.Version = version
	globalOptions.GitCommit = gitCommit
	rootCmd := rootCmd()

	// Add subcommands
	rootCmd.AddCommand((&ServeCommand{}).Command(&ServerService{}, &monitor.MonitorService{}))
	rootCmd.AddCommand((&WatcherCommand{}).Command(&WatcherService{}, &monitor.MonitorService{}))

	return rootCmd
}
