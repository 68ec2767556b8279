package cmd

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	cmdUtils "github.com/zanopay/zano-deposit-watcher/cmd/utils"
	"github.com/zanopay/zano-deposit-watcher/internal/crashtracker"
	"github.com/zanopay/zano-deposit-watcher/internal/depositwatcher"
	"github.com/zanopay/zano-deposit-watcher/internal/monitor"
	"github.com/zanopay/zano-deposit-watcher/internal/serve"
)

type mockWatcher struct {
	mock.Mock
	wg sync.WaitGroup
}

// Making sure that mockWatcher implements WatcherServiceInterface
var _ WatcherServiceInterface = (*mockWatcher)(nil)

func (m *mockWatcher) StartWatcher(ctx context.Context, opts depositwatcher.Options) {
	m.Called(ctx, opts)
	m.wg.Wait()
}

func (m *mockWatcher) StartMetricsServe(ctx context.Context, opts serve.MetricsServeOptions, httpServer serve.HTTPServerInterface, crashTrackerClient crashtracker.CrashTrackerClient) {
	m.Called(ctx, opts, httpServer, crashTrackerClient)
	m.wg.Done()
}

func Test_watcher_help(t *testing.T) {
	// setup
	rootCmd := SetupCLI("x.y.z", "1234567890abcdef")
	watcherCmdFound := false

	for _, cmd := range rootCmd.Commands() {
		if cmd.Use == "watcher" {
			watcherCmdFound = true
		}
	}
	require.True(t, watcherCmdFound, "watcher command not found")
	rootCmd.SetArgs([]string{"watcher", "--help"})
	var out bytes.Buffer
	rootCmd.SetOut(&out)

	// test
	err := rootCmd.Execute()
	require.NoError(t, err)

	// assert
	assert.Contains(t, out.String(), "zano-deposit-watcher watcher [flags]", "should have printed help message for watcher command")
}

func Test_watcher(t *testing.T) {
	cmdUtils.ClearTestEnvironment(t)

	dryRunClient, err := crashtracker.NewDryRunClient()
	require.NoError(t, err)

	// mock metric service
	mMonitorService := monitor.MockMonitorService{}
	metricOptions := monitor.MetricOptions{
		MetricType:  monitor.MetricTypeWatcherPrometheus,
		Environment: "test",
	}
	mMonitorService.On("Start", metricOptions).Return(nil).Once()
	defer mMonitorService.AssertExpectations(t)

	mWatcher := mockWatcher{}
	mWatcher.On("StartMetricsServe", mock.Anything, mock.AnythingOfType("serve.MetricsServeOptions"), mock.AnythingOfType("*serve.HTTPServer"), dryRunClient).Once()
	mWatcher.On("StartWatcher", mock.Anything, mock.AnythingOfType("depositwatcher.Options")).Once()
	mWatcher.wg.Add(1)
	defer mWatcher.AssertExpectations(t)

	// SetupCLI and replace the watcher command with one containing a mocked service
	rootCmd := SetupCLI("x.y.z", "1234567890abcdef")
	var commandToRemove *cobra.Command
	commandToAdd := (&WatcherCommand{}).Command(&mWatcher, &mMonitorService)
	for _, cmd := range rootCmd.Commands() {
		if cmd.Use == "watcher" {
			commandToRemove = cmd
		}
	}
	require.NotNil(t, commandToRemove, "watcher command not found")
	rootCmd.RemoveCommand(commandToRemove)
	rootCmd.AddCommand(commandToAdd)
	rootCmd.SetArgs([]string{
		"watcher",
		"--environment", "test",
		"--kv-url", "redis://localhost:6379",
		"--tickers", "zano,fusd",
		"--wallet-rpc-url", "http://localhost:11212/json_rpc",
		"--webhook-url", "https://merchant.example/hooks/deposit",
		"--webhook-secret", "webhook-secret-1234567890",
	})

	// test
	err = rootCmd.Execute()
	require.NoError(t, err)
}
