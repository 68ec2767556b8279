// Package depositwatcher implements the polling loop that drives registered
// deposits from intake to webhook settlement: scanning jobs per ticker,
// matching on-chain transfers, tracking confirmations, sweeping funds, and
// delivering the completion webhook exactly once per confirmed deposit.
package depositwatcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/zanopay/zano-deposit-watcher/internal/crashtracker"
	"github.com/zanopay/zano-deposit-watcher/internal/data"
	"github.com/zanopay/zano-deposit-watcher/internal/kvstore"
	"github.com/zanopay/zano-deposit-watcher/internal/monitor"
	"github.com/zanopay/zano-deposit-watcher/internal/wallet"
	"github.com/zanopay/zano-deposit-watcher/internal/webhook"
)

const serviceName = "Deposit Watcher"

// minPassDelay floors the inter-pass sleep so a slow pass cannot starve the
// process of breathing room.
const minPassDelay = time.Second

type Options struct {
	Models             *data.Models
	WalletClient       wallet.ClientInterface
	Dispatcher         webhook.DispatcherInterface
	MonitorService     monitor.MonitorServiceInterface
	CrashTrackerClient crashtracker.CrashTrackerClient
	Config             Config
}

func (o *Options) validate() error {
	if o.Models == nil {
		return fmt.Errorf("models cannot be nil")
	}
	if o.WalletClient == nil {
		return fmt.Errorf("wallet client cannot be nil")
	}
	if o.Dispatcher == nil {
		return fmt.Errorf("webhook dispatcher cannot be nil")
	}
	if o.MonitorService == nil {
		return fmt.Errorf("monitor service cannot be nil")
	}
	return o.Config.Validate()
}

// Manager owns the watcher run loop: one pass at a time over the configured
// tickers, sequential jobs within a ticker, with per-ticker error backoff.
type Manager struct {
	models             *data.Models
	walletClient       wallet.ClientInterface
	worker             Worker
	cfg                Config
	tickerBackoff      map[string]time.Time
	monitorService     monitor.MonitorServiceInterface
	crashTrackerClient crashtracker.CrashTrackerClient

	nowFn func() time.Time
}

func NewManager(ctx context.Context, opts Options) (m *Manager, err error) {
	crashTrackerClient := opts.CrashTrackerClient
	if crashTrackerClient == nil {
		log.Ctx(ctx).Warn("crash tracker client not set, using DRY_RUN client")
		crashTrackerClient, err = crashtracker.NewDryRunClient()
		if err != nil {
			return nil, fmt.Errorf("unable to initialize DRY_RUN crash tracker client: %w", err)
		}
	}
	defer crashTrackerClient.FlushEvents(2 * time.Second)
	defer crashTrackerClient.Recover()
	opts.CrashTrackerClient = crashTrackerClient

	opts.Config = opts.Config.withDefaults()
	if err = opts.validate(); err != nil {
		return nil, fmt.Errorf("validating options: %w", err)
	}

	worker, err := NewWorker(opts.Models, opts.WalletClient, opts.Dispatcher, crashTrackerClient, opts.MonitorService, opts.Config)
	if err != nil {
		return nil, fmt.Errorf("initializing worker: %w", err)
	}

	return &Manager{
		models:             opts.Models,
		walletClient:       opts.WalletClient,
		worker:             worker,
		cfg:                opts.Config,
		tickerBackoff:      map[string]time.Time{},
		monitorService:     opts.MonitorService,
		crashTrackerClient: crashTrackerClient,
	}, nil
}

func (m *Manager) now() time.Time {
	if m.nowFn != nil {
		return m.nowFn()
	}
	return time.Now().UTC()
}

// ProcessDeposits runs polling passes until the context is canceled or an OS
// stop signal arrives. The in-flight pass always completes before the loop
// exits.
func (m *Manager) ProcessDeposits(ctx context.Context) {
	defer m.crashTrackerClient.FlushEvents(2 * time.Second)
	defer m.crashTrackerClient.Recover()
	log.Ctx(ctx).Infof("Starting %s for tickers %v, polling every %s...", serviceName, m.cfg.Tickers, m.cfg.PollInterval)

	// initialize signal channel, to react to OS signals
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Ctx(ctx).Infof("Stopping %s due to context cancellation...", serviceName)
			return

		case sig := <-signalChan:
			log.Ctx(ctx).Infof("Stopping %s due to OS signal '%+v'", serviceName, sig)
			return

		case <-timer.C:
			started := time.Now()
			m.processPass(ctx)
			timer.Reset(nextPassDelay(m.cfg.PollInterval, time.Since(started)))
		}
	}
}

// nextPassDelay paces the loop: a pass shorter than the interval waits out
// the remainder, a longer one still yields for minPassDelay.
func nextPassDelay(interval, elapsed time.Duration) time.Duration {
	delay := interval - elapsed
	if delay < minPassDelay {
		delay = minPassDelay
	}
	return delay
}

// processPass walks every configured ticker once, skipping those still in
// error backoff.
func (m *Manager) processPass(ctx context.Context) {
	for _, ticker := range m.cfg.Tickers {
		if deadline, ok := m.tickerBackoff[ticker]; ok {
			if m.now().Before(deadline) {
				log.Ctx(ctx).Debugf("Skipping ticker %q until %s (error backoff)", ticker, deadline.Format(time.RFC3339))
				continue
			}
			delete(m.tickerBackoff, ticker)
		}

		started := time.Now()
		err := m.processTicker(ctx, ticker)
		m.monitorDuration(ctx, time.Since(started), monitor.WatcherPassDurationTag, map[string]string{"ticker": ticker})
		if err == nil {
			continue
		}

		var rpcErr *wallet.RPCError
		if errors.As(err, &rpcErr) {
			deadline := m.now().Add(m.cfg.ErrorBackoff)
			m.tickerBackoff[ticker] = deadline
			log.Ctx(ctx).Errorf("Backing off ticker %q until %s after RPC failure: %v", ticker, deadline.Format(time.RFC3339), err)
			m.monitorCounter(ctx, monitor.WalletRPCErrorsCounterTag, map[string]string{"ticker": ticker, "method": rpcErr.Method})
			continue
		}

		// The KV client already retried these; the next pass picks the jobs
		// up again, so they don't need crash-tracker escalation.
		var transientErr *kvstore.TransientError
		if errors.As(err, &transientErr) {
			log.Ctx(ctx).Warnf("Transient KV failure on ticker %q, retrying next pass: %v", ticker, err)
			continue
		}
		m.crashTrackerClient.LogAndReportErrors(ctx, err, fmt.Sprintf("processing ticker %q", ticker))
	}
}

// processTicker scans the ticker's jobs page by page and drives each one
// through the state machine. RPC errors bubble up so the caller can back the
// ticker off; anything else only skips the offending job.
func (m *Manager) processTicker(ctx context.Context, ticker string) error {
	chainInfo, err := m.walletClient.GetWalletInfo(ctx)
	if err != nil {
		return fmt.Errorf("fetching wallet info: %w", err)
	}
	if !chainInfo.IsSynchronized {
		log.Ctx(ctx).Warnf("Wallet is not synchronized (wallet height %d, daemon height %d), confirmations may lag", chainInfo.CurrentHeight, chainInfo.DaemonHeight)
	}

	pattern := m.models.Jobs.ScanPattern(ticker)
	cursor := "0"
	for {
		next, keys, scanErr := m.models.Store.Scan(ctx, cursor, pattern, m.cfg.ScanCount)
		if scanErr != nil {
			return fmt.Errorf("scanning jobs for ticker %q: %w", ticker, scanErr)
		}

		for _, key := range keys {
			outcome, jobErr := m.worker.ProcessJob(ctx, ticker, key, chainInfo)
			if jobErr != nil {
				var rpcErr *wallet.RPCError
				if errors.As(jobErr, &rpcErr) {
					return jobErr
				}
				m.crashTrackerClient.LogAndReportErrors(ctx, jobErr, fmt.Sprintf("processing job %q", key))
				continue
			}
			m.monitorCounter(ctx, monitor.WatcherJobsProcessedCounterTag, monitor.WatcherJobLabels{Ticker: ticker, Outcome: string(outcome)}.ToMap())
		}

		cursor = next
		if cursor == "0" || cursor == "" {
			return nil
		}
	}
}

func (m *Manager) monitorCounter(ctx context.Context, tag monitor.MetricTag, labels map[string]string) {
	if err := m.monitorService.MonitorCounters(tag, labels); err != nil {
		log.Ctx(ctx).Errorf("Error monitoring counter %q: %v", tag, err)
	}
}

func (m *Manager) monitorDuration(ctx context.Context, duration time.Duration, tag monitor.MetricTag, labels map[string]string) {
	if err := m.monitorService.MonitorDuration(duration, tag, labels); err != nil {
		log.Ctx(ctx).Errorf("Error monitoring duration %q: %v", tag, err)
	}
}
