package serve

import (
	"fmt"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	supporthttp "github.com/stellar/go-stellar-sdk/support/http"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/zanopay/zano-deposit-watcher/internal/crashtracker"
	"github.com/zanopay/zano-deposit-watcher/internal/data"
	"github.com/zanopay/zano-deposit-watcher/internal/depositwatcher"
	"github.com/zanopay/zano-deposit-watcher/internal/kvstore"
	"github.com/zanopay/zano-deposit-watcher/internal/monitor"
	"github.com/zanopay/zano-deposit-watcher/internal/serve/httperror"
	"github.com/zanopay/zano-deposit-watcher/internal/serve/httphandler"
	"github.com/zanopay/zano-deposit-watcher/internal/serve/middleware"
	"github.com/zanopay/zano-deposit-watcher/internal/wallet"
)

const ServiceID = "serve"

// Default throttle for the public status endpoint: per IP, per window.
const (
	DefaultRateLimitRequests = 100
	DefaultRateLimitWindow   = time.Minute
	// DefaultStatusCacheTTL caps how stale a cached status may be; a shorter
	// watcher poll interval lowers it further.
	DefaultStatusCacheTTL = 5 * time.Second
)

type HTTPServerInterface interface {
	Run(conf supporthttp.Config)
}

type HTTPServer struct{}

func (h *HTTPServer) Run(conf supporthttp.Config) {
	supporthttp.Run(conf)
}

type ServeOptions struct {
	Environment        string
	GitCommit          string
	Port               int
	Version            string
	MonitorService     monitor.MonitorServiceInterface
	KVOptions          kvstore.Options
	kvStore            kvstore.Store
	DataConfig         data.Config
	Models             *data.Models
	WatcherConfig      depositwatcher.Config
	WalletOptions      wallet.Options
	walletClient       wallet.ClientInterface
	CorsAllowedOrigins []string
	APIKey             string
	CallbackSecret     string
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	StatusCacheTTL     time.Duration
	CrashTrackerClient crashtracker.CrashTrackerClient
	startedAt          time.Time
}

// SetupDependencies uses the serve options to setup the dependencies for the server.
func (opts *ServeOptions) SetupDependencies() error {
	// Setup crash tracker:
	// Call crash tracker FlushEvents to flush buffered events before the server terminates
	defer opts.CrashTrackerClient.FlushEvents(2 * time.Second)
	// Call crash tracker Recover for recover from unhandled panics
	defer opts.CrashTrackerClient.Recover()
	// Set crash tracker LogAndReportErrors as DefaultReportErrorFunc
	httperror.SetDefaultReportErrorFunc(opts.CrashTrackerClient.LogAndReportErrors)

	// Setup the KV store and the models on top of it:
	kvStore, err := kvstore.GetStore(opts.KVOptions)
	if err != nil {
		return fmt.Errorf("error connecting to the KV store: %w", err)
	}
	opts.kvStore = kvStore
	opts.Models, err = data.NewModels(kvStore, opts.DataConfig)
	if err != nil {
		return fmt.Errorf("error creating models for Serve: %w", err)
	}

	// Setup the wallet RPC client. It is optional for serve: without it the
	// create endpoint requires callers to provide their own address.
	if opts.WalletOptions.RPCURL != "" {
		walletClient, walletErr := wallet.NewClient(opts.WalletOptions)
		if walletErr != nil {
			return fmt.Errorf("error creating wallet RPC client: %w", walletErr)
		}
		opts.walletClient = walletClient
	}

	if opts.RateLimitRequests <= 0 {
		opts.RateLimitRequests = DefaultRateLimitRequests
	}
	if opts.RateLimitWindow <= 0 {
		opts.RateLimitWindow = DefaultRateLimitWindow
	}
	if opts.StatusCacheTTL <= 0 {
		opts.StatusCacheTTL = DefaultStatusCacheTTL
		if pollInterval := opts.WatcherConfig.PollInterval; pollInterval > 0 && pollInterval < opts.StatusCacheTTL {
			opts.StatusCacheTTL = pollInterval
		}
	}

	opts.startedAt = time.Now().UTC()
	return nil
}

func Serve(opts ServeOptions, httpServer HTTPServerInterface) error {
	err := opts.SetupDependencies()
	if err != nil {
		return fmt.Errorf("error starting dependencies: %w", err)
	}

	// Start the server
	listenAddr := fmt.Sprintf(":%d", opts.Port)
	serverConfig := supporthttp.Config{
		ListenAddr:          listenAddr,
		Handler:             handleHTTP(opts),
		TCPKeepAlive:        time.Minute * 3,
		ShutdownGracePeriod: time.Second * 50,
		ReadTimeout:         time.Second * 5,
		WriteTimeout:        time.Second * 35,
		IdleTimeout:         time.Minute * 2,
		OnStarting: func() {
			log.Info("Starting Deposit Watcher API Server")
			log.Infof("Listening on %s", listenAddr)
		},
		OnStopping: func() {
			log.Info("Stopping Deposit Watcher API Server")
		},
	}
	httpServer.Run(serverConfig)
	return nil
}

func handleHTTP(o ServeOptions) *chi.Mux {
	mux := chi.NewMux()

	// Middleware
	mux.Use(middleware.CorsMiddleware(o.CorsAllowedOrigins))
	mux.Use(chimiddleware.RequestID)
	mux.Use(chimiddleware.RealIP)
	mux.Use(supporthttp.LoggingMiddleware)
	mux.Use(middleware.RecoverHandler)
	mux.Use(middleware.MetricsRequestHandler(o.MonitorService))

	mux.Get("/health", httphandler.HealthHandler{
		Version:   o.Version,
		ServiceID: ServiceID,
		ReleaseID: o.GitCommit,
		Store:     o.Models.Store,
		StartedAt: o.startedAt,
	}.ServeHTTP)

	mux.Route("/api/transaction", func(r chi.Router) {
		r.With(middleware.APIKeyMiddleware(o.APIKey)).
			Post("/create", httphandler.CreateTransactionHandler{
				Models:         o.Models,
				WalletClient:   o.walletClient,
				WatcherConfig:  o.WatcherConfig,
				MonitorService: o.MonitorService,
				JobTTL:         o.DataConfig.JobTTL,
			}.CreateTransaction)

		statusHandler := httphandler.NewTransactionStatusHandler(o.Models, o.MonitorService, o.StatusCacheTTL)
		r.With(middleware.RateLimitMiddleware(o.RateLimitRequests, o.RateLimitWindow)).
			Get("/status/{ticker}/{paymentId}", statusHandler.GetTransactionStatus)

		r.With(middleware.CallbackSecretMiddleware(o.CallbackSecret)).
			Post("/callback/{ticker}", httphandler.TransactionCallbackHandler{
				Models:        o.Models,
				WatcherConfig: o.WatcherConfig,
			}.SettleTransaction)
	})

	return mux
}
