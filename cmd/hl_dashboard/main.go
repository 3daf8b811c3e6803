package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/hlview/hl-dashboard/config"
	"github.com/hlview/hl-dashboard/internal/account"
	"github.com/hlview/hl-dashboard/internal/cache"
	"github.com/hlview/hl-dashboard/internal/info"
	"github.com/hlview/hl-dashboard/internal/monitor"
	"github.com/hlview/hl-dashboard/internal/natspub"
	"github.com/hlview/hl-dashboard/internal/stream"
	"github.com/hlview/hl-dashboard/internal/ws"
	"github.com/hlview/hl-dashboard/pkg/logger"
	"github.com/hlview/hl-dashboard/pkg/sigproc"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "cfg.toml", "config file path")
	flag.Parse()

	if err := config.Init(configFile); err != nil {
		panic(err)
	}
	cfg := config.Get()

	if err := initLogger(cfg); err != nil {
		panic("init logger failed: " + err.Error())
	}
	defer logger.Close()

	logger.Info().Msg("hl_dashboard service starting...")

	monitor.InitMetrics()

	var publisher *natspub.Publisher
	if cfg.NATS.Endpoint != "" {
		var err error
		publisher, err = natspub.NewPublisher(cfg.NATS.Endpoint)
		if err != nil {
			logger.Fatal().Err(err).Msg("init nats publisher failed")
		}
		defer publisher.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := []ws.Option{
		ws.WithMaxAttempts(cfg.Dashboard.ReconnectMax),
		ws.WithBackoff(cfg.Dashboard.ReconnectBaseDelay, cfg.Dashboard.ReconnectMaxDelay),
	}
	if cfg.Dashboard.DebugFrames {
		opts = append(opts, ws.WithDebugFrames())
	}
	mgr := ws.NewManager(cfg.Dashboard.HyperliquidWSURL, opts...)

	l := logger.L()
	infoOpts := []info.Opt{info.OptLogger(&l)}
	if cfg.Dashboard.DebugFrames {
		infoOpts = append(infoOpts, info.OptDebug())
	}
	infoClient := info.NewClient(cfg.Dashboard.HyperliquidAPIURL, infoOpts...)
	baselines := cache.NewBaselineCache(cfg.Dashboard.BaselineCacheTTL)

	svc, err := stream.NewService(mgr, infoClient, baselines, cfg.Dashboard.WorkerPoolSize, publisher)
	if err != nil {
		logger.Fatal().Err(err).Msg("init stream service failed")
	}

	svc.OnStatusChange(func(status ws.Status) {
		logger.Info().Str("status", string(status)).Msg("connection status")
	})

	if err = mgr.Connect(ctx); err != nil {
		// Not fatal; the reconnect loop keeps trying.
		logger.Warn().Err(err).Msg("initial connect failed")
	}

	svc.Warm(ctx, cfg.Dashboard.Addresses)

	unsubscribers := make([]func(), 0, len(cfg.Dashboard.Addresses)+1)
	for _, address := range cfg.Dashboard.Addresses {
		addr := address
		unsub, err := svc.SubscribeAccountState(ctx, addr, logAccountState(addr))
		if err != nil {
			logger.Error().Err(err).Str("address", addr).Msg("account subscription failed")
			continue
		}
		unsubscribers = append(unsubscribers, unsub)
	}

	unsubscribers = append(unsubscribers, svc.SubscribePrices(func(mids map[string]string) {
		logger.Debug().Int("symbols", len(mids)).Msg("mid prices updated")
	}))

	healthServer := monitor.NewHealthServer(cfg.Dashboard.HealthServerAddr, mgr, publisher)
	if err = healthServer.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("start health server failed")
	}

	logger.Info().
		Str("ws_url", cfg.Dashboard.HyperliquidWSURL).
		Str("health_addr", cfg.Dashboard.HealthServerAddr).
		Int("addresses", len(cfg.Dashboard.Addresses)).
		Msg("hl_dashboard service started")

	done := make(chan struct{})
	sigproc.GracefulShutdown(func(sig os.Signal) {
		logger.Info().Str("signal", sig.String()).Msg("shutting down...")

		cancel()

		for _, unsub := range unsubscribers {
			unsub()
		}

		svc.Close()
		mgr.Close()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		healthServer.Stop(shutdownCtx)

		config.Stop()

		logger.Info().Msg("hl_dashboard service stopped")
		close(done)
	})

	<-done
}

func initLogger(cfg *config.Config) error {
	return logger.NewBuilder().
		SetLevel(cfg.Logger.Level).
		SetLevelFiles(logger.LevelFiles{
			{Level: logger.ERROR, Path: "logs/err.log"},
			{Level: logger.INFO, Path: "logs/info.log"},
		}).
		SetMaxSize(cfg.Logger.MaxSize).
		SetMaxBackups(cfg.Logger.MaxBackups).
		SetMaxAge(cfg.Logger.MaxAge).
		EnableCompression(cfg.Logger.Compress).
		EnableConsoleOutput(cfg.Logger.Console).
		Build()
}

func logAccountState(address string) func(*account.State) {
	return func(state *account.State) {
		if state == nil {
			return
		}
		logger.Info().
			Str("address", address).
			Str("account_value", state.AccountValue).
			Str("withdrawable", state.Withdrawable).
			Int("positions", len(state.Positions)).
			Msg("account state updated")
	}
}
