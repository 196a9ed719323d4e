package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/liamashdown/tokengate/internal/alerts"
	"github.com/liamashdown/tokengate/internal/api"
	"github.com/liamashdown/tokengate/internal/cache"
	"github.com/liamashdown/tokengate/internal/config"
	"github.com/liamashdown/tokengate/internal/gatekeeper"
	"github.com/liamashdown/tokengate/internal/ingest"
	"github.com/liamashdown/tokengate/internal/providers/birdeye"
	"github.com/liamashdown/tokengate/internal/providers/dexscreener"
	"github.com/liamashdown/tokengate/internal/providers/rugcheck"
	"github.com/liamashdown/tokengate/internal/providers/volumecheck"
	"github.com/liamashdown/tokengate/internal/risk"
	"github.com/liamashdown/tokengate/internal/scheduler"
	"github.com/liamashdown/tokengate/internal/storage"
	"github.com/liamashdown/tokengate/internal/trade"
)

func main() {
	// Initialize logger
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)

	log.Info("Starting tokengate service...")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	log.WithFields(logrus.Fields{
		"environment":    cfg.Environment,
		"stream_kind":    cfg.StreamKind,
		"scam_policy":    cfg.ScamPolicy,
		"auto_trade":     cfg.AutoTradeEnabled,
		"alert_mode":     cfg.AlertMode,
		"filter_presets": len(cfg.FilterPresets),
	}).Info("Configuration loaded")

	db, err := storage.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.AutoMigrate(); err != nil {
		log.WithError(err).Fatal("Failed to run database migrations")
	}
	log.Info("Database migrations complete")

	marketCache, err := cache.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to cache")
	}
	defer marketCache.Close()

	// Risk-signal providers
	dex := dexscreener.NewClient(cfg, log)
	bird := birdeye.NewClient(cfg, log)
	rug := rugcheck.NewClient(cfg, log)

	var corroborator risk.VolumeCorroborator
	if cfg.VolumeCheckURL != "" {
		corroborator = volumecheck.NewClient(cfg)
	}

	log.Info("Provider clients initialized")

	alertSender := createAlertSender(cfg, log)
	recorder := alerts.NewRecorder(db, alertSender, log, cfg.Environment)
	defer recorder.Flush()

	log.WithField("alert_mode", cfg.AlertMode).Info("Alert sender initialized")

	trigger := trade.NewTrigger(createExecutor(cfg, log), db, recorder, log)

	anomaly := risk.NewAnomalyDetector(risk.AnomalyConfig{
		Window:      cfg.AnomalyWindow,
		MinSamples:  cfg.AnomalyMinSamples,
		ZThreshold:  cfg.AnomalyZThreshold,
		TurnoverMax: cfg.AnomalyTurnoverMax,
	})

	pipeline := gatekeeper.New(cfg, gatekeeper.Deps{
		Store:        db,
		Cache:        marketCache,
		Primary:      dex,
		Secondary:    bird,
		Holders:      bird,
		Contracts:    rug,
		Corroborator: corroborator,
		Anomaly:      anomaly,
		Chains:       []risk.Chain{risk.ChainSolana},
	}, log)
	gate := gatekeeper.NewGate(pipeline, gatekeeper.NewDispatcher(recorder, trigger, log))

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(db, anomaly, cfg.AnomalyWindow, log)
	if err := sched.Start(cfg.ReseedSchedule, cfg.GaugeSchedule); err != nil {
		log.WithError(err).Fatal("Failed to start scheduler")
	}
	defer sched.Stop()

	server := api.NewServer(gate, db, marketCache, api.Settings{
		DefaultFilters: cfg.DefaultFilters,
		FilterPresets:  cfg.FilterPresets,
		OverrideKey:    cfg.OverrideKey,
	}, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, cfg.HTTPPort)
	})

	if source := createSource(cfg, log); source != nil {
		loop := ingest.NewLoop(source, gate, cfg.DefaultFilters, cfg.StreamWorkers, log)
		g.Go(func() error {
			return loop.Run(gctx)
		})
	} else {
		log.Info("Realtime ingestion disabled")
	}

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Component failed, shutting down")
	}

	log.Info("Graceful shutdown complete")
}

func createSource(cfg *config.Config, log *logrus.Logger) ingest.Source {
	switch cfg.StreamKind {
	case config.StreamPumpPortal:
		return ingest.NewPumpPortalSource(cfg.StreamURL, cfg.ReconnectMinDelay, cfg.ReconnectMaxDelay, log)
	case config.StreamEVM:
		log.Warn("Risk providers only cover solana, EVM tokens will be rejected as unsupported_chain")
		return ingest.NewEVMSource(
			ingest.EthDialer(cfg.StreamURL),
			cfg.EVMFactoryAddress,
			cfg.EVMQuoteTokens,
			cfg.ReconnectMinDelay,
			cfg.ReconnectMaxDelay,
			log,
		)
	default:
		return nil
	}
}

func createExecutor(cfg *config.Config, log *logrus.Logger) trade.Executor {
	if cfg.TradeAPIURL == "" {
		if cfg.AutoTradeEnabled {
			log.Warn("AUTO_TRADE_ENABLED without TRADE_API_URL, trades will be dry-run")
		}
		return trade.DryRunExecutor{}
	}
	return trade.NewHTTPExecutor(cfg.TradeAPIURL, cfg.TradeAPIKey, cfg.TradePriorityFee, cfg.TradePool, cfg.ProviderTimeout)
}

func createAlertSender(cfg *config.Config, log *logrus.Logger) alerts.Sender {
	senders := []alerts.Sender{}

	for _, mode := range cfg.AlertModes() {
		switch mode {
		case "log":
			senders = append(senders, alerts.NewLogSender(log))
		case "discord":
			if len(cfg.DiscordWebhookURLs) == 0 {
				log.Warn("Discord mode specified but DISCORD_WEBHOOK_URLS not set")
				continue
			}
			for _, url := range cfg.DiscordWebhookURLs {
				senders = append(senders, alerts.NewDiscordSender(url))
			}
		case "telegram":
			if cfg.TelegramBotToken == "" || cfg.TelegramChatID == "" {
				log.Warn("Telegram mode specified but TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID not set")
				continue
			}
			senders = append(senders, alerts.NewTelegramSender(cfg.TelegramBotToken, cfg.TelegramChatID))
		case "smtp":
			if cfg.SMTPHost == "" {
				log.Warn("SMTP mode specified but SMTP_HOST not set")
				continue
			}
			senders = append(senders, alerts.NewSMTPSender(
				cfg.SMTPHost,
				cfg.SMTPPort,
				cfg.SMTPUser,
				cfg.SMTPPassword,
				cfg.SMTPFrom,
				cfg.SMTPTo,
			))
		default:
			log.WithField("mode", mode).Warn("Unknown alert mode, skipping")
		}
	}

	switch len(senders) {
	case 0:
		log.Warn("No valid alert senders configured, using log")
		return alerts.NewLogSender(log)
	case 1:
		return senders[0]
	default:
		return alerts.NewMultiSender(senders...)
	}
}
