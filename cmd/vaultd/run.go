package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	cli "gopkg.in/urfave/cli.v1"

	"TrancheVault/internal/api"
	"TrancheVault/internal/config"
	"TrancheVault/internal/market"
	"TrancheVault/internal/notifier"
	"TrancheVault/internal/recorder"
	"TrancheVault/internal/scheduler"
)

var log = logrus.WithField("module", "vaultd")

func runCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log.Info("TrancheVault starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg)
}

func serve(ctx context.Context, cfg *config.Config) error {
	v, _, err := openVault(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := v.Checkpoint(); err != nil {
			log.WithError(err).Error("final checkpoint")
		}
	}()

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.WithError(err).Warn("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}
	defer rec.Close()

	// Init notifier
	var (
		sender notifier.Sender = notifier.NoopNotifier{}
		tn     *notifier.TelegramNotifier
	)
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		sender = tn
	}

	// Init market collector
	var col *market.Collector
	if cfg.Market.BaseURL != "" {
		fetcher := market.NewAMMFetcher(cfg.Market.BaseURL, cfg.Market.APIKey, cfg.Proxy)
		col = market.NewCollector(fetcher, cfg.Market.SeniorSymbol, cfg.Market.JuniorSymbol)
		log.WithField("source", fetcher.Name()).Info("market data enabled")
	}

	g, gctx := errgroup.WithContext(ctx)

	sched := scheduler.NewScheduler(gctx, v, cfg.OwnerAddress(), col, sender, rec)
	sched.AutoRestart = cfg.Keeper.AutoRestart
	sched.Decimals = cfg.Vault.Decimals
	if err := sched.RegisterAll(scheduler.Schedule{
		Keeper:     cfg.Schedule.KeeperCron,
		Checkpoint: cfg.Schedule.CheckpointCron,
		Report:     cfg.Schedule.ReportCron,
		Market:     cfg.Schedule.MarketCron,
	}); err != nil {
		return err
	}
	if cfg.Schedule.KeeperCron == "" {
		log.Info("keeper disabled, phases advance only on operator command")
	}
	sched.Attach()
	sched.Start()
	g.Go(func() error {
		<-gctx.Done()
		sched.Stop()
		return nil
	})

	srv := &api.Server{Vault: v, Recorder: rec, Decimals: cfg.Vault.Decimals}
	g.Go(func() error { return srv.ListenAndServe(gctx, cfg.API.Listen) })

	if tn != nil {
		g.Go(func() error {
			tn.StartPolling(gctx, sched.HandleCommand)
			return nil
		})
		log.Info("telegram polling started")
	}

	st := v.Status()
	log.WithFields(logrus.Fields{
		"phase": st.Phase,
		"cycle": st.Cycle,
		"owner": st.Owner.Hex(),
	}).Info("TrancheVault is running, press Ctrl+C to stop")

	err = g.Wait()
	log.Info("TrancheVault stopped")
	return err
}
