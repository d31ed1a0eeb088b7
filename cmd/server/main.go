package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/cache"
	"github.com/oggyb/matchbot/internal/config"
	"github.com/oggyb/matchbot/internal/db"
	"github.com/oggyb/matchbot/internal/logger"
	"github.com/oggyb/matchbot/internal/notify"
	"github.com/oggyb/matchbot/internal/scheduler"
	"github.com/oggyb/matchbot/internal/server"
	"github.com/oggyb/matchbot/internal/service/admin"
	"github.com/oggyb/matchbot/internal/service/discovery"
	"github.com/oggyb/matchbot/internal/service/matching"
	"github.com/oggyb/matchbot/internal/service/moderation"
	"github.com/oggyb/matchbot/internal/service/premium"
	"github.com/oggyb/matchbot/internal/service/profile"
	"github.com/oggyb/matchbot/internal/service/referral"
	"github.com/oggyb/matchbot/internal/service/stats"
	"github.com/oggyb/matchbot/internal/telegram"
	"github.com/oggyb/matchbot/internal/telemetry"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	flush, err := telemetry.Init(cfg)
	if err != nil {
		log.Warn("sentry disabled", "err", err)
	}
	defer flush()

	database, err := db.NewDB(cfg)
	if err != nil {
		telemetry.CaptureError(err, "failed to init db")
		os.Exit(1)
	}

	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Warn("redis unavailable, pending-like counts are uncached", "err", err)
		_ = redisCache.Client.Close()
		redisCache = nil
	}

	appCtx := app.New(database, redisCache, log)
	defer func() {
		if err := appCtx.Close(); err != nil {
			log.Warn("close resources", "err", err)
		}
	}()

	var (
		api      *tgbotapi.BotAPI
		notifier notify.Notifier = notify.Nop{}
	)
	if cfg.Telegram.Token != "" {
		api, err = tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			telemetry.CaptureError(err, "failed to connect to telegram")
			os.Exit(1)
		}
		notifier = telegram.NewNotifier(api)
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN is empty, bot is disabled")
	}

	premiumSvc := premium.NewService(appCtx, notifier, nil)
	referralSvc := referral.NewService(appCtx, premiumSvc, notifier, referral.Options{
		Threshold:  cfg.Referral.Threshold,
		RewardDays: cfg.Referral.RewardDays,
		MaxUses:    cfg.Referral.MaxUses,
	})
	moderationSvc := moderation.NewService(appCtx)
	matchingSvc := matching.NewService(appCtx, notifier, moderationSvc)
	statsSvc := stats.NewService(appCtx)
	svc := telegram.Services{
		Profiles:  profile.NewService(appCtx, referralSvc),
		Discovery: discovery.NewService(appCtx, nil),
		Matching:  matchingSvc,
		Referrals: referralSvc,
		Premium:   premiumSvc,
		Stats:     statsSvc,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	serverErrors := make(chan error, 2)
	run := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				serverErrors <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	var bot *telegram.Bot
	if api != nil {
		bot = telegram.NewBot(api, svc, log, telegram.Options{Username: api.Self.UserName, IsAdmin: cfg.IsAdmin})
		if err := configureUpdates(api, cfg); err != nil {
			telemetry.CaptureError(err, "failed to configure telegram updates")
			os.Exit(1)
		}
		if cfg.Telegram.Mode == "poll" {
			wg.Add(1)
			go func() {
				defer wg.Done()
				bot.Poll(ctx, api)
			}()
		}
	}

	if cfg.Scheduler.Enabled {
		autoLiker := scheduler.New(appCtx, matchingSvc, scheduler.ConfigFrom(cfg))
		autoLiker.Start(ctx)
		defer autoLiker.Stop()
	}

	adminSvc := admin.NewService(appCtx, admin.Deps{
		Moderation: moderationSvc,
		Referrals:  referralSvc,
		Premium:    premiumSvc,
		Matching:   matchingSvc,
		Stats:      statsSvc,
	})
	grpcServer := server.NewGRPCServer(cfg, log, admin.NewRegistrar(adminSvc))
	run("grpc", func() error {
		log.Info("starting gRPC server", "addr", cfg.GRPC.Host+":"+cfg.GRPC.Port)
		return server.ServeGRPC(ctx, cfg, grpcServer)
	})

	httpDeps := server.HTTPDeps{AppCtx: appCtx, Stats: statsSvc, WebhookSecret: cfg.Telegram.WebhookSecret}
	if bot != nil && cfg.Telegram.Mode == "webhook" {
		httpDeps.Updates = bot
	}
	run("http", func() error {
		log.Info("starting HTTP server", "addr", cfg.HTTP.Addr)
		return server.ServeHTTP(ctx, cfg.HTTP.Addr, server.NewHTTPHandler(httpDeps))
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("received signal, shutting down", "signal", sig.String())
	case err := <-serverErrors:
		telemetry.CaptureError(err, "server failed, shutting down")
	}
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info("shutdown complete")
	case <-time.After(15 * time.Second):
		log.Warn("shutdown timed out")
	}
}

// configureUpdates registers the webhook in webhook mode and removes any
// stale webhook in poll mode, since Telegram refuses getUpdates while one
// is set.
func configureUpdates(api *tgbotapi.BotAPI, cfg *config.Config) error {
	if cfg.Telegram.Mode == "poll" {
		_, err := api.Request(tgbotapi.DeleteWebhookConfig{})
		return err
	}
	url := strings.TrimRight(cfg.Telegram.WebhookURL, "/") + "/telegram/webhook/" + cfg.Telegram.WebhookSecret
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return err
	}
	_, err = api.Request(wh)
	return err
}
