package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"premium-bot/internal/bot"
	"premium-bot/internal/config"
	"premium-bot/internal/database"
	"premium-bot/internal/entitlement"
	"premium-bot/internal/logger"
	"premium-bot/internal/payment"
	"premium-bot/internal/purchase"
	"premium-bot/internal/repository"
	"premium-bot/internal/server"
	"premium-bot/internal/support"
	"premium-bot/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Error("bot stopped with error", zap.Error(err))
		os.Exit(1)
	}
	zl.Info("bot stopped")
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	db, err := database.ConnectPostgres(cfg, zl)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	rdb, err := database.ConnectRedis(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer rdb.Close()

	entRepo := repository.NewEntitlementRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	linkRepo := repository.NewPaymentLinkRepository(db)
	convRepo := repository.NewConversationRepository(db)

	ents := entitlement.NewService(entRepo, zl.Named("entitlement"))
	gateways := payment.BuildRegistry(cfg, linkRepo, zl.Named("payment"))

	api, err := bot.NewAPI(cfg.BotToken)
	if err != nil {
		return err
	}
	notifier := bot.NewNotifier(api, cfg.AdminID, zl.Named("notifier"))

	orch := purchase.NewOrchestrator(purchase.Deps{
		Entitlements: ents,
		Ledger:       txRepo,
		Reviews:      reviewRepo,
		Pending:      payment.NewPendingStore(rdb, cfg.PendingTTL, cfg.PendingRetention),
		Guard:        payment.NewSettlementGuard(rdb),
		Gateways:     gateways,
		Notifier:     notifier,
		Log:          zl.Named("purchase"),
	})
	relay := support.NewRelay(convRepo, notifier, zl.Named("support"))
	sweeper := worker.NewSweeper(ents, notifier, cfg.SweepInterval, zl.Named("sweeper"))

	tg := bot.New(api, bot.Deps{
		Purchases:    orch,
		Entitlements: ents,
		Support:      relay,
		Gateways:     gateways,
		Links:        linkRepo,
		History:      txRepo,
		AdminID:      cfg.AdminID,
		ChannelURL:   cfg.ChannelURL,
		Log:          zl.Named("bot"),
	})

	webhooks := payment.NewWebhookHandler(func(ctx context.Context, gateway, reference string) error {
		_, err := orch.SettleByReference(ctx, gateway, reference)
		return err
	}, cfg.AllowedYooIp, cfg.TrustedProxies, zl.Named("webhook"))

	srv := server.New(cfg.HTTPAddr, webhooks, map[string]server.Check{
		"postgres": sqlDB.PingContext,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}, zl.Named("http"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tg.Start(gctx) })
	g.Go(func() error { return sweeper.Start(gctx) })
	g.Go(func() error { return srv.Start(gctx) })

	zl.Info("service started", zap.Strings("gateways", gateways.Names()))
	return g.Wait()
}
