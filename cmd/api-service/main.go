package main

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	httpapi "wager-platform/internal/api/http"
	"wager-platform/internal/bet"
	"wager-platform/internal/gateway"
	"wager-platform/internal/ledger"
	"wager-platform/internal/reconcile"
	"wager-platform/internal/shared/cache"
	"wager-platform/internal/shared/config"
	"wager-platform/internal/shared/db"
	"wager-platform/internal/shared/kafka"
	"wager-platform/internal/shared/logger"
	"wager-platform/internal/shared/metrics"
	"wager-platform/internal/wallet"
)

func main() {
	cfg, err := config.Load("api-service")
	if err != nil {
		panic(err)
	}
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()
	if err := db.Bootstrap(context.Background(), pg); err != nil {
		log.Fatal("bootstrap", zap.Error(err))
	}

	// Redis
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}

	// Gateway de pagamento
	apps, err := cfg.ParseGatewayApps()
	if err != nil {
		log.Fatal("gateway apps", zap.Error(err))
	}
	registry := gateway.NewRegistry(apps)

	// Kafka writers
	reconcileWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicReconcile)
	defer reconcileWriter.Close()
	retryPub := &wallet.KafkaPublisher{
		WithdrawalRetry: kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWithdrawalRetry),
		Rollback:        kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicConsumeRollback),
		Income:          kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicSettlementIncome),
		DLQ:             kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWithdrawalDLQ),
		Delay:           cfg.RetryDelay,
	}
	defer retryPub.WithdrawalRetry.Close()
	defer retryPub.Rollback.Close()
	defer retryPub.Income.Close()
	defer retryPub.DLQ.Close()

	// deps
	store := ledger.NewStore(pg)
	bets := bet.NewService(log, bet.NewPostgres(pg, store), bet.NewOddCache(rdb), bet.Rules{
		Min:              cfg.BetMin,
		Max:              cfg.BetMax,
		Multiple:         cfg.BetMultiple,
		MaxStakePerMatch: cfg.MaxStakePerMatch,
		FundingMode:      cfg.FundingMode,
	})
	wallets := wallet.NewService(log, wallet.NewPostgres(pg, store), registry, retryPub, cfg.RetryMaxAttempts, cfg.FundingMode)
	reconciles := reconcile.NewService(log, reconcile.NewPostgres(pg, store), registry, retryPub, cfg.BetExpires)

	// metrics/health
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})

	// HTTP público
	api := &httpapi.API{
		Log:       log,
		Ledger:    store,
		Bets:      bets,
		Wallet:    wallets,
		Reconcile: reconciles,
		Gateways:  registry,
		Publisher: &reconcile.KafkaPublisher{Writer: reconcileWriter},
	}
	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: api.Router(),
	}

	log.Info("api-service listening",
		zap.String("addr", srv.Addr),
		zap.String("fundingMode", string(cfg.FundingMode)),
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
