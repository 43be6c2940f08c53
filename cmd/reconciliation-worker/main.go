package main

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"wager-platform/internal/gateway"
	"wager-platform/internal/ledger"
	"wager-platform/internal/reconcile"
	"wager-platform/internal/shared/config"
	"wager-platform/internal/shared/db"
	"wager-platform/internal/shared/kafka"
	"wager-platform/internal/shared/logger"
	"wager-platform/internal/shared/metrics"
	"wager-platform/internal/wallet"
	"wager-platform/pkg/contracts/events"
)

func main() {
	cfg, err := config.Load("reconciliation-worker")
	if err != nil {
		panic(err)
	}
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	apps, err := cfg.ParseGatewayApps()
	if err != nil {
		log.Fatal("gateway apps", zap.Error(err))
	}
	registry := gateway.NewRegistry(apps)

	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicReconcile, "reconciliation-worker")
	defer reader.Close()
	requeue := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicReconcile)
	defer requeue.Close()

	rollbackWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicConsumeRollback)
	defer rollbackWriter.Close()
	rollback := &wallet.KafkaPublisher{Rollback: rollbackWriter, Delay: cfg.RetryDelay}

	store := ledger.NewStore(pg)
	svc := reconcile.NewService(log, reconcile.NewPostgres(pg, store), registry, rollback, cfg.BetExpires)

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})

	log.Info("reconciliation-worker started", zap.String("consume", cfg.TopicReconcile))

	consumer := &kafka.Consumer{Log: log, Reader: reader, Requeue: requeue}
	err = consumer.Run(context.Background(), func(ctx context.Context, value []byte) error {
		var trigger events.ReconcileTrigger
		if err := json.Unmarshal(value, &trigger); err != nil {
			log.Error("unmarshal reconcile trigger", zap.Error(err))
			return nil
		}
		if trigger.Kind == "recharge" {
			_, err := svc.CheckRecharge(ctx, trigger.OrderID)
			return err
		}
		_, err := svc.CheckBet(ctx, trigger.OrderID)
		return err
	})
	log.Fatal("consumer stopped", zap.Error(err))
}
