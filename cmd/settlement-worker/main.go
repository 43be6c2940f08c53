package main

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"wager-platform/internal/ledger"
	"wager-platform/internal/settle"
	"wager-platform/internal/shared/config"
	"wager-platform/internal/shared/db"
	"wager-platform/internal/shared/kafka"
	"wager-platform/internal/shared/logger"
	"wager-platform/internal/shared/metrics"
	"wager-platform/internal/wallet"
	"wager-platform/pkg/contracts/events"
)

func main() {
	cfg, err := config.Load("settlement-worker")
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

	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicSettlement, "settlement-worker")
	defer reader.Close()
	requeue := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicSettlement)
	defer requeue.Close()

	incomeWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicSettlementIncome)
	defer incomeWriter.Close()
	income := &wallet.KafkaPublisher{Income: incomeWriter, Delay: cfg.RetryDelay}

	store := ledger.NewStore(pg)
	svc := settle.NewService(log, settle.NewPostgres(pg, store), income, cfg.FundingMode)

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})

	log.Info("settlement-worker started", zap.String("consume", cfg.TopicSettlement))

	consumer := &kafka.Consumer{Log: log, Reader: reader, Requeue: requeue}
	err = consumer.Run(context.Background(), func(ctx context.Context, value []byte) error {
		var trigger events.SettlementTrigger
		if err := json.Unmarshal(value, &trigger); err != nil {
			log.Error("unmarshal settlement trigger", zap.Error(err))
			return nil // veneno: descarta em vez de reenfileirar
		}
		return svc.SettleMatch(ctx, trigger.MatchID)
	})
	log.Fatal("consumer stopped", zap.Error(err))
}
