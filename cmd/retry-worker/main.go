package main

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"wager-platform/internal/gateway"
	"wager-platform/internal/ledger"
	"wager-platform/internal/shared/config"
	"wager-platform/internal/shared/db"
	"wager-platform/internal/shared/kafka"
	"wager-platform/internal/shared/logger"
	"wager-platform/internal/shared/metrics"
	"wager-platform/internal/wallet"
	"wager-platform/pkg/contracts/events"
)

// handlerFor adapta um método do serviço de carteira para a fila de
// retentativa correspondente.
func handlerFor(log *zap.Logger, process func(ctx context.Context, id int64, attempt int) error) kafka.Handler {
	return func(ctx context.Context, value []byte) error {
		var msg events.RetryPayout
		if err := json.Unmarshal(value, &msg); err != nil {
			log.Error("unmarshal retry payout", zap.Error(err))
			return nil
		}
		return process(ctx, msg.OrderID, msg.Attempt)
	}
}

func main() {
	cfg, err := config.Load("retry-worker")
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

	store := ledger.NewStore(pg)
	svc := wallet.NewService(log, wallet.NewPostgres(pg, store), registry, retryPub, cfg.RetryMaxAttempts, cfg.FundingMode)

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})

	// Uma fila por tipo de pagamento: saque, rollback de aposta expirada e
	// renda de liquidação. Cada uma roda seu próprio loop de consumo.
	queues := []struct {
		topic   string
		handler kafka.Handler
	}{
		{cfg.TopicWithdrawalRetry, handlerFor(log, svc.ProcessWithdrawalRetry)},
		{cfg.TopicConsumeRollback, handlerFor(log, svc.ProcessRollback)},
		{cfg.TopicSettlementIncome, handlerFor(log, svc.ProcessIncome)},
	}

	ctx := context.Background()
	errc := make(chan error, len(queues))
	for _, q := range queues {
		reader := kafka.NewReader(cfg.KafkaBrokers, q.topic, "retry-worker")
		defer reader.Close()
		requeue := kafka.NewWriter(cfg.KafkaBrokers, q.topic)
		defer requeue.Close()

		consumer := &kafka.Consumer{Log: log, Reader: reader, Requeue: requeue}
		handler := q.handler
		log.Info("retry-worker consuming", zap.String("topic", q.topic))
		go func() {
			errc <- consumer.Run(ctx, handler)
		}()
	}

	log.Fatal("consumer stopped", zap.Error(<-errc))
}
