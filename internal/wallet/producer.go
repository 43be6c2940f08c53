package wallet

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	skafka "wager-platform/internal/shared/kafka"
	"wager-platform/pkg/contracts/events"
)

// KafkaPublisher publica as mensagens de retentativa. Retentativas (attempt
// > 1) carregam not_before_unix_ms para adiar o reprocessamento.
type KafkaPublisher struct {
	WithdrawalRetry *kafkago.Writer
	Rollback        *kafkago.Writer
	Income          *kafkago.Writer
	DLQ             *kafkago.Writer
	Delay           time.Duration
}

func (p *KafkaPublisher) publish(ctx context.Context, w *kafkago.Writer, id int64, attempt int, delayed bool) error {
	msg := events.RetryPayout{OrderID: id, Attempt: attempt}
	if delayed {
		msg.NotBeforeUnixMs = time.Now().Add(p.Delay).UnixMilli()
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return skafka.WriteJSON(ctx, w, strconv.FormatInt(id, 10), b)
}

func (p *KafkaPublisher) PublishWithdrawalRetry(ctx context.Context, id int64, attempt int) error {
	return p.publish(ctx, p.WithdrawalRetry, id, attempt, attempt > 1)
}

func (p *KafkaPublisher) PublishRollback(ctx context.Context, betID int64, attempt int) error {
	return p.publish(ctx, p.Rollback, betID, attempt, attempt > 1)
}

func (p *KafkaPublisher) PublishIncome(ctx context.Context, betID int64, attempt int) error {
	return p.publish(ctx, p.Income, betID, attempt, attempt > 1)
}

func (p *KafkaPublisher) PublishWithdrawalDLQ(ctx context.Context, id int64) error {
	if p.DLQ == nil {
		return nil
	}
	return p.publish(ctx, p.DLQ, id, 0, false)
}
