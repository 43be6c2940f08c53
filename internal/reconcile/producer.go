package reconcile

import (
	"context"
	"encoding/json"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"

	skafka "wager-platform/internal/shared/kafka"
	"wager-platform/pkg/contracts/events"
)

// KafkaPublisher publica os pedidos de reconciliação vindos do webhook.
// A chave é o id da ordem: callbacks da mesma ordem caem na mesma partição.
type KafkaPublisher struct {
	Writer *kafkago.Writer
}

func (p *KafkaPublisher) PublishReconcile(ctx context.Context, trigger events.ReconcileTrigger) error {
	b, err := json.Marshal(trigger)
	if err != nil {
		return err
	}
	return skafka.WriteJSON(ctx, p.Writer, strconv.FormatInt(trigger.OrderID, 10), b)
}
