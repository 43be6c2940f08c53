package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler processa o corpo de uma mensagem. Entrega at-least-once:
// todo handler precisa ser idempotente.
type Handler func(ctx context.Context, value []byte) error

// Consumer é um loop de consumo supervisionado: busca uma mensagem por vez,
// confirma o offset só depois do handler concluir e, em caso de erro do
// handler, devolve a mensagem à própria fila antes de confirmar (nack por
// republicação). Falhas de transporte reiniciam a busca com backoff.
type Consumer struct {
	Log     *zap.Logger
	Reader  *kafka.Reader
	Requeue *kafka.Writer // escreve na mesma fila do Reader

	OnConsumed func()       // métricas (counter++)
	OnError    func(string) // métricas por fase
}

// Run executa o loop com o handler informado até o contexto encerrar.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	backoff := time.Second
	for {
		m, err := c.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.Log.Warn("kafka fetch failed", zap.Error(err))
			if c.OnError != nil {
				c.OnError("fetch")
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if c.OnConsumed != nil {
			c.OnConsumed()
		}

		// Mensagens adiadas (retentativas) carregam not_before_unix_ms;
		// com uma mensagem em voo por consumidor, esperar aqui equivale
		// ao delay da fila.
		if err := waitNotBefore(ctx, m.Value); err != nil {
			return err
		}

		if err := handle(ctx, m.Value); err != nil {
			c.Log.Error("handler failed",
				zap.String("topic", m.Topic),
				zap.ByteString("value", m.Value),
				zap.Error(err),
			)
			if c.OnError != nil {
				c.OnError("handle")
			}
			// nack: republica antes de confirmar o offset
			if werr := c.Requeue.WriteMessages(ctx, kafka.Message{Key: m.Key, Value: m.Value, Time: time.Now()}); werr != nil {
				c.Log.Error("requeue failed", zap.Error(werr))
				// sem republicar não confirma; a mensagem volta no rebalance
				continue
			}
			time.Sleep(500 * time.Millisecond)
		}

		if err := c.Reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.Log.Warn("commit failed", zap.Error(err))
		}
	}
}

func waitNotBefore(ctx context.Context, value []byte) error {
	var hint struct {
		NotBeforeUnixMs int64 `json:"not_before_unix_ms"`
	}
	if err := json.Unmarshal(value, &hint); err != nil || hint.NotBeforeUnixMs == 0 {
		return nil
	}
	wait := time.Until(time.UnixMilli(hint.NotBeforeUnixMs))
	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}
