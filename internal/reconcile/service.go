package reconcile

import (
	"context"
	"time"

	"go.uber.org/zap"

	"wager-platform/internal/bet"
	"wager-platform/internal/gateway"
	"wager-platform/internal/shared/metrics"
	"wager-platform/internal/wallet"
)

// Gateways resolve o cliente do gateway de um appid.
type Gateways interface {
	Caller(appid string) (gateway.Caller, error)
}

// RollbackPublisher enfileira o estorno de uma aposta expirada.
type RollbackPublisher interface {
	PublishRollback(ctx context.Context, betID int64, attempt int) error
}

// Service confirma ordens locais contra o registro autoritativo do gateway.
// Chamado pelo worker (fan-out do webhook) e sincronamente pelo polling do
// cliente; as duas vias podem correr ao mesmo tempo sobre a mesma ordem.
type Service struct {
	log        *zap.Logger
	repo       Repo
	gateways   Gateways
	rollback   RollbackPublisher
	betExpires time.Duration
}

func NewService(log *zap.Logger, repo Repo, gws Gateways, rollback RollbackPublisher, betExpires time.Duration) *Service {
	return &Service{log: log, repo: repo, gateways: gws, rollback: rollback, betExpires: betExpires}
}

// CheckBet confirma uma aposta pendente contra o gateway. Idempotente: toda
// transição é uma escrita condicional, então webhooks duplicados e polling
// concorrente nunca aplicam a confirmação duas vezes.
func (s *Service) CheckBet(ctx context.Context, betID int64) (*bet.Order, error) {
	order, acc, err := s.repo.GetBet(ctx, betID)
	if err != nil {
		return nil, err
	}
	if order.Terminal() {
		// curto-circuito idempotente: estado terminal volta como está
		return order, nil
	}

	gw, err := s.gateways.Caller(acc.AppID)
	if err != nil {
		return nil, err
	}

	_, confirmed, err := gw.QueryConsume(ctx, gateway.OrderRef(gateway.RefBet, order.ID))
	if err != nil {
		metrics.GatewayErrors.WithLabelValues("query_consume").Inc()
		return order, err
	}
	if !confirmed {
		// sem consumo do lado do gateway: devolve o estado atual, sem mutação
		return order, nil
	}

	outcome, err := s.repo.ConfirmBetPaid(ctx, betID, s.betExpires)
	if err != nil {
		return nil, err
	}
	metrics.OrdersReconciled.WithLabelValues(outcome).Inc()

	if outcome == OutcomeExpired {
		// confirmação tardia: o valor já saiu do usuário, devolve via fila
		s.log.Warn("bet confirmed after expiry, scheduling rollback", zap.Int64("betId", betID))
		if err := s.rollback.PublishRollback(ctx, betID, 1); err != nil {
			return nil, err
		}
	}

	order, _, err = s.repo.GetBet(ctx, betID)
	return order, err
}

// CheckRecharge confirma uma recarga pendente; o crédito de saldo acontece
// na mesma transação da transição condicional.
func (s *Service) CheckRecharge(ctx context.Context, id int64) (*wallet.RechargeOrder, error) {
	order, acc, err := s.repo.GetRecharge(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != wallet.StatusPending {
		return order, nil
	}

	gw, err := s.gateways.Caller(acc.AppID)
	if err != nil {
		return nil, err
	}

	data, confirmed, err := gw.QueryConsume(ctx, gateway.OrderRef(gateway.RefRecharge, order.ID))
	if err != nil {
		metrics.GatewayErrors.WithLabelValues("query_consume").Inc()
		return order, err
	}
	if !confirmed {
		return order, nil
	}

	outcome, err := s.repo.ConfirmRecharge(ctx, id, data.OrderNo)
	if err != nil {
		return nil, err
	}
	metrics.OrdersReconciled.WithLabelValues(outcome).Inc()

	order, _, err = s.repo.GetRecharge(ctx, id)
	return order, err
}
