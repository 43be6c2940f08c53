package wallet

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"wager-platform/internal/bet"
	"wager-platform/internal/gateway"
	"wager-platform/internal/shared/apperr"
	"wager-platform/internal/shared/config"
	"wager-platform/internal/shared/metrics"
)

// Gateways resolve o cliente do gateway de um appid.
type Gateways interface {
	Caller(appid string) (gateway.Caller, error)
}

// RetryPublisher reenfileira operações de pagamento com atraso.
type RetryPublisher interface {
	PublishWithdrawalRetry(ctx context.Context, id int64, attempt int) error
	PublishRollback(ctx context.Context, betID int64, attempt int) error
	PublishIncome(ctx context.Context, betID int64, attempt int) error
	PublishWithdrawalDLQ(ctx context.Context, id int64) error
}

// Service implementa o ciclo de saque/recarga e o despacho de retentativas.
// Nenhuma chamada ao gateway acontece dentro de transação de ledger.
type Service struct {
	log         *zap.Logger
	repo        Repo
	gateways    Gateways
	retry       RetryPublisher
	maxAttempts int
	fundingMode config.FundingMode
}

func NewService(log *zap.Logger, repo Repo, gws Gateways, retry RetryPublisher, maxAttempts int, mode config.FundingMode) *Service {
	return &Service{
		log:         log,
		repo:        repo,
		gateways:    gws,
		retry:       retry,
		maxAttempts: maxAttempts,
		fundingMode: mode,
	}
}

// RequestWithdrawal debita o saldo e cria a ordem de saque; a partir daí o
// chamador sempre recebe sucesso, mesmo que o pagamento externo ainda esteja
// em trânsito — falha de gateway vira retentativa adiada.
func (s *Service) RequestWithdrawal(ctx context.Context, accountID, amount int64) (*WithdrawalOrder, error) {
	if amount <= 0 {
		return nil, apperr.ErrStakeOutOfBounds
	}

	order, err := s.repo.CreateWithdrawal(ctx, accountID, amount)
	if err != nil {
		return nil, err
	}

	// Primeira tentativa imediata, fora da transação de criação
	if err := s.attemptWithdrawal(ctx, order.ID, 1); err != nil {
		s.log.Warn("withdrawal first attempt failed, scheduling retry",
			zap.Int64("withdrawalId", order.ID), zap.Error(err))
	}
	return order, nil
}

// ProcessWithdrawalRetry é o handler da fila de retentativa de saque.
func (s *Service) ProcessWithdrawalRetry(ctx context.Context, id int64, attempt int) error {
	return s.attemptWithdrawal(ctx, id, attempt)
}

func (s *Service) attemptWithdrawal(ctx context.Context, id int64, attempt int) error {
	order, acc, err := s.repo.GetWithdrawal(ctx, id)
	if errors.Is(err, apperr.ErrOrderNotFound) {
		s.log.Error("withdrawal retry for unknown order", zap.Int64("withdrawalId", id))
		return nil
	}
	if err != nil {
		return err
	}
	if order.Status != StatusPending {
		// outro caminho já completou (ou falhou terminalmente)
		return nil
	}

	if s.maxAttempts > 0 && attempt > s.maxAttempts {
		// Esgotou o orçamento de tentativas: estado terminal para o
		// operador em vez de loop infinito.
		if _, err := s.repo.FailWithdrawal(ctx, id); err != nil {
			return err
		}
		s.log.Error("withdrawal moved to failed after max attempts",
			zap.Int64("withdrawalId", id), zap.Int("attempts", attempt-1))
		return s.retry.PublishWithdrawalDLQ(ctx, id)
	}

	_ = s.repo.TouchWithdrawalAttempt(ctx, id)

	gw, err := s.gateways.Caller(acc.AppID)
	if err != nil {
		s.log.Error("withdrawal with invalid appid",
			zap.Int64("withdrawalId", id), zap.String("appid", acc.AppID))
		return nil
	}

	orderNo, err := gw.Withdrawal(ctx, acc.OpenID, order.Amount, gateway.OrderRef(gateway.RefWithdrawal, order.ID))
	if err != nil {
		metrics.GatewayErrors.WithLabelValues("withdrawal").Inc()
		metrics.PayoutRetries.Inc()
		// falhou: reenfileira com atraso em vez de retentar inline
		return s.retry.PublishWithdrawalRetry(ctx, id, attempt+1)
	}

	applied, err := s.repo.CompleteWithdrawal(ctx, id, orderNo)
	if err != nil {
		return err
	}
	if applied {
		s.log.Info("withdrawal completed",
			zap.Int64("withdrawalId", id), zap.String("orderNo", orderNo))
	}
	return nil
}

// RequestRecharge cria a ordem de recarga e devolve a referência que o
// gateway vai cobrar; a confirmação chega pela reconciliação.
func (s *Service) RequestRecharge(ctx context.Context, accountID, amount int64) (*RechargeOrder, *bet.PaymentData, error) {
	if amount <= 0 {
		return nil, nil, apperr.ErrStakeOutOfBounds
	}
	order, err := s.repo.CreateRecharge(ctx, accountID, amount)
	if err != nil {
		return nil, nil, err
	}
	return order, &bet.PaymentData{
		OutOrderNo: gateway.OrderRef(gateway.RefRecharge, order.ID),
		Amount:     amount,
	}, nil
}

// ProcessRollback devolve a stake de uma aposta expirada. Em modo balance o
// estorno é um crédito de ledger; em modo external o valor volta pelo
// gateway. A transição expired → refunding acontece antes da chamada de rede
// e a ordem só fecha (refunded) depois do gateway confirmar.
func (s *Service) ProcessRollback(ctx context.Context, betID int64, attempt int) error {
	order, acc, err := s.repo.GetBetForPayout(ctx, betID)
	if errors.Is(err, apperr.ErrOrderNotFound) {
		s.log.Error("rollback for unknown bet", zap.Int64("betId", betID))
		return nil
	}
	if err != nil {
		return err
	}

	switch order.Status {
	case bet.StatusExpired, bet.StatusRefunding:
	default:
		return nil // já tratado em outro caminho
	}

	if s.fundingMode == config.FundingBalance {
		applied, err := s.repo.RefundBetToLedger(ctx, betID)
		if err != nil {
			return err
		}
		if applied {
			s.log.Info("expired bet refunded to balance", zap.Int64("betId", betID))
		}
		return nil
	}

	if order.Status == bet.StatusExpired {
		if _, err := s.repo.MarkBetRefunding(ctx, betID); err != nil {
			return err
		}
	}

	if s.maxAttempts > 0 && attempt > s.maxAttempts {
		s.log.Error("bet rollback exhausted retries, operator action needed",
			zap.Int64("betId", betID), zap.Int("attempts", attempt-1))
		return s.retry.PublishWithdrawalDLQ(ctx, betID)
	}

	gw, err := s.gateways.Caller(acc.AppID)
	if err != nil {
		s.log.Error("rollback with invalid appid",
			zap.Int64("betId", betID), zap.String("appid", acc.AppID))
		return nil
	}

	if _, err := gw.Withdrawal(ctx, acc.OpenID, order.Amount, gateway.OrderRef(gateway.RefRollback, order.ID)); err != nil {
		metrics.GatewayErrors.WithLabelValues("withdrawal").Inc()
		metrics.PayoutRetries.Inc()
		return s.retry.PublishRollback(ctx, betID, attempt+1)
	}

	if _, err := s.repo.MarkBetRefunded(ctx, betID); err != nil {
		return err
	}
	s.log.Info("expired bet refunded via gateway", zap.Int64("betId", betID))
	return nil
}

// ProcessIncome paga a renda de liquidação de uma aposta pelo gateway
// (modo external). Guardado por settlement_at IS NULL: paga no máximo uma vez.
func (s *Service) ProcessIncome(ctx context.Context, betID int64, attempt int) error {
	order, acc, err := s.repo.GetBetForPayout(ctx, betID)
	if errors.Is(err, apperr.ErrOrderNotFound) {
		s.log.Error("income payout for unknown bet", zap.Int64("betId", betID))
		return nil
	}
	if err != nil {
		return err
	}
	if order.SettlementAt != nil || order.Result == nil || order.ResultAmount <= 0 {
		return nil
	}

	if s.maxAttempts > 0 && attempt > s.maxAttempts {
		s.log.Error("income payout exhausted retries, operator action needed",
			zap.Int64("betId", betID), zap.Int("attempts", attempt-1))
		return s.retry.PublishWithdrawalDLQ(ctx, betID)
	}

	gw, err := s.gateways.Caller(acc.AppID)
	if err != nil {
		s.log.Error("income payout with invalid appid",
			zap.Int64("betId", betID), zap.String("appid", acc.AppID))
		return nil
	}

	if _, err := gw.Withdrawal(ctx, acc.OpenID, order.ResultAmount, gateway.OrderRef(gateway.RefIncome, order.ID)); err != nil {
		metrics.GatewayErrors.WithLabelValues("withdrawal").Inc()
		metrics.PayoutRetries.Inc()
		return s.retry.PublishIncome(ctx, betID, attempt+1)
	}

	applied, err := s.repo.MarkBetIncomePaid(ctx, betID)
	if err != nil {
		return err
	}
	if applied {
		s.log.Info("settlement income paid",
			zap.Int64("betId", betID), zap.Int64("amount", order.ResultAmount))
	}
	return nil
}
