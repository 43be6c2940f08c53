package settle

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"wager-platform/internal/bet"
	"wager-platform/internal/odds"
	"wager-platform/internal/shared/apperr"
	"wager-platform/internal/shared/config"
	"wager-platform/internal/shared/metrics"
)

// IncomePublisher enfileira o pagamento de renda pelo gateway (modo external).
type IncomePublisher interface {
	PublishIncome(ctx context.Context, betID int64, attempt int) error
}

// Service liquida as apostas de uma partida quando o placar final chega.
// O gatilho é entregue at-least-once; cada pedido liquida no máximo uma vez
// graças à guarda condicional result IS NULL.
type Service struct {
	log         *zap.Logger
	repo        Repo
	income      IncomePublisher
	fundingMode config.FundingMode
}

func NewService(log *zap.Logger, repo Repo, income IncomePublisher, mode config.FundingMode) *Service {
	return &Service{log: log, repo: repo, income: income, fundingMode: mode}
}

// SettleMatch processa um gatilho de liquidação.
func (s *Service) SettleMatch(ctx context.Context, matchID int64) error {
	match, err := s.repo.GetMatch(ctx, matchID)
	if errors.Is(err, apperr.ErrOrderNotFound) {
		s.log.Warn("settlement trigger for unknown match", zap.Int64("matchId", matchID))
		return nil
	}
	if err != nil {
		return err
	}

	if match.Canceled {
		return s.voidMatch(ctx, matchID, match.CancelReason)
	}
	if !match.HasScore {
		// placar ainda não registrado; nada a fazer
		return nil
	}

	orders, err := s.repo.OpenOrders(ctx, matchID)
	if err != nil {
		return err
	}

	balance := s.fundingMode == config.FundingBalance
	for _, o := range orders {
		out := odds.Evaluate(o.BetType, o.Condition, match.Score1, match.Score2)
		payout := odds.Payout(out, o.Amount, o.Value)
		text := odds.ResultText(o.Base, match.Score1, match.Score2)

		// Modo balance credita e fecha na mesma transação; modo external
		// só fecha aqui quando não há nada a pagar — payout positivo fecha
		// quando o gateway confirmar o saque de renda.
		markSettled := balance || payout == 0
		applied, err := s.repo.SettleOrder(ctx, o.ID, out, payout, text, balance, markSettled)
		if err != nil {
			return err
		}
		if !applied {
			continue
		}

		metrics.BetsSettled.WithLabelValues(out.String()).Inc()
		s.log.Info("bet settled",
			zap.Int64("betId", o.ID),
			zap.Int64("matchId", matchID),
			zap.String("result", out.String()),
			zap.Int64("payout", payout),
		)

		if !balance && payout > 0 {
			if err := s.income.PublishIncome(ctx, o.ID, 1); err != nil {
				return err
			}
		}
	}
	return nil
}

// voidMatch anula todas as apostas abertas de uma partida cancelada ou
// interrompida, devolvendo a stake integral independente de placar.
func (s *Service) voidMatch(ctx context.Context, matchID int64, reason string) error {
	orders, err := s.repo.VoidableOrders(ctx, matchID)
	if err != nil {
		return err
	}

	balance := s.fundingMode == config.FundingBalance
	for _, o := range orders {
		applied, err := s.repo.VoidOrder(ctx, o.ID, reason, balance)
		if err != nil {
			return err
		}
		if !applied {
			continue
		}

		metrics.BetsSettled.WithLabelValues("void").Inc()
		s.log.Info("bet voided",
			zap.Int64("betId", o.ID),
			zap.Int64("matchId", matchID),
			zap.String("reason", reason),
		)

		// Modo external: aposta paga tem a stake devolvida pelo gateway
		if !balance && o.Status == bet.StatusPaid {
			if err := s.income.PublishIncome(ctx, o.ID, 1); err != nil {
				return err
			}
		}
	}
	return nil
}
