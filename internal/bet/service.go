package bet

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"wager-platform/internal/gateway"
	"wager-platform/internal/odds"
	"wager-platform/internal/shared/apperr"
	"wager-platform/internal/shared/config"
	"wager-platform/internal/shared/metrics"
)

// Rules são os limites de aposta vindos da configuração.
type Rules struct {
	Min              int64
	Max              int64
	Multiple         int64
	MaxStakePerMatch int64
	FundingMode      config.FundingMode
}

// PaymentData é o que o cliente precisa para concluir o pagamento externo
// de um pedido criado em modo external.
type PaymentData struct {
	OutOrderNo string `json:"out_order_no"`
	Amount     int64  `json:"amount"`
}

// Service implementa o ciclo de vida de colocação de apostas.
type Service struct {
	log   *zap.Logger
	repo  Repo
	cache *OddCache // pré-checagem barata; a leitura autoritativa é na transação
	rules Rules
}

func NewService(log *zap.Logger, repo Repo, cache *OddCache, rules Rules) *Service {
	return &Service{log: log, repo: repo, cache: cache, rules: rules}
}

// Place cria um pedido de aposta. Em modo balance o débito acontece na mesma
// transação da criação; em modo external o pedido nasce pending e devolve os
// dados de pagamento para o gateway puxar o valor.
func (s *Service) Place(ctx context.Context, accountID, oddID int64, betType string, stake int64) (*Order, *PaymentData, error) {
	if stake < s.rules.Min || stake > s.rules.Max || stake%s.rules.Multiple != 0 {
		metrics.BetsRejected.WithLabelValues("stake_bounds").Inc()
		return nil, nil, apperr.ErrStakeOutOfBounds
	}

	// Pré-checagem pelo snapshot em cache: recusa cedo sem tocar no banco
	if s.cache != nil {
		if snap, err := s.cache.Get(ctx, oddID); err == nil && snap != nil && !snap.IsActive {
			metrics.BetsRejected.WithLabelValues("odd_inactive").Inc()
			return nil, nil, apperr.ErrOddInactive
		}
	}

	funded := s.rules.FundingMode == config.FundingBalance

	var seen *Odd // snapshot lido na transação, usado para repovoar o cache
	build := func(odd Odd, match Match, now time.Time) (*Order, error) {
		cp := odd
		if !match.BetEnabled || match.Canceled {
			cp.IsActive = false
		}
		seen = &cp
		if !odd.IsActive || !match.BetEnabled || match.Canceled {
			return nil, apperr.ErrOddInactive
		}
		if !match.MatchTime.After(now) {
			return nil, apperr.ErrMatchStarted
		}
		value, err := odds.ValueFor(odd.Base, betType, odd.Value0, odd.Value1, odd.Value2)
		if err != nil {
			return nil, err
		}

		o := &Order{
			MatchID:   odd.MatchID,
			Base:      odd.Base,
			BetType:   betType,
			Condition: odd.Condition,
			Value:     value,
			Amount:    stake,
			Status:    StatusPending,
		}
		if funded {
			o.Status = StatusPaid
			o.PaidAt = &now
		}
		return o, nil
	}

	order, err := s.repo.Place(ctx, accountID, oddID, funded, s.rules.MaxStakePerMatch, build)

	// Repovoa o cache fora da transação, com o que a transação leu
	if s.cache != nil && seen != nil {
		if cerr := s.cache.Set(ctx, *seen); cerr != nil {
			s.log.Warn("odd cache refresh failed", zap.Int64("oddId", oddID), zap.Error(cerr))
		}
	}

	if err != nil {
		var be *apperr.Error
		if errors.As(err, &be) {
			metrics.BetsRejected.WithLabelValues(be.Message).Inc()
		}
		return nil, nil, err
	}

	metrics.BetsPlaced.WithLabelValues(string(s.rules.FundingMode)).Inc()
	s.log.Info("bet placed",
		zap.Int64("betId", order.ID),
		zap.Int64("accountId", accountID),
		zap.Int64("matchId", order.MatchID),
		zap.String("type", betType),
		zap.Int64("amount", stake),
		zap.String("status", order.Status),
	)

	var payment *PaymentData
	if !funded {
		payment = &PaymentData{
			OutOrderNo: gateway.OrderRef(gateway.RefBet, order.ID),
			Amount:     stake,
		}
	}
	return order, payment, nil
}

// Get retorna o pedido pelo id.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.repo.Get(ctx, id)
}

// Records lista o extrato de apostas da conta.
func (s *Service) Records(ctx context.Context, q RecordsQuery) ([]Record, int, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	return s.repo.Records(ctx, q)
}

// BetableMatches lista as partidas abertas para aposta nas próximas 24 horas.
func (s *Service) BetableMatches(ctx context.Context) ([]BetableMatch, error) {
	return s.repo.BetableMatches(ctx, time.Now())
}
