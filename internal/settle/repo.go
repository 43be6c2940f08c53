package settle

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"wager-platform/internal/bet"
	"wager-platform/internal/ledger"
	"wager-platform/internal/odds"
	"wager-platform/internal/shared/apperr"
)

// Repo define a persistência da liquidação.
type Repo interface {
	GetMatch(ctx context.Context, matchID int64) (*bet.Match, error)
	// OpenOrders são as apostas pagas e ainda não liquidadas da partida.
	OpenOrders(ctx context.Context, matchID int64) ([]bet.Order, error)
	// VoidableOrders são as apostas abertas (pending ou paid) de uma
	// partida cancelada.
	VoidableOrders(ctx context.Context, matchID int64) ([]bet.Order, error)
	// SettleOrder grava o resultado com guarda condicional result IS NULL;
	// quando credit, o crédito do payout entra na mesma transação com o
	// mesmo lock de conta da colocação. false = já liquidada (benigno).
	SettleOrder(ctx context.Context, betID int64, out odds.Outcome, payout int64, text string, credit, markSettled bool) (bool, error)
	// VoidOrder anula uma aposta de partida cancelada devolvendo a stake.
	// creditIfPaid: o crédito só acontece se o pedido estava pago, decidido
	// sob lock na própria transação (pedidos pending nunca foram debitados).
	VoidOrder(ctx context.Context, betID int64, reason string, creditIfPaid bool) (bool, error)
}

// Postgres implementa Repo sobre banco Postgres
type Postgres struct {
	db     *sql.DB
	ledger *ledger.Store
}

func NewPostgres(db *sql.DB, ls *ledger.Store) *Postgres {
	return &Postgres{db: db, ledger: ls}
}

func (p *Postgres) GetMatch(ctx context.Context, matchID int64) (*bet.Match, error) {
	var (
		m              bet.Match
		score1, score2 sql.NullInt32
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT id, match_time, team1_name, team2_name, tournament,
		       bet_enabled, has_score, score1, score2, canceled, cancel_reason
		FROM matches WHERE id=$1`, matchID,
	).Scan(&m.ID, &m.MatchTime, &m.Team1Name, &m.Team2Name, &m.Tournament,
		&m.BetEnabled, &m.HasScore, &score1, &score2, &m.Canceled, &m.CancelReason)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Score1 = int(score1.Int32)
	m.Score2 = int(score2.Int32)
	return &m, nil
}

func (p *Postgres) OpenOrders(ctx context.Context, matchID int64) ([]bet.Order, error) {
	return p.listOrders(ctx, `
		SELECT id, account_id, match_id, base, bet_type, condition, value, amount, status
		FROM bet_orders
		WHERE match_id=$1 AND status='paid' AND result IS NULL
		ORDER BY id`, matchID)
}

func (p *Postgres) VoidableOrders(ctx context.Context, matchID int64) ([]bet.Order, error) {
	return p.listOrders(ctx, `
		SELECT id, account_id, match_id, base, bet_type, condition, value, amount, status
		FROM bet_orders
		WHERE match_id=$1 AND status IN ('pending','paid') AND result IS NULL
		ORDER BY id`, matchID)
}

func (p *Postgres) listOrders(ctx context.Context, query string, matchID int64) ([]bet.Order, error) {
	rows, err := p.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []bet.Order
	for rows.Next() {
		var o bet.Order
		if err := rows.Scan(&o.ID, &o.AccountID, &o.MatchID, &o.Base, &o.BetType,
			&o.Condition, &o.Value, &o.Amount, &o.Status); err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

func (p *Postgres) SettleOrder(ctx context.Context, betID int64, out odds.Outcome, payout int64, text string, credit, markSettled bool) (bool, error) {
	applied := false
	err := p.ledger.Tx(ctx, func(tx *sql.Tx) error {
		now := time.Now()
		status := "paid"
		var settledAt *time.Time
		if markSettled {
			status = bet.StatusSettled
			settledAt = &now
		}

		var accountID int64
		err := tx.QueryRowContext(ctx, `
			UPDATE bet_orders
			SET result=$2, result_amount=$3, result_text=$4, status=$5, settlement_at=$6
			WHERE id=$1 AND status='paid' AND result IS NULL
			RETURNING account_id`,
			betID, int16(out), payout, text, status, settledAt,
		).Scan(&accountID)
		if err == sql.ErrNoRows {
			// gatilho redelivered: outra execução já liquidou
			return nil
		}
		if err != nil {
			return err
		}

		if credit && payout > 0 {
			if _, err := p.ledger.Apply(ctx, tx, accountID, decimal.NewFromInt(payout), ledger.ReasonBetResult); err != nil {
				return err
			}
		}
		applied = true
		return nil
	})
	return applied, err
}

func (p *Postgres) VoidOrder(ctx context.Context, betID int64, reason string, creditIfPaid bool) (bool, error) {
	applied := false
	err := p.ledger.Tx(ctx, func(tx *sql.Tx) error {
		// O status anterior decide o crédito, lido sob lock na mesma
		// transação da anulação
		var (
			accountID  int64
			amount     int64
			prevStatus string
		)
		err := tx.QueryRowContext(ctx, `
			WITH prev AS (
				SELECT id, status FROM bet_orders
				WHERE id=$1 AND status IN ('pending','paid') AND result IS NULL
				FOR UPDATE
			)
			UPDATE bet_orders b
			SET status='voided', result=0, result_amount=b.amount, result_text=$2,
			    settlement_at = CASE WHEN $3 OR prev.status='pending' THEN NOW() END
			FROM prev
			WHERE b.id = prev.id
			RETURNING b.account_id, b.amount, prev.status`,
			betID, reason, creditIfPaid,
		).Scan(&accountID, &amount, &prevStatus)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}

		if creditIfPaid && prevStatus == bet.StatusPaid {
			if _, err := p.ledger.Apply(ctx, tx, accountID, decimal.NewFromInt(amount), ledger.ReasonBetResult); err != nil {
				return err
			}
		}
		applied = true
		return nil
	})
	return applied, err
}
