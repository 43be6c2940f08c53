package wallet

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

// Repo define a persistência de ordens de saque/recarga e das transições de
// reembolso e pagamento de renda sobre apostas.
type Repo interface {
	// CreateWithdrawal debita o ledger e cria a ordem pending na mesma
	// transação.
	CreateWithdrawal(ctx context.Context, accountID, amount int64) (*WithdrawalOrder, error)
	GetWithdrawal(ctx context.Context, id int64) (*WithdrawalOrder, ledger.Account, error)
	// CompleteWithdrawal é condicional (status 0 → 1); false significa que
	// outro caminho já completou a ordem.
	CompleteWithdrawal(ctx context.Context, id int64, externalOrderNo string) (bool, error)
	FailWithdrawal(ctx context.Context, id int64) (bool, error)
	TouchWithdrawalAttempt(ctx context.Context, id int64) error

	CreateRecharge(ctx context.Context, accountID, amount int64) (*RechargeOrder, error)

	GetBetForPayout(ctx context.Context, betID int64) (*bet.Order, ledger.Account, error)
	// MarkBetRefunding transita expired → refunding antes da chamada de rede.
	MarkBetRefunding(ctx context.Context, betID int64) (bool, error)
	// MarkBetRefunded transita refunding → refunded após o gateway devolver.
	MarkBetRefunded(ctx context.Context, betID int64) (bool, error)
	// RefundBetToLedger credita a stake no ledger e marca refunded, tudo na
	// mesma transação (modo balance).
	RefundBetToLedger(ctx context.Context, betID int64) (bool, error)
	// MarkBetIncomePaid registra o pagamento de renda de liquidação
	// (condicional em settlement_at IS NULL).
	MarkBetIncomePaid(ctx context.Context, betID int64) (bool, error)
}

// Postgres implementa Repo sobre banco Postgres
type Postgres struct {
	db     *sql.DB
	ledger *ledger.Store
}

func NewPostgres(db *sql.DB, ls *ledger.Store) *Postgres {
	return &Postgres{db: db, ledger: ls}
}

func (p *Postgres) CreateWithdrawal(ctx context.Context, accountID, amount int64) (*WithdrawalOrder, error) {
	var o WithdrawalOrder
	err := p.ledger.Tx(ctx, func(tx *sql.Tx) error {
		debit := decimal.NewFromInt(amount).Neg()
		if _, err := p.ledger.Apply(ctx, tx, accountID, debit, ledger.ReasonWithdrawal); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `
			INSERT INTO withdrawal_orders (account_id, amount) VALUES ($1,$2)
			RETURNING id, account_id, amount, status, external_order_no, attempts, completed_at, created_at`,
			accountID, amount,
		).Scan(&o.ID, &o.AccountID, &o.Amount, &o.Status, &o.ExternalOrderNo, &o.Attempts, &o.CompletedAt, &o.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (p *Postgres) GetWithdrawal(ctx context.Context, id int64) (*WithdrawalOrder, ledger.Account, error) {
	var (
		o   WithdrawalOrder
		acc ledger.Account
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT w.id, w.account_id, w.amount, w.status, w.external_order_no, w.attempts, w.completed_at, w.created_at,
		       a.id, a.openid, a.appid
		FROM withdrawal_orders w
		JOIN accounts a ON a.id = w.account_id
		WHERE w.id=$1`, id,
	).Scan(&o.ID, &o.AccountID, &o.Amount, &o.Status, &o.ExternalOrderNo, &o.Attempts, &o.CompletedAt, &o.CreatedAt,
		&acc.ID, &acc.OpenID, &acc.AppID)
	if err == sql.ErrNoRows {
		return nil, ledger.Account{}, apperr.ErrOrderNotFound
	}
	if err != nil {
		return nil, ledger.Account{}, err
	}
	return &o, acc, nil
}

func (p *Postgres) CompleteWithdrawal(ctx context.Context, id int64, externalOrderNo string) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE withdrawal_orders SET status=1, external_order_no=$2, completed_at=NOW()
		WHERE id=$1 AND status=0`, id, externalOrderNo)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (p *Postgres) FailWithdrawal(ctx context.Context, id int64) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE withdrawal_orders SET status=2 WHERE id=$1 AND status=0`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (p *Postgres) TouchWithdrawalAttempt(ctx context.Context, id int64) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE withdrawal_orders SET attempts = attempts + 1 WHERE id=$1`, id)
	return err
}

func (p *Postgres) CreateRecharge(ctx context.Context, accountID, amount int64) (*RechargeOrder, error) {
	var o RechargeOrder
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO recharge_orders (account_id, amount) VALUES ($1,$2)
		RETURNING id, account_id, amount, status, external_order_no, completed_at, created_at`,
		accountID, amount,
	).Scan(&o.ID, &o.AccountID, &o.Amount, &o.Status, &o.ExternalOrderNo, &o.CompletedAt, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (p *Postgres) GetBetForPayout(ctx context.Context, betID int64) (*bet.Order, ledger.Account, error) {
	var (
		o      bet.Order
		acc    ledger.Account
		result sql.NullInt16
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT b.id, b.account_id, b.match_id, b.amount, b.status, b.result, b.result_amount, b.settlement_at, b.created_at,
		       a.id, a.openid, a.appid
		FROM bet_orders b
		JOIN accounts a ON a.id = b.account_id
		WHERE b.id=$1`, betID,
	).Scan(&o.ID, &o.AccountID, &o.MatchID, &o.Amount, &o.Status, &result, &o.ResultAmount, &o.SettlementAt, &o.CreatedAt,
		&acc.ID, &acc.OpenID, &acc.AppID)
	if err == sql.ErrNoRows {
		return nil, ledger.Account{}, apperr.ErrOrderNotFound
	}
	if err != nil {
		return nil, ledger.Account{}, err
	}
	if result.Valid {
		out := odds.Outcome(result.Int16)
		o.Result = &out
	}
	return &o, acc, nil
}

func (p *Postgres) MarkBetRefunding(ctx context.Context, betID int64) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE bet_orders SET status='refunding' WHERE id=$1 AND status='expired'`, betID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (p *Postgres) MarkBetRefunded(ctx context.Context, betID int64) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE bet_orders SET status='refunded' WHERE id=$1 AND status='refunding'`, betID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (p *Postgres) RefundBetToLedger(ctx context.Context, betID int64) (bool, error) {
	applied := false
	err := p.ledger.Tx(ctx, func(tx *sql.Tx) error {
		var (
			accountID int64
			amount    int64
		)
		err := tx.QueryRowContext(ctx, `
			SELECT account_id, amount FROM bet_orders
			WHERE id=$1 AND status IN ('expired','refunding') FOR UPDATE`, betID,
		).Scan(&accountID, &amount)
		if err == sql.ErrNoRows {
			return nil // outro caminho já tratou
		}
		if err != nil {
			return err
		}
		if _, err := p.ledger.Apply(ctx, tx, accountID, decimal.NewFromInt(amount), ledger.ReasonBet); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE bet_orders SET status='refunded' WHERE id=$1`, betID); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

func (p *Postgres) MarkBetIncomePaid(ctx context.Context, betID int64) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE bet_orders
		SET settlement_at=$2,
		    status = CASE WHEN status='paid' THEN 'settled' ELSE status END
		WHERE id=$1 AND result IS NOT NULL AND settlement_at IS NULL`, betID, time.Now())
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
