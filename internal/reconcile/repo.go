package reconcile

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"wager-platform/internal/bet"
	"wager-platform/internal/ledger"
	"wager-platform/internal/shared/apperr"
	"wager-platform/internal/wallet"
)

// Desfecho de uma tentativa de confirmação.
const (
	OutcomeConfirmed = "confirmed"
	OutcomeExpired   = "expired"
	OutcomeNoop      = "noop"
)

// Repo define as transições condicionais da reconciliação.
type Repo interface {
	GetBet(ctx context.Context, betID int64) (*bet.Order, ledger.Account, error)
	// ConfirmBetPaid tenta pending → paid numa única escrita condicional;
	// dentro da mesma transação verifica a janela de expiração e, vencida,
	// marca expired em vez de confirmar.
	ConfirmBetPaid(ctx context.Context, betID int64, expiresAfter time.Duration) (string, error)

	GetRecharge(ctx context.Context, id int64) (*wallet.RechargeOrder, ledger.Account, error)
	// ConfirmRecharge credita o ledger na mesma transação da transição
	// condicional pending → completed.
	ConfirmRecharge(ctx context.Context, id int64, externalOrderNo string) (string, error)
}

// Postgres implementa Repo sobre banco Postgres
type Postgres struct {
	db     *sql.DB
	ledger *ledger.Store
}

func NewPostgres(db *sql.DB, ls *ledger.Store) *Postgres {
	return &Postgres{db: db, ledger: ls}
}

func (p *Postgres) GetBet(ctx context.Context, betID int64) (*bet.Order, ledger.Account, error) {
	var (
		o   bet.Order
		acc ledger.Account
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT b.id, b.account_id, b.match_id, b.amount, b.status, b.created_at,
		       a.id, a.openid, a.appid
		FROM bet_orders b
		JOIN accounts a ON a.id = b.account_id
		WHERE b.id=$1`, betID,
	).Scan(&o.ID, &o.AccountID, &o.MatchID, &o.Amount, &o.Status, &o.CreatedAt,
		&acc.ID, &acc.OpenID, &acc.AppID)
	if err == sql.ErrNoRows {
		return nil, ledger.Account{}, apperr.ErrOrderNotFound
	}
	if err != nil {
		return nil, ledger.Account{}, err
	}
	return &o, acc, nil
}

func (p *Postgres) ConfirmBetPaid(ctx context.Context, betID int64, expiresAfter time.Duration) (string, error) {
	outcome := OutcomeNoop
	err := p.ledger.Tx(ctx, func(tx *sql.Tx) error {
		now := time.Now()

		// Escrita condicional: só um chamador consegue sair de pending
		var createdAt time.Time
		err := tx.QueryRowContext(ctx, `
			UPDATE bet_orders SET status='paid', paid_at=$2
			WHERE id=$1 AND status='pending'
			RETURNING created_at`, betID, now,
		).Scan(&createdAt)
		if err == sql.ErrNoRows {
			// outro processo já mudou o estado; tratar como sucesso
			return nil
		}
		if err != nil {
			return err
		}

		// Segunda checagem, na mesma transação: pedido vencido não
		// confirma, vira expired e vai para a fila de estorno
		if now.Sub(createdAt) >= expiresAfter {
			if _, err := tx.ExecContext(ctx,
				`UPDATE bet_orders SET status='expired', paid_at=NULL WHERE id=$1`, betID); err != nil {
				return err
			}
			outcome = OutcomeExpired
			return nil
		}

		outcome = OutcomeConfirmed
		return nil
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

func (p *Postgres) GetRecharge(ctx context.Context, id int64) (*wallet.RechargeOrder, ledger.Account, error) {
	var (
		o   wallet.RechargeOrder
		acc ledger.Account
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT r.id, r.account_id, r.amount, r.status, r.external_order_no, r.completed_at, r.created_at,
		       a.id, a.openid, a.appid
		FROM recharge_orders r
		JOIN accounts a ON a.id = r.account_id
		WHERE r.id=$1`, id,
	).Scan(&o.ID, &o.AccountID, &o.Amount, &o.Status, &o.ExternalOrderNo, &o.CompletedAt, &o.CreatedAt,
		&acc.ID, &acc.OpenID, &acc.AppID)
	if err == sql.ErrNoRows {
		return nil, ledger.Account{}, apperr.ErrOrderNotFound
	}
	if err != nil {
		return nil, ledger.Account{}, err
	}
	return &o, acc, nil
}

func (p *Postgres) ConfirmRecharge(ctx context.Context, id int64, externalOrderNo string) (string, error) {
	outcome := OutcomeNoop
	err := p.ledger.Tx(ctx, func(tx *sql.Tx) error {
		var (
			accountID int64
			amount    int64
		)
		err := tx.QueryRowContext(ctx, `
			UPDATE recharge_orders SET status=1, external_order_no=$2, completed_at=NOW()
			WHERE id=$1 AND status=0
			RETURNING account_id, amount`, id, externalOrderNo,
		).Scan(&accountID, &amount)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}

		// Crédito de saldo na mesma transação da confirmação
		if _, err := p.ledger.Apply(ctx, tx, accountID, decimal.NewFromInt(amount), ledger.ReasonRecharge); err != nil {
			return err
		}
		outcome = OutcomeConfirmed
		return nil
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}
