package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"wager-platform/internal/shared/apperr"
)

// Motivos de movimentação registrados no ledger.
const (
	ReasonBet        = "bet"
	ReasonBetResult  = "bet_result"
	ReasonRecharge   = "recharge"
	ReasonWithdrawal = "withdrawal"
)

// Account é o dono da carteira. O saldo só muda junto com um Entry, na mesma
// transação: accounts.balance == SUM(ledger_entries.amount).
type Account struct {
	ID          int64
	OpenID      string
	AppID       string
	Nickname    string
	Avatar      string
	Balance     decimal.Decimal
	CreatedAt   time.Time
	LastLoginAt *time.Time
}

// Entry é um registro imutável de variação de saldo.
type Entry struct {
	ID           int64           `json:"id"`
	AccountID    int64           `json:"account_id"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Reason       string          `json:"reason"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Store implementa a carteira sobre Postgres
type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Tx executa fn dentro de uma transação, com rollback em caso de erro.
func (s *Store) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Apply muda o saldo da conta dentro da transação do chamador: trava a linha
// da conta, recusa saldo negativo e grava o Entry com o snapshot resultante.
// A linha da conta é o único ponto de serialização de saldo; nenhuma chamada
// de rede pode acontecer enquanto o lock está tomado.
func (s *Store) Apply(ctx context.Context, tx *sql.Tx, accountID int64, amount decimal.Decimal, reason string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	if err := tx.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE id=$1 FOR UPDATE`, accountID,
	).Scan(&balance); err != nil {
		if err == sql.ErrNoRows {
			return decimal.Decimal{}, apperr.ErrOrderNotFound
		}
		return decimal.Decimal{}, err
	}

	newBalance := balance.Add(amount)
	if newBalance.IsNegative() {
		return decimal.Decimal{}, apperr.ErrInsufficientBalance
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance=$1 WHERE id=$2`, newBalance, accountID,
	); err != nil {
		return decimal.Decimal{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (account_id, amount, balance_after, reason) VALUES ($1,$2,$3,$4)`,
		accountID, amount, newBalance, reason,
	); err != nil {
		return decimal.Decimal{}, err
	}

	return newBalance, nil
}

// GetOrCreateAccount retorna a conta de um usuário do gateway, criando se não
// existir (mesmo padrão da carteira: transação própria).
func (s *Store) GetOrCreateAccount(ctx context.Context, openid, appid string) (Account, error) {
	var acc Account
	err := s.Tx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT id, openid, appid, nickname, avatar, balance, created_at, last_login_at
			 FROM accounts WHERE openid=$1 AND appid=$2`, openid, appid,
		).Scan(&acc.ID, &acc.OpenID, &acc.AppID, &acc.Nickname, &acc.Avatar, &acc.Balance, &acc.CreatedAt, &acc.LastLoginAt)
		if err == sql.ErrNoRows {
			return tx.QueryRowContext(ctx,
				`INSERT INTO accounts (openid, appid) VALUES ($1,$2) RETURNING id, openid, appid, nickname, avatar, balance, created_at, last_login_at`,
				openid, appid,
			).Scan(&acc.ID, &acc.OpenID, &acc.AppID, &acc.Nickname, &acc.Avatar, &acc.Balance, &acc.CreatedAt, &acc.LastLoginAt)
		}
		return err
	})
	return acc, err
}

// TouchLogin atualiza o perfil vindo do gateway e marca o último login.
func (s *Store) TouchLogin(ctx context.Context, accountID int64, nickname, avatar string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET nickname=$1, avatar=$2, last_login_at=NOW() WHERE id=$3`,
		nickname, avatar, accountID,
	)
	return err
}

// GetAccount retorna a conta pelo id.
func (s *Store) GetAccount(ctx context.Context, accountID int64) (Account, error) {
	var acc Account
	err := s.db.QueryRowContext(ctx,
		`SELECT id, openid, appid, nickname, avatar, balance, created_at, last_login_at
		 FROM accounts WHERE id=$1`, accountID,
	).Scan(&acc.ID, &acc.OpenID, &acc.AppID, &acc.Nickname, &acc.Avatar, &acc.Balance, &acc.CreatedAt, &acc.LastLoginAt)
	if err == sql.ErrNoRows {
		return Account{}, apperr.ErrOrderNotFound
	}
	return acc, err
}

// Entries lista o extrato da conta, mais recente primeiro.
func (s *Store) Entries(ctx context.Context, accountID int64, offset, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, amount, balance_after, reason, created_at
		 FROM ledger_entries WHERE account_id=$1
		 ORDER BY id DESC OFFSET $2 LIMIT $3`, accountID, offset, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Amount, &e.BalanceAfter, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
