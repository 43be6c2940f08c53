package bet

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"wager-platform/internal/ledger"
	"wager-platform/internal/odds"
	"wager-platform/internal/shared/apperr"
)

// BuildOrder valida o odd lido dentro da transação de colocação e monta o
// pedido. Rodar a validação dentro da transação garante que a checagem de
// início da partida e o débito observem a mesma leitura.
type BuildOrder func(odd Odd, match Match, now time.Time) (*Order, error)

// Repo define a persistência de apostas usada pelo serviço.
type Repo interface {
	// Place cria o pedido dentro de uma única transação: valida via build,
	// trava a linha da conta, aplica o teto de stake por partida e, quando
	// funded, debita o ledger junto com a criação.
	Place(ctx context.Context, accountID, oddID int64, funded bool, maxStakePerMatch int64, build BuildOrder) (*Order, error)
	Get(ctx context.Context, id int64) (*Order, error)
	Records(ctx context.Context, q RecordsQuery) ([]Record, int, error)
	BetableMatches(ctx context.Context, now time.Time) ([]BetableMatch, error)
}

// RecordsQuery filtra o extrato de apostas de uma conta.
type RecordsQuery struct {
	AccountID int64
	MatchID   int64 // 0 = todas
	Complete  *bool // nil = todas; true = liquidadas
	Offset    int
	Limit     int
}

// Postgres implementa Repo sobre banco Postgres
type Postgres struct {
	db     *sql.DB
	ledger *ledger.Store
}

func NewPostgres(db *sql.DB, ls *ledger.Store) *Postgres {
	return &Postgres{db: db, ledger: ls}
}

func (p *Postgres) Place(ctx context.Context, accountID, oddID int64, funded bool, maxStakePerMatch int64, build BuildOrder) (*Order, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Leitura única de odd + partida dentro da transação
	var (
		odd    Odd
		match  Match
		value0 sql.NullString
	)
	err = tx.QueryRowContext(ctx, `
		SELECT o.id, o.match_id, o.base, o.condition, o.value0, o.value1, o.value2, o.is_active,
		       m.id, m.match_time, m.bet_enabled, m.canceled
		FROM odds o
		JOIN matches m ON m.id = o.match_id
		WHERE o.id = $1`, oddID,
	).Scan(&odd.ID, &odd.MatchID, &odd.Base, &odd.Condition, &value0, &odd.Value1, &odd.Value2, &odd.IsActive,
		&match.ID, &match.MatchTime, &match.BetEnabled, &match.Canceled)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrOddInactive
	}
	if err != nil {
		return nil, err
	}
	if value0.Valid {
		if odd.Value0, err = decimal.NewFromString(value0.String); err != nil {
			return nil, err
		}
	}

	order, err := build(odd, match, time.Now())
	if err != nil {
		return nil, err
	}
	order.AccountID = accountID

	if funded {
		// Trava a linha da conta e debita junto com a criação do pedido
		stake := decimal.NewFromInt(order.Amount)
		if _, err := p.ledger.Apply(ctx, tx, accountID, stake.Neg(), ledger.ReasonBet); err != nil {
			return nil, err
		}
	} else {
		// Sem débito local, mas a linha da conta ainda serializa as
		// colocações concorrentes para o teto por partida
		if _, err := tx.ExecContext(ctx, `SELECT id FROM accounts WHERE id=$1 FOR UPDATE`, accountID); err != nil {
			return nil, err
		}
	}

	// Teto acumulado por conta e partida, lido sob o mesmo lock do débito
	var staked int64
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM bet_orders
		WHERE account_id=$1 AND match_id=$2 AND status IN ('pending','paid')`,
		accountID, order.MatchID,
	).Scan(&staked); err != nil {
		return nil, err
	}
	if maxStakePerMatch > 0 && staked+order.Amount > maxStakePerMatch {
		return nil, apperr.ErrMaxStakePerMatch
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO bet_orders (account_id, match_id, base, bet_type, condition, value, amount, status, paid_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id, created_at`,
		order.AccountID, order.MatchID, order.Base, order.BetType, order.Condition, order.Value,
		order.Amount, order.Status, order.PaidAt,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return order, nil
}

const orderColumns = `id, account_id, match_id, base, bet_type, condition, value, amount,
	status, result, result_amount, result_text, paid_at, settlement_at, created_at`

func scanOrder(row interface{ Scan(...any) error }) (*Order, error) {
	var (
		o      Order
		result sql.NullInt16
	)
	err := row.Scan(&o.ID, &o.AccountID, &o.MatchID, &o.Base, &o.BetType, &o.Condition, &o.Value,
		&o.Amount, &o.Status, &result, &o.ResultAmount, &o.ResultText, &o.PaidAt, &o.SettlementAt, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.Result = toOutcome(result)
	return &o, nil
}

func (p *Postgres) Get(ctx context.Context, id int64) (*Order, error) {
	o, err := scanOrder(p.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM bet_orders WHERE id=$1`, id))
	if err == sql.ErrNoRows {
		return nil, apperr.ErrOrderNotFound
	}
	return o, err
}

func (p *Postgres) Records(ctx context.Context, q RecordsQuery) ([]Record, int, error) {
	where := `b.account_id=$1 AND b.status <> 'pending'`
	args := []any{q.AccountID}
	if q.MatchID > 0 {
		args = append(args, q.MatchID)
		where += ` AND b.match_id=$2`
	}
	if q.Complete != nil {
		if *q.Complete {
			where += ` AND b.result IS NOT NULL`
		} else {
			where += ` AND b.result IS NULL`
		}
	}

	var total int
	if err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bet_orders b WHERE `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT b.id, b.account_id, b.match_id, b.base, b.bet_type, b.condition, b.value, b.amount,
		       b.status, b.result, b.result_amount, b.result_text, b.paid_at, b.settlement_at, b.created_at,
		       m.match_time, m.team1_name, m.team2_name, m.tournament
		FROM bet_orders b
		JOIN matches m ON m.id = b.match_id
		WHERE ` + where + `
		ORDER BY b.id DESC`
	args = append(args, q.Offset, q.Limit)
	query += ` OFFSET $` + itoa(len(args)-1) + ` LIMIT $` + itoa(len(args))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Record
	for rows.Next() {
		var (
			r      Record
			result sql.NullInt16
		)
		if err := rows.Scan(&r.ID, &r.AccountID, &r.MatchID, &r.Base, &r.BetType, &r.Condition, &r.Value,
			&r.Amount, &r.Status, &result, &r.ResultAmount, &r.ResultText, &r.PaidAt, &r.SettlementAt, &r.CreatedAt,
			&r.MatchTime, &r.Team1Name, &r.Team2Name, &r.Tournament); err != nil {
			return nil, 0, err
		}
		r.Result = toOutcome(result)
		list = append(list, r)
	}
	return list, total, rows.Err()
}

func (p *Postgres) BetableMatches(ctx context.Context, now time.Time) ([]BetableMatch, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT m.id, m.match_time, m.team1_name, m.team2_name, m.tournament,
		       o.id, o.base, o.condition, o.value1, o.value2
		FROM matches m
		JOIN odds o ON o.match_id = m.id AND o.is_active AND o.base = 'ah'
		WHERE m.bet_enabled AND NOT m.canceled
		  AND m.match_time > $1 AND m.match_time < $1 + interval '24 hours'
		ORDER BY m.match_time ASC, m.id ASC`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []BetableMatch
	for rows.Next() {
		var bm BetableMatch
		if err := rows.Scan(&bm.ID, &bm.MatchTime, &bm.Team1Name, &bm.Team2Name, &bm.Tournament,
			&bm.Odd.ID, &bm.Odd.Base, &bm.Odd.Condition, &bm.Odd.Value1, &bm.Odd.Value2); err != nil {
			return nil, err
		}
		bm.Odd.MatchID = bm.ID
		bm.Odd.IsActive = true
		list = append(list, bm)
	}
	return list, rows.Err()
}

func toOutcome(v sql.NullInt16) *odds.Outcome {
	if !v.Valid {
		return nil
	}
	out := odds.Outcome(v.Int16)
	return &out
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
