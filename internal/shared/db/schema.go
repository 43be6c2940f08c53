package db

// Esquema do núcleo. Saldo e ledger andam sempre juntos na mesma transação:
// accounts.balance == SUM(ledger_entries.amount) por conta.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id             BIGSERIAL PRIMARY KEY,
	openid         TEXT NOT NULL,
	appid          TEXT NOT NULL,
	nickname       TEXT NOT NULL DEFAULT '',
	avatar         TEXT NOT NULL DEFAULT '',
	balance        NUMERIC(18,2) NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_login_at  TIMESTAMPTZ,
	UNIQUE (openid, appid)
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id            BIGSERIAL PRIMARY KEY,
	account_id    BIGINT NOT NULL REFERENCES accounts(id),
	amount        NUMERIC(18,2) NOT NULL,
	balance_after NUMERIC(18,2) NOT NULL,
	reason        TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_ledger_account ON ledger_entries(account_id, id);

CREATE TABLE IF NOT EXISTS matches (
	id             BIGSERIAL PRIMARY KEY,
	match_time     TIMESTAMPTZ NOT NULL,
	team1_name     TEXT NOT NULL,
	team2_name     TEXT NOT NULL,
	tournament     TEXT NOT NULL DEFAULT '',
	bet_enabled    BOOLEAN NOT NULL DEFAULT TRUE,
	has_score      BOOLEAN NOT NULL DEFAULT FALSE,
	score1         INT,
	score2         INT,
	canceled       BOOLEAN NOT NULL DEFAULT FALSE,
	cancel_reason  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS odds (
	id          BIGSERIAL PRIMARY KEY,
	match_id    BIGINT NOT NULL REFERENCES matches(id),
	base        TEXT NOT NULL,
	condition   NUMERIC(8,2) NOT NULL DEFAULT 0,
	value0      NUMERIC(8,3),
	value1      NUMERIC(8,3) NOT NULL,
	value2      NUMERIC(8,3) NOT NULL,
	is_active   BOOLEAN NOT NULL DEFAULT TRUE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_odds_match ON odds(match_id) WHERE is_active;

CREATE TABLE IF NOT EXISTS bet_orders (
	id            BIGSERIAL PRIMARY KEY,
	account_id    BIGINT NOT NULL REFERENCES accounts(id),
	match_id      BIGINT NOT NULL REFERENCES matches(id),
	base          TEXT NOT NULL,
	bet_type      TEXT NOT NULL,
	condition     NUMERIC(8,2) NOT NULL,
	value         NUMERIC(8,3) NOT NULL,
	amount        BIGINT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	result        SMALLINT,
	result_amount BIGINT NOT NULL DEFAULT 0,
	result_text   TEXT NOT NULL DEFAULT '',
	paid_at       TIMESTAMPTZ,
	settlement_at TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_bets_account ON bet_orders(account_id, match_id);
CREATE INDEX IF NOT EXISTS idx_bets_settle ON bet_orders(match_id) WHERE result IS NULL;

CREATE TABLE IF NOT EXISTS withdrawal_orders (
	id                BIGSERIAL PRIMARY KEY,
	account_id        BIGINT NOT NULL REFERENCES accounts(id),
	amount            BIGINT NOT NULL,
	status            SMALLINT NOT NULL DEFAULT 0,
	external_order_no TEXT NOT NULL DEFAULT '',
	attempts          INT NOT NULL DEFAULT 0,
	completed_at      TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS recharge_orders (
	id                BIGSERIAL PRIMARY KEY,
	account_id        BIGINT NOT NULL REFERENCES accounts(id),
	amount            BIGINT NOT NULL,
	status            SMALLINT NOT NULL DEFAULT 0,
	external_order_no TEXT NOT NULL DEFAULT '',
	completed_at      TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
