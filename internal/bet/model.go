package bet

import (
	"time"

	"github.com/shopspring/decimal"

	"wager-platform/internal/odds"
)

// Estados do ciclo de vida de um pedido de aposta.
// pending → paid → settled (caminho feliz)
// pending → expired → refunding → refunded (confirmação tardia)
// paid → voided (partida cancelada)
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusSettled   = "settled"
	StatusExpired   = "expired"
	StatusRefunding = "refunding"
	StatusRefunded  = "refunded"
	StatusVoided    = "voided"
)

// Odd é um snapshot de mercado: imutável depois de referenciado por uma
// aposta — linhas novas substituem as antigas, que viram inativas.
type Odd struct {
	ID        int64
	MatchID   int64
	Base      string
	Condition decimal.Decimal
	Value0    decimal.Decimal
	Value1    decimal.Decimal
	Value2    decimal.Decimal
	IsActive  bool
	CreatedAt time.Time
}

// Match é a leitura mínima de partida usada na colocação e liquidação.
type Match struct {
	ID           int64
	MatchTime    time.Time
	Team1Name    string
	Team2Name    string
	Tournament   string
	BetEnabled   bool
	HasScore     bool
	Score1       int
	Score2       int
	Canceled     bool
	CancelReason string
}

// Order é um pedido de aposta. Condition e Value são copiados do Odd no
// momento da aposta e nunca relidos.
type Order struct {
	ID           int64
	AccountID    int64
	MatchID      int64
	Base         string
	BetType      string
	Condition    decimal.Decimal
	Value        decimal.Decimal
	Amount       int64
	Status       string
	Result       *odds.Outcome
	ResultAmount int64
	ResultText   string
	PaidAt       *time.Time
	SettlementAt *time.Time
	CreatedAt    time.Time
}

// Terminal informa se o pedido já saiu do estado de espera de pagamento.
func (o *Order) Terminal() bool {
	return o.Status != StatusPending
}

// Record é uma linha do extrato de apostas com os dados da partida.
type Record struct {
	Order
	MatchTime  time.Time
	Team1Name  string
	Team2Name  string
	Tournament string
}

// BetableMatch é uma partida aberta para aposta com seu odd ativo.
type BetableMatch struct {
	Match
	Odd Odd
}
