package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"wager-platform/internal/bet"
	"wager-platform/internal/ledger"
)

type LoginResponse struct {
	AccountID int64  `json:"account_id"`
	OpenID    string `json:"openid"`
	AppID     string `json:"appid"`
	Nickname  string `json:"nickname"`
	Avatar    string `json:"avatar"`
	Balance   string `json:"balance"`
}

type PlaceBetResponse struct {
	BetID       int64            `json:"bet_id"`
	Status      string           `json:"status"`
	PaymentData *bet.PaymentData `json:"payment_data,omitempty"`
}

type BetOrderView struct {
	ID           int64      `json:"id"`
	MatchID      int64      `json:"match_id"`
	Base         string     `json:"base"`
	Type         string     `json:"type"`
	Condition    float64    `json:"condition"`
	Value        float64    `json:"value"`
	Amount       int64      `json:"amount"`
	Status       string     `json:"status"`
	Result       *int16     `json:"result"`
	ResultAmount int64      `json:"result_amount"`
	ResultText   string     `json:"result_text"`
	SettlementAt *time.Time `json:"settlement_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewBetOrderView converte o pedido para o shape do cliente (números puros,
// como o front espera).
func NewBetOrderView(o *bet.Order) BetOrderView {
	v := BetOrderView{
		ID:           o.ID,
		MatchID:      o.MatchID,
		Base:         o.Base,
		Type:         o.BetType,
		Condition:    o.Condition.InexactFloat64(),
		Value:        o.Value.InexactFloat64(),
		Amount:       o.Amount,
		Status:       o.Status,
		ResultAmount: o.ResultAmount,
		ResultText:   o.ResultText,
		SettlementAt: o.SettlementAt,
		CreatedAt:    o.CreatedAt,
	}
	if o.Result != nil {
		r := int16(*o.Result)
		v.Result = &r
	}
	return v
}

type BetRecordView struct {
	BetOrderView
	MatchTime  time.Time `json:"match_time"`
	Team1Name  string    `json:"team1_name"`
	Team2Name  string    `json:"team2_name"`
	Tournament string    `json:"tournament"`
}

type BetRecordsResponse struct {
	List  []BetRecordView `json:"list"`
	Total int             `json:"total"`
}

type BetableMatchView struct {
	ID         int64     `json:"id"`
	MatchTime  time.Time `json:"match_time"`
	Team1Name  string    `json:"team1_name"`
	Team2Name  string    `json:"team2_name"`
	Tournament string    `json:"tournament"`
	Odd        OddView   `json:"odd"`
}

type OddView struct {
	ID        int64   `json:"id"`
	Condition float64 `json:"condition"`
	Value1    float64 `json:"value1"`
	Value2    float64 `json:"value2"`
}

type WalletResponse struct {
	AccountID int64  `json:"account_id"`
	Balance   string `json:"balance"`
}

type LedgerResponse struct {
	Balance string         `json:"balance"`
	Entries []ledger.Entry `json:"entries"`
}

type WithdrawResponse struct {
	WithdrawalID int64  `json:"withdrawal_id"`
	Status       int16  `json:"status"`
	Balance      string `json:"balance,omitempty"`
}

type RechargeResponse struct {
	RechargeID  int64            `json:"recharge_id"`
	PaymentData *bet.PaymentData `json:"payment_data"`
}

func FormatBalance(b decimal.Decimal) string { return b.StringFixed(2) }
