package dto

import "encoding/json"

type LoginRequest struct {
	AppID  string `json:"appid"`
	OpenID string `json:"openid"`
}

type PlaceBetRequest struct {
	AccountID int64  `json:"account_id"`
	OddID     int64  `json:"odd_id"`
	Type      string `json:"type"` // ah1|ah2|win1|win2|draw|over|under
	Amount    int64  `json:"amount"`
}

type QueryBetRequest struct {
	BetID int64 `json:"bet_id"`
}

type QueryRechargeRequest struct {
	ID int64 `json:"id"`
}

type BetRecordsRequest struct {
	AccountID int64 `json:"account_id"`
	MatchID   int64 `json:"match_id,omitempty"`
	Complete  *bool `json:"complete,omitempty"`
	Page      int   `json:"page,omitempty"`
	PageSize  int   `json:"page_size,omitempty"`
}

type WithdrawRequest struct {
	AccountID int64 `json:"account_id"`
	Amount    int64 `json:"amount"`
}

type RechargeRequest struct {
	AccountID int64 `json:"account_id"`
	Amount    int64 `json:"amount"`
}

// CallbackRequest é o corpo do webhook do gateway; a assinatura chega como
// query param e é conferida contra o corpo bruto.
type CallbackRequest struct {
	AppID         string          `json:"appid"`
	Timestamp     int64           `json:"timestamp"`
	RequestNumber string          `json:"request_number"`
	Type          string          `json:"type"`
	Data          json.RawMessage `json:"data"`
}

// ConsumeCallbackData é o payload de um callback type=consume.
type ConsumeCallbackData struct {
	OpenID     string `json:"openid"`
	OrderNo    string `json:"order_no"`
	OutOrderNo string `json:"out_order_no"`
}
