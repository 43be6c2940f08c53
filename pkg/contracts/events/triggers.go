package events

// SettlementTrigger é publicado quando o placar final de uma partida é
// registrado. Entrega at-least-once: o worker de liquidação precisa ser
// idempotente.
type SettlementTrigger struct {
	MatchID int64 `json:"match_id"`
}

// ReconcileTrigger pede a confirmação de uma ordem contra o gateway de
// pagamento. Publicado pelo webhook de callback e reprocessável à vontade.
type ReconcileTrigger struct {
	OrderID int64  `json:"id"`
	Kind    string `json:"kind,omitempty"` // vazio = aposta; "recharge" = recarga
}

// RetryPayout é a mensagem das filas de retentativa (saque, rollback de
// aposta expirada e renda de liquidação). NotBeforeUnixMs adia o
// processamento; Attempt limita o número de tentativas.
type RetryPayout struct {
	OrderID         int64 `json:"id"`
	Attempt         int   `json:"attempt"`
	NotBeforeUnixMs int64 `json:"not_before_unix_ms,omitempty"`
}
