package wallet

import "time"

// Status de ordens de saque e recarga.
const (
	StatusPending   int16 = 0
	StatusCompleted int16 = 1
	// StatusFailed é terminal: esgotou as retentativas e precisa de
	// intervenção do operador.
	StatusFailed int16 = 2
)

// WithdrawalOrder é um pedido de saque para o gateway externo. Completado
// exatamente uma vez; o débito do ledger acontece na criação.
type WithdrawalOrder struct {
	ID              int64
	AccountID       int64
	Amount          int64
	Status          int16
	ExternalOrderNo string
	Attempts        int
	CompletedAt     *time.Time
	CreatedAt       time.Time
}

// RechargeOrder é um pedido de recarga pago pelo gateway externo e
// confirmado via reconciliação.
type RechargeOrder struct {
	ID              int64
	AccountID       int64
	Amount          int64
	Status          int16
	ExternalOrderNo string
	CompletedAt     *time.Time
	CreatedAt       time.Time
}
