package topics

const (
	// Liquidação de apostas
	Settlement       = "bet_settlement"
	SettlementIncome = "bet_settlement_income"

	// Confirmação de pagamento externo
	Reconcile = "bet_reconcile"

	// Retentativas
	ConsumeRollback = "bet_consume_rollback"
	WithdrawalRetry = "bet_withdrawal_retry"

	// DLQ
	WithdrawalDLQ = "bet_withdrawal_dlq"
)
