package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Contadores do núcleo de apostas, expostos via /metrics de cada serviço.
var (
	BetsPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bets_placed_total",
		Help: "Apostas criadas, por modo de cobrança.",
	}, []string{"funding"})

	BetsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bets_rejected_total",
		Help: "Apostas recusadas na validação, por motivo.",
	}, []string{"reason"})

	OrdersReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_reconciled_total",
		Help: "Confirmações de pagamento processadas, por desfecho.",
	}, []string{"outcome"})

	BetsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bets_settled_total",
		Help: "Apostas liquidadas, por classe de resultado.",
	}, []string{"result"})

	PayoutRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payout_retries_total",
		Help: "Retentativas de saque/rollback reenfileiradas.",
	})

	GatewayErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_errors_total",
		Help: "Falhas de chamada ao gateway de pagamento, por endpoint.",
	}, []string{"endpoint"})
)
