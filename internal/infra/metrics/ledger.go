package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(ledgerOpsTotal, ledgerTokensTotal, insufficientBalanceTotal, plansExpiredTotal) }

var ledgerOpsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ledger_operations_total",
		Help: "Ledger operations by direction (debit/credit).",
	},
	[]string{"direction"},
)

var ledgerTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ledger_tokens_total",
		Help: "Tokens moved through the ledger by direction.",
	},
	[]string{"direction"},
)

var insufficientBalanceTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "ledger_insufficient_balance_total",
		Help: "Debits refused because the balance was too low.",
	},
)

func ObserveLedger(direction string, amount int) {
	ledgerOpsTotal.WithLabelValues(norm(direction)).Inc()
	ledgerTokensTotal.WithLabelValues(norm(direction)).Add(float64(amount))
}

var plansExpiredTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "ledger_plans_expired_total",
		Help: "Plans cleared after passing their expiry.",
	},
)

func IncInsufficientBalance() { insufficientBalanceTotal.Inc() }
func IncPlansExpired(n int)   { plansExpiredTotal.Add(float64(n)) }
