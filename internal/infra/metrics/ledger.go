package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(refundsTotal, deductRefusalsTotal) }

var refundsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "ledger_refunds_total",
		Help: "Refunds issued for failed predictions.",
	},
)

var deductRefusalsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "ledger_deduct_refusals_total",
		Help: "Deductions refused because the balance did not cover the amount.",
	},
)

func IncRefund() {
	refundsTotal.Inc()
}

func IncDeductRefusal() {
	deductRefusalsTotal.Inc()
}
