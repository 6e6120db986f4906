package api

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors updated by the handlers and the sequencer.
type Metrics struct {
	txOps      *prometheus.CounterVec
	txDur      prometheus.Summary
	requestCtr *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		txOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transactions",
				Help: "Incremented for each transaction processed, labeled by success or failure.",
			},
			[]string{"success"},
		),
		txDur: prometheus.NewSummary(
			prometheus.SummaryOpts{
				Name: "transaction_duration",
				Help: "Summary of how long a transaction takes to process, in microseconds.",
			},
		),
		requestCtr: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "requests",
				Help: "Incremented for each API request received.",
			},
			[]string{"path", "status"},
		),
	}
}

// Register adds every collector to `reg`.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.txOps, m.txDur, m.requestCtr} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) observeTransaction(start time.Time, err error) {
	if m == nil {
		return
	}
	m.txOps.WithLabelValues(fmt.Sprint(err == nil)).Inc()
	m.txDur.Observe(float64(time.Since(start).Microseconds()))
}

func (m *Metrics) observeRequest(path string, status int) {
	if m == nil {
		return
	}
	m.requestCtr.WithLabelValues(path, fmt.Sprint(status)).Inc()
}
