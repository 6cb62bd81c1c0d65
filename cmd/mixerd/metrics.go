// metrics.go - Metrics collection for the mixer daemon.
package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Metrics tracks protocol activity counters and proof latency.
type Metrics struct {
	mu sync.RWMutex

	DepositsTotal        int64 `json:"deposits_total"`
	WithdrawalsConfirmed int64 `json:"withdrawals_confirmed"`
	WithdrawalsRejected  int64 `json:"withdrawals_rejected"`
	RelayedSubmissions   int64 `json:"relayed_submissions"`

	proofLatencies []time.Duration
}

// NewMetrics creates an empty metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordDeposit counts one confirmed deposit.
func (m *Metrics) RecordDeposit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DepositsTotal++
}

// RecordWithdrawal counts one withdrawal outcome.
func (m *Metrics) RecordWithdrawal(confirmed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if confirmed {
		m.WithdrawalsConfirmed++
	} else {
		m.WithdrawalsRejected++
	}
}

// RecordRelayedSubmission counts one submission through the relay.
func (m *Metrics) RecordRelayedSubmission() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RelayedSubmissions++
}

// ObserveProofLatency records one proof generation duration.
func (m *Metrics) ObserveProofLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proofLatencies = append(m.proofLatencies, d)
	// Keep only the last 1000 observations.
	if len(m.proofLatencies) > 1000 {
		m.proofLatencies = m.proofLatencies[len(m.proofLatencies)-1000:]
	}
}

// snapshot is the JSON shape served on /metrics.
type snapshot struct {
	DepositsTotal        int64   `json:"deposits_total"`
	WithdrawalsConfirmed int64   `json:"withdrawals_confirmed"`
	WithdrawalsRejected  int64   `json:"withdrawals_rejected"`
	RelayedSubmissions   int64   `json:"relayed_submissions"`
	ProofCount           int     `json:"proof_count"`
	ProofLatencyAvgMs    float64 `json:"proof_latency_avg_ms"`
	ProofLatencyMaxMs    float64 `json:"proof_latency_max_ms"`
}

// Handler serves the current metrics as JSON.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		s := snapshot{
			DepositsTotal:        m.DepositsTotal,
			WithdrawalsConfirmed: m.WithdrawalsConfirmed,
			WithdrawalsRejected:  m.WithdrawalsRejected,
			RelayedSubmissions:   m.RelayedSubmissions,
			ProofCount:           len(m.proofLatencies),
		}
		var total, max time.Duration
		for _, d := range m.proofLatencies {
			total += d
			if d > max {
				max = d
			}
		}
		if len(m.proofLatencies) > 0 {
			s.ProofLatencyAvgMs = float64(total.Milliseconds()) / float64(len(m.proofLatencies))
			s.ProofLatencyMaxMs = float64(max.Milliseconds())
		}
		m.mu.RUnlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s)
	})
}
