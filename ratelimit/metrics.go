package ratelimit

import "github.com/prometheus/client_golang/prometheus"

// Metrics exports limiter decisions. A nil *Metrics records nothing.
type Metrics struct {
	checks *prometheus.CounterVec
	errors prometheus.Counter
	swept  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		checks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regime_rate_limit_checks_total",
				Help: "Total number of rate limit checks by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		errors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "regime_rate_limit_errors_total",
				Help: "Total number of rate limit checks that failed in the store",
			},
		),
		swept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "regime_rate_limit_swept_total",
				Help: "Total number of expired rate limit entries removed by the sweeper",
			},
		),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.checks, m.errors, m.swept} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(operation string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "allowed"
	if !allowed {
		outcome = "blocked"
	}
	m.checks.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) observeError() {
	if m == nil {
		return
	}
	m.errors.Inc()
}

func (m *Metrics) observeSweep(removed int) {
	if m == nil || removed <= 0 {
		return
	}
	m.swept.Add(float64(removed))
}
