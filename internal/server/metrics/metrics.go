// Package metrics exposes the identity core's observability signals as
// Prometheus gauges.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gauges updated by the status telemetry job.
type Metrics struct {
	registry *prometheus.Registry

	AccountsTotal      prometheus.Gauge
	AccountsVerified   prometheus.Gauge
	AccountsUnverified prometheus.Gauge
	PurgedAccounts     prometheus.Counter
	ClearedResetTokens prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		AccountsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "accountkeeper_accounts_total",
			Help: "Total number of accounts.",
		}),
		AccountsVerified: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "accountkeeper_accounts_verified",
			Help: "Number of accounts with a verified email.",
		}),
		AccountsUnverified: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "accountkeeper_accounts_unverified",
			Help: "Number of accounts awaiting email verification.",
		}),
		PurgedAccounts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accountkeeper_purged_accounts_total",
			Help: "Stale unverified accounts removed by the purge job.",
		}),
		ClearedResetTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accountkeeper_cleared_reset_tokens_total",
			Help: "Expired reset tokens cleared by the maintenance job.",
		}),
	}

	reg.MustRegister(m.AccountsTotal, m.AccountsVerified, m.AccountsUnverified,
		m.PurgedAccounts, m.ClearedResetTokens)

	return m
}

// SetAccountCounts records one observation of the telemetry job.
func (m *Metrics) SetAccountCounts(total, verified int64) {
	m.AccountsTotal.Set(float64(total))
	m.AccountsVerified.Set(float64(verified))
	m.AccountsUnverified.Set(float64(total - verified))
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
