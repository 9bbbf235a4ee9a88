// Package metrics exposes Prometheus counters for the register ledger.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	paymentsAdded   *prometheus.CounterVec
	paymentsRemoved prometheus.Counter
	rejected        *prometheus.CounterVec
	daysClosed      prometheus.Counter
	reportsBuilt    *prometheus.CounterVec
	reportCacheHits prometheus.Counter
	exportJobs      *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		paymentsAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caixa",
			Name:      "payments_added_total",
			Help:      "Payments appended to an open day, by method.",
		}, []string{"method"}),
		paymentsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "caixa",
			Name:      "payments_removed_total",
			Help:      "Payments deleted from an open day.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caixa",
			Name:      "ledger_rejections_total",
			Help:      "Ledger operations rejected, by reason.",
		}, []string{"reason"}),
		daysClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "caixa",
			Name:      "days_closed_total",
			Help:      "Open to closed day transitions.",
		}),
		reportsBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caixa",
			Name:      "reports_built_total",
			Help:      "Report archives built, by table format.",
		}, []string{"format"}),
		reportCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "caixa",
			Name:      "report_cache_hits_total",
			Help:      "Report archives served from cache.",
		}),
		exportJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caixa",
			Name:      "export_jobs_total",
			Help:      "Background archive exports, by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.paymentsAdded, m.paymentsRemoved, m.rejected, m.daysClosed,
		m.reportsBuilt, m.reportCacheHits, m.exportJobs)
	return m
}

func (m *Metrics) PaymentAdded(method string) {
	if m == nil {
		return
	}
	m.paymentsAdded.WithLabelValues(method).Inc()
}

func (m *Metrics) PaymentRemoved() {
	if m == nil {
		return
	}
	m.paymentsRemoved.Inc()
}

// Rejected counts a refused mutation; reason is "closed_day", "validation", ...
func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) DayClosed() {
	if m == nil {
		return
	}
	m.daysClosed.Inc()
}

func (m *Metrics) ReportBuilt(format string) {
	if m == nil {
		return
	}
	m.reportsBuilt.WithLabelValues(format).Inc()
}

func (m *Metrics) ReportCacheHit() {
	if m == nil {
		return
	}
	m.reportCacheHits.Inc()
}

func (m *Metrics) ExportJob(outcome string) {
	if m == nil {
		return
	}
	m.exportJobs.WithLabelValues(outcome).Inc()
}
