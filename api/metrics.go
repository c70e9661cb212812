package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/nspcc-dev/payroll-ledger/payroll"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "payroll"

// Metrics collects ledger and API metrics.
type Metrics struct {
	reg *prometheus.Registry

	events    *prometheus.CounterVec
	paid      prometheus.Counter
	transfers *prometheus.CounterVec

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers metrics in a new registry. Process and Go runtime
// metrics are included.
func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "events_total",
			Help:      "Number of committed ledger changes by notification name.",
		}, []string{"event"}),
		paid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "paid_usd_cents_total",
			Help:      "Salaries paid in USD cents.",
		}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transfers_total",
			Help:      "Number of salary transfers by asset kind.",
		}, []string{"asset"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Number of API requests by route and status code.",
		}, []string{"route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request handling duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.events, m.paid, m.transfers, m.requests, m.duration,
	)

	return m
}

// HandleEvent accounts the ledger event. It is meant to be passed to
// payroll.WithSubscriber.
func (m *Metrics) HandleEvent(ev payroll.Event) {
	m.events.WithLabelValues(ev.Name).Inc()

	if ev.Name != payroll.EventPayday || ev.Payslip == nil {
		return
	}

	m.paid.Add(float64(ev.Payslip.USDCents))
	for i := range ev.Payslip.Transfers {
		kind := "token"
		if ev.Payslip.Transfers[i].IsNative() {
			kind = "native"
		}
		m.transfers.WithLabelValues(kind).Inc()
	}
}

// WatchLedger registers gauges reading the ledger state on every scrape.
func (m *Metrics) WatchLedger(l *payroll.Ledger) error {
	gauge := func(name, help string, f func() (uint64, error)) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      name,
			Help:      help,
		}, func() float64 {
			v, err := f()
			if err != nil {
				return math.NaN()
			}
			return float64(v)
		})
	}

	for _, c := range []prometheus.Collector{
		gauge("employees", "Number of active employees.", l.EmployeeCount),
		gauge("tokens", "Number of accepted tokens.", l.TokenCount),
		gauge("salaries_usd_cents", "Sum of yearly salaries in USD cents.", l.SalariesSummationUSDCents),
		gauge("paused", "Whether the ledger is paused.", func() (uint64, error) {
			p, err := l.Paused()
			if p {
				return 1, err
			}
			return 0, err
		}),
	} {
		if err := m.reg.Register(c); err != nil {
			return err
		}
	}

	return nil
}

// Handler returns the scrape endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) observeRequest(route string, code int, took time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(route).Observe(took.Seconds())
}
