package infra

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the agent's Prometheus collectors. Construct once in
// bootstrap and hand the pointer to whoever needs it. All helper methods
// are nil-receiver safe, so tests pass nil and count nothing.
type Metrics struct {
	LatchAcquires *prometheus.CounterVec // result=acquired|blocked
	LatchExpiries prometheus.Counter

	Submissions         *prometheus.CounterVec // result=submitted|refused|skipped|failed
	InflightSubmissions prometheus.Gauge

	Reconnects *prometheus.CounterVec // stream, category
	StreamUp   *prometheus.GaugeVec   // stream

	FillsRecorded   prometheus.Counter
	FillNoops       prometheus.Counter
	EventsProcessed prometheus.Counter

	EquityQuote prometheus.Gauge
}

// NewMetrics builds and registers the collectors. Pass
// prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LatchAcquires: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeguard_latch_acquires_total",
				Help: "Intent latch acquisition attempts by result",
			},
			[]string{"result"},
		),
		LatchExpiries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradeguard_latch_expiries_total",
			Help: "Latch holders that overran their TTL and were lazily expired",
		}),
		Submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeguard_submissions_total",
				Help: "Order submissions by result",
			},
			[]string{"result"},
		),
		InflightSubmissions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradeguard_inflight_submissions",
			Help: "Submissions currently inside the shutdown gate",
		}),
		Reconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeguard_reconnects_total",
				Help: "Stream reconnect attempts by failure category",
			},
			[]string{"stream", "category"},
		),
		StreamUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradeguard_stream_up",
				Help: "1 when the stream is connected",
			},
			[]string{"stream"},
		),
		FillsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradeguard_fills_recorded_total",
			Help: "Fill deltas appended to the ledger",
		}),
		FillNoops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradeguard_fill_noops_total",
			Help: "Order snapshots that carried no new fill",
		}),
		EventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradeguard_events_processed_total",
			Help: "Events processed by the sequencer",
		}),
		EquityQuote: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradeguard_equity_quote",
			Help: "Account equity in the quote currency",
		}),
	}

	reg.MustRegister(
		m.LatchAcquires,
		m.LatchExpiries,
		m.Submissions,
		m.InflightSubmissions,
		m.Reconnects,
		m.StreamUp,
		m.FillsRecorded,
		m.FillNoops,
		m.EventsProcessed,
		m.EquityQuote,
	)

	return m
}

func (m *Metrics) IncLatchAcquire(result string) {
	if m == nil {
		return
	}
	m.LatchAcquires.WithLabelValues(result).Inc()
}

func (m *Metrics) IncLatchExpired() {
	if m == nil {
		return
	}
	m.LatchExpiries.Inc()
}

func (m *Metrics) IncSubmission(result string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(result).Inc()
}

func (m *Metrics) SetInflightSubmissions(n int) {
	if m == nil {
		return
	}
	m.InflightSubmissions.Set(float64(n))
}

func (m *Metrics) IncReconnect(stream string, category string) {
	if m == nil {
		return
	}
	m.Reconnects.WithLabelValues(stream, category).Inc()
}

func (m *Metrics) SetStreamUp(stream string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1.0
	}
	m.StreamUp.WithLabelValues(stream).Set(v)
}

func (m *Metrics) IncFillRecorded() {
	if m == nil {
		return
	}
	m.FillsRecorded.Inc()
}

func (m *Metrics) IncFillNoop() {
	if m == nil {
		return
	}
	m.FillNoops.Inc()
}

func (m *Metrics) IncEventProcessed() {
	if m == nil {
		return
	}
	m.EventsProcessed.Inc()
}

func (m *Metrics) SetEquityQuote(v float64) {
	if m == nil {
		return
	}
	m.EquityQuote.Set(v)
}
