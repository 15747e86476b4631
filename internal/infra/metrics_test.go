package infra

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.IncLatchAcquire("acquired")
	m.IncLatchAcquire("blocked")
	m.IncLatchAcquire("blocked")
	m.IncLatchExpired()

	if got := testutil.ToFloat64(m.LatchAcquires.WithLabelValues("blocked")); got != 2 {
		t.Errorf("blocked acquires = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.LatchAcquires.WithLabelValues("acquired")); got != 1 {
		t.Errorf("acquired = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.LatchExpiries); got != 1 {
		t.Errorf("expiries = %v, want 1", got)
	}
}

func TestMetrics_Gauges(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SetInflightSubmissions(3)
	if got := testutil.ToFloat64(m.InflightSubmissions); got != 3 {
		t.Errorf("inflight = %v, want 3", got)
	}
	m.SetInflightSubmissions(0)
	if got := testutil.ToFloat64(m.InflightSubmissions); got != 0 {
		t.Errorf("inflight = %v, want 0", got)
	}

	m.SetStreamUp("ticker", true)
	if got := testutil.ToFloat64(m.StreamUp.WithLabelValues("ticker")); got != 1 {
		t.Errorf("stream up = %v, want 1", got)
	}
	m.SetStreamUp("ticker", false)
	if got := testutil.ToFloat64(m.StreamUp.WithLabelValues("ticker")); got != 0 {
		t.Errorf("stream up = %v, want 0", got)
	}

	m.SetEquityQuote(1234.5)
	if got := testutil.ToFloat64(m.EquityQuote); got != 1234.5 {
		t.Errorf("equity = %v, want 1234.5", got)
	}
}

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *Metrics

	// None of these may panic; nil metrics means counting disabled.
	m.IncLatchAcquire("acquired")
	m.IncLatchExpired()
	m.IncSubmission("submitted")
	m.SetInflightSubmissions(1)
	m.IncReconnect("ticker", "transient")
	m.SetStreamUp("ticker", true)
	m.IncFillRecorded()
	m.IncFillNoop()
	m.IncEventProcessed()
	m.SetEquityQuote(1)
}
