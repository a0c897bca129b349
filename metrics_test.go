package accountguard

import (
	"testing"
	"time"
)

func TestMetricsDisabledIgnoresEverything(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false, EnableLatencyHistograms: true})
	m.Inc(MetricLoginSuccess)
	m.Observe(MetricLoginLatency, time.Millisecond)

	if m.Value(MetricLoginSuccess) != 0 {
		t.Fatalf("disabled metrics counted")
	}
	if m.LatencyEnabled() {
		t.Fatalf("latency must follow the enabled switch")
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLoginSuccess)
	m.Observe(MetricLoginLatency, time.Millisecond)
	if m.Enabled() || m.Value(MetricLoginSuccess) != 0 {
		t.Fatalf("nil metrics must be inert")
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Inc(MetricLoginFailure)
	m.Inc(MetricLoginFailure)
	m.Inc(MetricAccountLocked)
	m.Observe(MetricLoginLatency, 3*time.Millisecond)
	m.Observe(MetricLoginLatency, 30*time.Millisecond)
	m.Observe(MetricLoginLatency, 2*time.Second)
	m.Observe(MetricLoginFailure, time.Millisecond)

	snap := m.Snapshot()
	if got := snap.Counters[MetricLoginFailure]; got != 2 {
		t.Fatalf("login failures: got %d, want 2", got)
	}
	if got := snap.Counters[MetricAccountLocked]; got != 1 {
		t.Fatalf("account locked: got %d, want 1", got)
	}
	if _, ok := snap.Counters[MetricLoginLatency]; ok {
		t.Fatalf("latency metrics must not appear as counters")
	}

	hist := snap.Histograms[MetricLoginLatency]
	if len(hist) != histBucketCount {
		t.Fatalf("histogram buckets: got %d, want %d", len(hist), histBucketCount)
	}
	if hist[0] != 1 || hist[3] != 1 || hist[7] != 1 {
		t.Fatalf("unexpected bucket counts %v", hist)
	}
	if _, ok := snap.Histograms[MetricLoginFailure]; ok {
		t.Fatalf("counters must not carry histograms")
	}
}

func TestBucketIndexBounds(t *testing.T) {
	cases := map[time.Duration]int{
		5 * time.Millisecond:   0,
		6 * time.Millisecond:   1,
		25 * time.Millisecond:  2,
		100 * time.Millisecond: 4,
		500 * time.Millisecond: 6,
		501 * time.Millisecond: 7,
	}
	for d, want := range cases {
		if got := bucketIndex(d); got != want {
			t.Fatalf("bucketIndex(%v) = %d, want %d", d, got, want)
		}
	}
}
