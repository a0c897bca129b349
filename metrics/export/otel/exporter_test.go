package otel

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/accountguard"
	"github.com/MrEthical07/accountguard/account"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot accountguard.MetricsSnapshot
	dropped  uint64
	failed   uint64
}

func (f *fakeSource) MetricsSnapshot() accountguard.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := accountguard.MetricsSnapshot{
		Counters:   make(map[accountguard.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[accountguard.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func (f *fakeSource) AuditFailed() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.failed
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

// collect keys each data point by metric name, plus {le=...} for bucket
// series.
func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			data, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			assert.True(t, data.IsMonotonic, m.Name)
			for _, dp := range data.DataPoints {
				key := m.Name
				if le, ok := dp.Attributes.Value("le"); ok {
					key += "{le=" + le.AsString() + "}"
				}
				out[key] = dp.Value
			}
		}
	}
	return out
}

func TestExporterObservesCountersAndHistograms(t *testing.T) {
	reader, provider := newReader()

	src := &fakeSource{
		snapshot: accountguard.MetricsSnapshot{
			Counters: map[accountguard.MetricID]uint64{
				accountguard.MetricLoginSuccess:  3,
				accountguard.MetricAccountLocked: 1,
			},
			Histograms: map[accountguard.MetricID][]uint64{
				accountguard.MetricLoginLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 2,
		failed:  1,
	}

	exp, err := NewExporterFromSource(provider.Meter("accountguard-test"), src)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, exp.Close()) })

	got := collect(t, reader)
	assert.Equal(t, int64(3), got["accountguard_login_success_total"])
	assert.Equal(t, int64(1), got["accountguard_account_locked_total"])
	assert.Equal(t, int64(0), got["accountguard_logout_total"])
	assert.Equal(t, int64(2), got["accountguard_audit_dropped_total"])
	assert.Equal(t, int64(1), got["accountguard_audit_failed_total"])
	assert.Equal(t, int64(1), got["accountguard_login_latency_seconds_bucket{le=0.005}"])
	assert.Equal(t, int64(4), got["accountguard_login_latency_seconds_bucket{le=0.05}"])
	assert.Equal(t, int64(7), got["accountguard_login_latency_seconds_bucket{le=0.5}"])
	assert.Equal(t, int64(8), got["accountguard_login_latency_seconds_bucket{le=+Inf}"])
	assert.Equal(t, int64(8), got["accountguard_login_latency_seconds_count"])

	_, observed := got["accountguard_password_reset_latency_seconds_count"]
	assert.False(t, observed, "histograms absent from the snapshot are not observed")
}

func TestExporterReadsEngine(t *testing.T) {
	reader, provider := newReader()

	cfg := accountguard.DefaultConfig()
	cfg.JWT.Secret = "otel-secret-otel-secret-otel-secret!"
	cfg.Password.Hashing.BcryptCost = bcrypt.MinCost
	cfg.RateLimit.Enabled = false
	cfg.Audit.Async = false
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	engine, err := accountguard.New().
		WithConfig(cfg).
		WithRepository(account.NewMemoryRepository()).
		WithLogger(slog.New(slog.DiscardHandler)).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	exp, err := NewExporter(provider.Meter("accountguard-test"), engine)
	require.NoError(t, err)
	t.Cleanup(func() { _ = exp.Close() })

	_, err = engine.Login(context.Background(), "nobody", "Wrong!Pass1", false)
	require.Error(t, err)

	got := collect(t, reader)
	assert.Equal(t, int64(1), got["accountguard_login_failure_total"])
	assert.Equal(t, int64(1), got["accountguard_login_latency_seconds_count"])
	assert.Equal(t, int64(1), got["accountguard_login_latency_seconds_bucket{le=+Inf}"])
	assert.Zero(t, got["accountguard_audit_failed_total"])
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReader()
	meter := provider.Meter("accountguard-test")

	_, err := NewExporterFromSource(nil, &fakeSource{})
	assert.ErrorIs(t, err, ErrNilMeter)

	_, err = NewExporterFromSource(meter, nil)
	assert.ErrorIs(t, err, ErrNilSource)

	_, err = NewExporter(meter, nil)
	assert.ErrorIs(t, err, ErrNilSource)
}

func TestExporterCloseStopsObservation(t *testing.T) {
	reader, provider := newReader()

	src := &fakeSource{snapshot: accountguard.MetricsSnapshot{
		Counters: map[accountguard.MetricID]uint64{accountguard.MetricLogout: 5},
	}}
	exp, err := NewExporterFromSource(provider.Meter("accountguard-test"), src)
	require.NoError(t, err)
	require.NoError(t, exp.Close())

	got := collect(t, reader)
	_, observed := got["accountguard_logout_total"]
	assert.False(t, observed)

	var nilExporter *Exporter
	assert.NoError(t, nilExporter.Close())
}

func TestExporterConcurrentCollect(t *testing.T) {
	reader, provider := newReader()

	src := &fakeSource{
		snapshot: accountguard.MetricsSnapshot{
			Counters: map[accountguard.MetricID]uint64{accountguard.MetricLoginSuccess: 1},
		},
	}
	exp, err := NewExporterFromSource(provider.Meter("accountguard-test"), src)
	require.NoError(t, err)
	t.Cleanup(func() { _ = exp.Close() })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[accountguard.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
