package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrEthical07/accountguard"
	"github.com/MrEthical07/accountguard/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source is read once per collection cycle.
type Source interface {
	MetricsSnapshot() accountguard.MetricsSnapshot
	AuditDropped() uint64
	AuditFailed() uint64
}

// reading is one collection's view of a Source.
type reading struct {
	snapshot accountguard.MetricsSnapshot
	dropped  uint64
	failed   uint64
}

// observeFunc reports the instruments of one metric family from r.
type observeFunc func(o metric.Observer, r *reading)

// Exporter keeps the meter callback registered until Close.
type Exporter struct {
	registration metric.Registration
}

// NewExporter observes engine through meter.
func NewExporter(meter metric.Meter, engine *accountguard.Engine) (*Exporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource registers one callback that reads source and reports
// counters, latency buckets keyed by an "le" attribute and audit delivery
// losses.
func NewExporterFromSource(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	var (
		observables []metric.Observable
		observers   []observeFunc
	)
	add := func(observe observeFunc, instruments []metric.Observable, err error) error {
		if err != nil {
			return err
		}
		observers = append(observers, observe)
		observables = append(observables, instruments...)
		return nil
	}

	for _, def := range internaldefs.CounterDefs {
		if err := add(counterFamily(meter, def)); err != nil {
			return nil, err
		}
	}
	for _, def := range internaldefs.HistogramDefs {
		if err := add(histogramFamily(meter, def)); err != nil {
			return nil, err
		}
	}
	if err := add(auditFamily(meter)); err != nil {
		return nil, err
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		r := reading{
			snapshot: source.MetricsSnapshot(),
			dropped:  source.AuditDropped(),
			failed:   source.AuditFailed(),
		}
		for _, observe := range observers {
			observe(o, &r)
		}
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return &Exporter{registration: registration}, nil
}

func counterFamily(meter metric.Meter, def internaldefs.CounterDef) (observeFunc, []metric.Observable, error) {
	counter, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
	if err != nil {
		return nil, nil, fmt.Errorf("create counter %s: %w", def.Name, err)
	}
	observe := func(o metric.Observer, r *reading) {
		o.ObserveInt64(counter, int64(r.snapshot.Counters[def.ID]))
	}
	return observe, []metric.Observable{counter}, nil
}

// histogramFamily reports a latency histogram as a cumulative
// <name>_bucket counter with one "le" series per upper bound, plus
// <name>_count. Histograms missing from the snapshot are skipped.
func histogramFamily(meter metric.Meter, def internaldefs.HistogramDef) (observeFunc, []metric.Observable, error) {
	buckets, err := meter.Int64ObservableCounter(def.Name+"_bucket",
		metric.WithDescription(def.Help+" Cumulative samples at or below each upper bound."),
		metric.WithUnit("{sample}"))
	if err != nil {
		return nil, nil, fmt.Errorf("create histogram buckets %s: %w", def.Name, err)
	}
	count, err := meter.Int64ObservableCounter(def.Name+"_count",
		metric.WithDescription(def.Help+" Sample count."),
		metric.WithUnit("{sample}"))
	if err != nil {
		return nil, nil, fmt.Errorf("create histogram count %s: %w", def.Name, err)
	}

	bounds := make([]metric.ObserveOption, len(internaldefs.HistogramBoundLabels))
	for i, le := range internaldefs.HistogramBoundLabels {
		bounds[i] = metric.WithAttributeSet(attribute.NewSet(attribute.String("le", le)))
	}

	observe := func(o metric.Observer, r *reading) {
		raw, ok := r.snapshot.Histograms[def.ID]
		if !ok {
			return
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i, total := range cumulative {
			o.ObserveInt64(buckets, int64(total), bounds[i])
		}
		o.ObserveInt64(count, int64(cumulative[len(cumulative)-1]))
	}
	return observe, []metric.Observable{buckets, count}, nil
}

func auditFamily(meter metric.Meter) (observeFunc, []metric.Observable, error) {
	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName, metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, nil, fmt.Errorf("create counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	failed, err := meter.Int64ObservableCounter(internaldefs.AuditFailedName, metric.WithDescription(internaldefs.AuditFailedHelp))
	if err != nil {
		return nil, nil, fmt.Errorf("create counter %s: %w", internaldefs.AuditFailedName, err)
	}
	observe := func(o metric.Observer, r *reading) {
		o.ObserveInt64(dropped, int64(r.dropped))
		o.ObserveInt64(failed, int64(r.failed))
	}
	return observe, []metric.Observable{dropped, failed}, nil
}

func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
