package metrics_test

import (
	"testing"

	"github.com/downfa11-org/strata/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func getCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	_ = c.Write(m)
	return m.GetCounter().GetValue()
}

func getHistogramCount(h prometheus.Histogram) uint64 {
	m := &dto.Metric{}
	_ = h.Write(m)
	return m.GetHistogram().GetSampleCount()
}

func TestObserveAppend(t *testing.T) {
	ok := metrics.AppendsTotal.WithLabelValues("ok")
	failed := metrics.AppendsTotal.WithLabelValues("error")
	initialOK := getCounterValue(ok)
	initialFailed := getCounterValue(failed)
	initialLatency := getHistogramCount(metrics.AppendLatency)

	metrics.ObserveAppend(true, 0.01)
	metrics.ObserveAppend(true, 0.02)
	metrics.ObserveAppend(false, 0.5)

	if got := getCounterValue(ok); got != initialOK+2 {
		t.Fatalf("ok appends expected %v, got %v", initialOK+2, got)
	}
	if got := getCounterValue(failed); got != initialFailed+1 {
		t.Fatalf("failed appends expected %v, got %v", initialFailed+1, got)
	}
	if got := getHistogramCount(metrics.AppendLatency); got != initialLatency+3 {
		t.Fatalf("AppendLatency count expected %v, got %v", initialLatency+3, got)
	}
}

func TestObserveGeneration(t *testing.T) {
	mutable := metrics.GenerationsCreated.WithLabelValues("mutable")
	immutable := metrics.GenerationsCreated.WithLabelValues("immutable")
	initialMutable := getCounterValue(mutable)
	initialImmutable := getCounterValue(immutable)

	metrics.ObserveGeneration(true)
	metrics.ObserveGeneration(false)
	metrics.ObserveGeneration(false)

	if got := getCounterValue(mutable); got != initialMutable+1 {
		t.Fatalf("mutable generations expected %v, got %v", initialMutable+1, got)
	}
	if got := getCounterValue(immutable); got != initialImmutable+2 {
		t.Fatalf("immutable generations expected %v, got %v", initialImmutable+2, got)
	}
}

func TestObserveFlush(t *testing.T) {
	failed := metrics.FlushesTotal.WithLabelValues("error")
	initial := getCounterValue(failed)

	metrics.ObserveFlush(false)

	if got := getCounterValue(failed); got != initial+1 {
		t.Fatalf("failed flushes expected %v, got %v", initial+1, got)
	}
}
