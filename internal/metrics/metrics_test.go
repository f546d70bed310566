package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestDisabledMetricsAreNoOps(t *testing.T) {
	m := New(Config{})

	m.Inc(MetricLoginSuccess)
	m.Observe(MetricValidateLatency, time.Millisecond)

	if m.Value(MetricLoginSuccess) != 0 {
		t.Fatal("disabled metrics recorded a counter")
	}

	snap := m.SnapshotNow()
	if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatal("disabled metrics returned a populated snapshot")
	}
}

func TestCountersUnderConcurrency(t *testing.T) {
	m := New(Config{Enabled: true})

	const workers = 8
	const perWorker = 1000

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricRefreshSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricRefreshSuccess); got != workers*perWorker {
		t.Fatalf("expected %d increments, got %d", workers*perWorker, got)
	}
}

func TestLatencyHistogramBuckets(t *testing.T) {
	m := New(Config{Enabled: true, EnableLatency: true})

	m.Observe(MetricValidateLatency, 2*time.Millisecond)
	m.Observe(MetricValidateLatency, 30*time.Millisecond)
	m.Observe(MetricValidateLatency, time.Second)

	snap := m.SnapshotNow()
	buckets, ok := snap.Histograms[MetricValidateLatency]
	if !ok {
		t.Fatal("missing validate latency histogram")
	}
	if buckets[0] != 1 || buckets[3] != 1 || buckets[7] != 1 {
		t.Fatalf("unexpected bucket distribution: %v", buckets)
	}
}

func TestUnknownMetricIDIgnored(t *testing.T) {
	m := New(Config{Enabled: true})
	m.Inc(MetricID(10_000))
	if m.Value(MetricID(10_000)) != 0 {
		t.Fatal("out-of-range metric ID was recorded")
	}
}
