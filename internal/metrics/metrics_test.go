package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterAccumulates(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("messages_sent", map[string]string{"result": "sent"})
	r.IncrementCounter("messages_sent", map[string]string{"result": "sent"})
	r.AddToCounter("messages_sent", 3, map[string]string{"result": "sent"})

	snap := r.Snapshot()
	counters := snap["counters"].(map[string]*Metric)
	require.Contains(t, counters, "messages_sent_result:sent")
	assert.Equal(t, float64(5), counters["messages_sent_result:sent"].Value)
}

func TestCountersWithDifferentLabelsAreSeparate(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("messages_sent", map[string]string{"result": "sent"})
	r.IncrementCounter("messages_sent", map[string]string{"result": "failed"})

	counters := r.Snapshot()["counters"].(map[string]*Metric)
	assert.Len(t, counters, 2)
}

func TestTimerAggregation(t *testing.T) {
	r := NewRegistry()

	r.RecordTimer("gateway_send", 10*time.Millisecond, nil)
	r.RecordTimer("gateway_send", 30*time.Millisecond, nil)

	timers := r.Snapshot()["timers"].(map[string]*TimerMetric)
	timer := timers["gateway_send"]
	require.NotNil(t, timer)
	assert.Equal(t, int64(2), timer.Count)
	assert.Equal(t, float64(10), timer.Min)
	assert.Equal(t, float64(30), timer.Max)
	assert.Equal(t, float64(20), timer.Average)
}

func TestTimerPercentiles(t *testing.T) {
	r := NewRegistry()

	for i := 1; i <= 100; i++ {
		r.RecordTimer("op", time.Duration(i)*time.Millisecond, nil)
	}

	timer := r.Snapshot()["timers"].(map[string]*TimerMetric)["op"]
	require.NotNil(t, timer)
	assert.InDelta(t, 95, timer.P95, 2)
}

func TestGaugeOverwrites(t *testing.T) {
	r := NewRegistry()

	r.SetGauge("pending_messages", 10, nil)
	r.SetGauge("pending_messages", 4, nil)

	gauges := r.Snapshot()["gauges"].(map[string]*Metric)
	assert.Equal(t, float64(4), gauges["pending_messages"].Value)
}

func TestMetricKeyIsStable(t *testing.T) {
	a := metricKey("m", map[string]string{"x": "1", "y": "2"})
	b := metricKey("m", map[string]string{"y": "2", "x": "1"})
	assert.Equal(t, a, b)
}

func TestSnapshotIsDetachedFromWriters(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("c", map[string]string{"result": "sent"})
	r.RecordTimer("t", 10*time.Millisecond, nil)

	snap := r.Snapshot()

	r.AddToCounter("c", 5, map[string]string{"result": "sent"})
	r.RecordTimer("t", 30*time.Millisecond, nil)

	counters := snap["counters"].(map[string]*Metric)
	assert.Equal(t, float64(1), counters["c_result:sent"].Value)

	timers := snap["timers"].(map[string]*TimerMetric)
	assert.Equal(t, int64(1), timers["t"].Count)
	assert.Equal(t, float64(10), timers["t"].Max)
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	done := make(chan struct{})

	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				r.IncrementCounter("c", nil)
				r.RecordTimer("t", time.Millisecond, nil)
				r.SetGauge("g", float64(j), nil)
			}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	counters := r.Snapshot()["counters"].(map[string]*Metric)
	assert.Equal(t, float64(400), counters["c"].Value)
}
