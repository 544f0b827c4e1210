package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatencyTracker_Summary(t *testing.T) {
	tr := NewLatencyTracker(10)
	now := time.Now()

	tr.Record(now, 10*time.Millisecond, true)
	tr.Record(now, 30*time.Millisecond, true)
	tr.Record(now, 5*time.Second, false)
	tr.Record(now, 20*time.Millisecond, true)

	s := tr.Summary()
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 3, s.OK)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 10*time.Millisecond, s.Min)
	assert.Equal(t, 30*time.Millisecond, s.Max)
	assert.Equal(t, 20*time.Millisecond, s.Mean)
	assert.True(t, s.EWMA >= s.Min && s.EWMA <= s.Max, "ewma %v outside [min,max]", s.EWMA)
	assert.Contains(t, s.String(), "4 probes, 3 ok, 1 failed")
}

func TestLatencyTracker_FirstSampleSetsEWMA(t *testing.T) {
	tr := NewLatencyTracker(10)
	tr.Record(time.Now(), 42*time.Millisecond, true)

	assert.Equal(t, 42*time.Millisecond, tr.Summary().EWMA)
}

func TestLatencyTracker_AllFailed(t *testing.T) {
	tr := NewLatencyTracker(10)
	tr.Record(time.Now(), time.Second, false)
	tr.Record(time.Now(), time.Second, false)

	s := tr.Summary()
	assert.Equal(t, 0, s.OK)
	assert.Zero(t, s.Mean)
	assert.Equal(t, "2 probes, 0 ok, 2 failed", s.String())
}

func TestSuccessMillis(t *testing.T) {
	tr := NewLatencyTracker(10)
	now := time.Now()
	tr.Record(now, 2*time.Millisecond, true)
	tr.Record(now, time.Second, false)
	tr.Record(now, 1500*time.Microsecond, true)

	assert.Equal(t, []float64{2, 1.5}, SuccessMillis(tr.Samples()))
	assert.Len(t, tr.Samples(), 3)
}
