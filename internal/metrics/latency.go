package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/VividCortex/ewma"
)

// Summary aggregates the samples seen by a LatencyTracker. Latency figures
// cover successful probes only.
type Summary struct {
	Count  int
	OK     int
	Failed int
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	EWMA   time.Duration
}

func (s Summary) String() string {
	if s.OK == 0 {
		return fmt.Sprintf("%d probes, 0 ok, %d failed", s.Count, s.Failed)
	}
	return fmt.Sprintf("%d probes, %d ok, %d failed, latency min/avg/max/ewma = %s/%s/%s/%s",
		s.Count, s.OK, s.Failed,
		s.Min.Round(time.Microsecond), s.Mean.Round(time.Microsecond),
		s.Max.Round(time.Microsecond), s.EWMA.Round(time.Microsecond))
}

// LatencyTracker records probe latencies across repeated runs.
type LatencyTracker struct {
	mu      sync.Mutex
	samples *SampleBuffer
	avg     ewma.MovingAverage

	count, ok int
	min, max  time.Duration
	total     time.Duration
}

// NewLatencyTracker creates a tracker retaining up to capacity samples.
func NewLatencyTracker(capacity int) *LatencyTracker {
	return &LatencyTracker{
		samples: NewSampleBuffer(capacity),
		avg:     ewma.NewMovingAverage(),
	}
}

// Record adds one probe outcome.
func (t *LatencyTracker) Record(at time.Time, latency time.Duration, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.samples.Push(Sample{Timestamp: at, Latency: latency, OK: ok})
	t.count++
	if !ok {
		return
	}

	t.ok++
	t.total += latency
	t.avg.Add(float64(latency))
	if t.ok == 1 || latency < t.min {
		t.min = latency
	}
	if latency > t.max {
		t.max = latency
	}
}

// Summary returns the aggregate so far.
func (t *LatencyTracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Summary{
		Count:  t.count,
		OK:     t.ok,
		Failed: t.count - t.ok,
	}
	if t.ok > 0 {
		s.Min = t.min
		s.Max = t.max
		s.Mean = t.total / time.Duration(t.ok)
		s.EWMA = time.Duration(t.avg.Value())
	}
	return s
}

// Capacity returns how many samples the tracker retains.
func (t *LatencyTracker) Capacity() int {
	return t.samples.Cap()
}

// Samples returns the retained samples in chronological order.
func (t *LatencyTracker) Samples() []Sample {
	return t.samples.All()
}

// SuccessMillis returns the latencies of successful samples in milliseconds,
// oldest first, ready for plotting.
func SuccessMillis(samples []Sample) []float64 {
	var out []float64
	for _, s := range samples {
		if s.OK {
			out = append(out, s.Millis())
		}
	}
	return out
}
