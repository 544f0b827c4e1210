// Package monitors runs probes repeatedly at a fixed interval.
package monitors

import (
	"context"
	"time"

	"github.com/willibrandon/dbprobe/internal/db"
	"github.com/willibrandon/dbprobe/internal/metrics"
)

// Prober is the part of *db.Prober the monitor needs.
type Prober interface {
	Probe(ctx context.Context) (*db.Result, error)
}

// ProbeHandler receives each probe. Returning false stops the monitor.
type ProbeHandler func(res *db.Result, err error) bool

// ProbeMonitor runs a fixed number of probes and tracks their latency.
type ProbeMonitor struct {
	prober   Prober
	interval time.Duration
	count    int
	tracker  *metrics.LatencyTracker
}

// NewProbeMonitor creates a monitor running count probes interval apart.
// A count below one runs a single probe. Only the most recent
// metrics.DefaultBufferCapacity samples are retained; the summary covers all.
func NewProbeMonitor(prober Prober, count int, interval time.Duration) *ProbeMonitor {
	if count < 1 {
		count = 1
	}
	return &ProbeMonitor{
		prober:   prober,
		interval: interval,
		count:    count,
		tracker:  metrics.NewLatencyTracker(min(count, metrics.DefaultBufferCapacity)),
	}
}

// FetchOnce runs one probe and records its latency.
func (m *ProbeMonitor) FetchOnce(ctx context.Context) (*db.Result, error) {
	res, err := m.prober.Probe(ctx)
	m.tracker.Record(res.StartedAt, res.Latency, res.OK())
	return res, err
}

// Run probes until count is reached, the handler returns false or ctx is
// cancelled. The first probe runs immediately. It returns the number of
// probes run.
func (m *ProbeMonitor) Run(ctx context.Context, handle ProbeHandler) int {
	if !handle(m.FetchOnce(ctx)) || m.count == 1 {
		return 1
	}

	var tick <-chan time.Time
	if m.interval > 0 {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	n := 1
	for n < m.count {
		if tick != nil {
			select {
			case <-ctx.Done():
				return n
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return n
		}

		n++
		if !handle(m.FetchOnce(ctx)) {
			break
		}
	}
	return n
}

// Summary returns the latency summary of the probes run so far.
func (m *ProbeMonitor) Summary() metrics.Summary {
	return m.tracker.Summary()
}
