package metrics

import (
	"sync"
	"time"
)

// DefaultBufferCapacity is the default maximum number of samples.
const DefaultBufferCapacity = 1000

// Sample is one probe outcome.
type Sample struct {
	Timestamp time.Time
	Latency   time.Duration
	OK        bool
}

// IsValid returns false for samples with a zero timestamp or negative latency.
func (s Sample) IsValid() bool {
	return !s.Timestamp.IsZero() && s.Latency >= 0
}

// Millis returns the latency in fractional milliseconds.
func (s Sample) Millis() float64 {
	return float64(s.Latency) / float64(time.Millisecond)
}

// SampleBuffer is a fixed-size ring buffer of samples.
// It is thread-safe and evicts the oldest entry when full.
type SampleBuffer struct {
	data     []Sample
	capacity int
	head     int // Next write position
	size     int // Current element count
	mu       sync.RWMutex
}

// NewSampleBuffer creates a SampleBuffer with the given capacity.
func NewSampleBuffer(capacity int) *SampleBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &SampleBuffer{
		data:     make([]Sample, capacity),
		capacity: capacity,
	}
}

// Push adds a sample, evicting the oldest if at capacity.
func (b *SampleBuffer) Push(s Sample) {
	if !s.IsValid() {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.data[b.head] = s
	b.head = (b.head + 1) % b.capacity

	if b.size < b.capacity {
		b.size++
	}
}

// Recent returns the n most recent samples in chronological order.
func (b *SampleBuffer) Recent(n int) []Sample {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || b.size == 0 {
		return nil
	}
	if n > b.size {
		n = b.size
	}

	result := make([]Sample, n)
	start := (b.head - n + b.capacity) % b.capacity
	for i := 0; i < n; i++ {
		result[i] = b.data[(start+i)%b.capacity]
	}
	return result
}

// All returns every sample in chronological order.
func (b *SampleBuffer) All() []Sample {
	return b.Recent(b.Len())
}

// Latest returns the most recent sample.
// Returns a zero Sample and false if the buffer is empty.
func (b *SampleBuffer) Latest() (Sample, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return Sample{}, false
	}

	// head points to next write position, so latest is at head-1
	return b.data[(b.head-1+b.capacity)%b.capacity], true
}

// Len returns the current number of samples.
func (b *SampleBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Cap returns the capacity of the buffer.
func (b *SampleBuffer) Cap() int {
	return b.capacity
}
