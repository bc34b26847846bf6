package telemetry

import "sync"

// DataPoint is a single metric sample stamped with workout-elapsed time.
type DataPoint struct {
	ElapsedMs int64
	Value     float64
}

// History accumulates metric samples (heart rate, power) for trend analysis.
// Samples are kept in arrival order; timestamps are workout-elapsed
// milliseconds, not wall clock, so pauses do not stretch the series.
type History struct {
	mu        sync.RWMutex
	points    []DataPoint
	maxPoints int
}

const defaultMaxPoints = 1800 // ~30 minutes at one sample per second

// NewHistory creates a History holding at most maxPoints samples.
// maxPoints <= 0 selects the default capacity.
func NewHistory(maxPoints int) *History {
	if maxPoints <= 0 {
		maxPoints = defaultMaxPoints
	}
	return &History{
		points:    make([]DataPoint, 0, maxPoints),
		maxPoints: maxPoints,
	}
}

// Add records a sample. Samples arriving with a timestamp older than the
// latest recorded one are dropped so the series stays ordered by time.
func (h *History) Add(elapsedMs int64, value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := len(h.points); n > 0 && elapsedMs < h.points[n-1].ElapsedMs {
		return
	}
	h.points = append(h.points, DataPoint{ElapsedMs: elapsedMs, Value: value})
	if len(h.points) > h.maxPoints {
		h.points = h.points[len(h.points)-h.maxPoints:]
	}
}

// Points returns a copy of all recorded samples in time order.
func (h *History) Points() []DataPoint {
	h.mu.RLock()
	defer h.mu.RUnlock()
	result := make([]DataPoint, len(h.points))
	copy(result, h.points)
	return result
}

// Latest returns the most recent sample, if any.
func (h *History) Latest() (DataPoint, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.points) == 0 {
		return DataPoint{}, false
	}
	return h.points[len(h.points)-1], true
}

// Len returns the number of recorded samples.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.points)
}

// Reset discards all recorded samples.
func (h *History) Reset() {
	h.mu.Lock()
	h.points = h.points[:0]
	h.mu.Unlock()
}
