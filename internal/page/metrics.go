package page

import "time"

const defaultLatencyWindow = 64

// LatencyStats summarizes how long recent fetch cycles took, successful or
// not.
type LatencyStats struct {
	Last time.Duration
	Max  time.Duration
	Avg  time.Duration
	N    int

	// LastSuccess is when the latest successful cycle finished.
	LastSuccess time.Time
}

// cycleMetrics keeps the durations of the last len(window) cycles, oldest
// overwritten first. Guarded by the page mutex.
type cycleMetrics struct {
	window      []time.Duration
	next        int
	filled      bool
	lastSuccess time.Time
}

func newCycleMetrics(size int) *cycleMetrics {
	if size <= 0 {
		size = defaultLatencyWindow
	}
	return &cycleMetrics{window: make([]time.Duration, size)}
}

func (m *cycleMetrics) observe(d time.Duration, ok bool, finished time.Time) {
	m.window[m.next] = max(d, 0)
	m.next = (m.next + 1) % len(m.window)
	if m.next == 0 {
		m.filled = true
	}
	if ok {
		m.lastSuccess = finished
	}
}

func (m *cycleMetrics) recorded() []time.Duration {
	if m.filled {
		return m.window
	}
	return m.window[:m.next]
}

func (m *cycleMetrics) snapshot() LatencyStats {
	stats := LatencyStats{LastSuccess: m.lastSuccess}
	cycles := m.recorded()
	if len(cycles) == 0 {
		return stats
	}
	var total time.Duration
	for _, d := range cycles {
		total += d
		stats.Max = max(stats.Max, d)
	}
	stats.N = len(cycles)
	stats.Avg = total / time.Duration(stats.N)
	stats.Last = m.window[(m.next+len(m.window)-1)%len(m.window)]
	return stats
}
