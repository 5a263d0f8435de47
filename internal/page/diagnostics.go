package page

import (
	"github.com/keilerkonzept/topk/sliding"
)

const (
	defaultDiagnosticsTopK   = 3
	defaultDiagnosticsWindow = 60

	// A cycle yields at most two reasons, and reasons are low-cardinality
	// labels, so a small sketch is plenty.
	diagnosticsWidth = 256
	diagnosticsDepth = 3
)

// Failure is one failure reason and how many recent cycles reported it.
type Failure struct {
	Reason string
	Count  uint32
}

// diagnostics counts failure reasons over a sliding window measured in
// completed cycles. Guarded by the page mutex.
type diagnostics struct {
	sketch *sliding.Sketch
}

func newDiagnostics(k, window int) *diagnostics {
	if k < 1 {
		k = defaultDiagnosticsTopK
	}
	if window < 1 {
		window = defaultDiagnosticsWindow
	}
	return &diagnostics{
		sketch: sliding.New(k, window,
			sliding.WithWidth(diagnosticsWidth),
			sliding.WithDepth(diagnosticsDepth),
		),
	}
}

// observe advances the window by one cycle and counts its reasons.
func (d *diagnostics) observe(reasons []string) {
	d.sketch.Ticks(1)
	for _, r := range reasons {
		d.sketch.Incr(r)
	}
}

func (d *diagnostics) top() []Failure {
	var out []Failure
	for _, item := range d.sketch.SortedSlice() {
		if item.Count == 0 {
			continue
		}
		out = append(out, Failure{Reason: item.Item, Count: item.Count})
	}
	return out
}
