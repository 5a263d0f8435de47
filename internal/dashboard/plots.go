package dashboard

import (
	"fmt"
	"math"
	"strings"

	styles "github.com/charmbracelet/lipgloss"
	plot "github.com/chriskim06/drawille-go"

	"github.com/keilerkonzept/follower-dashboard/internal/telemetry"
)

// seriesPlot is a time-series view of one field of one history.
type seriesPlot struct {
	title  string
	path   telemetry.FieldPath
	source telemetry.Kind
	color  plot.Color

	canvas *plot.Canvas
	values []float64
	width  int
	height int
}

func newSeriesPlot(source telemetry.Kind, key string, color plot.Color) *seriesPlot {
	return &seriesPlot{
		title:  source.String() + " " + key,
		path:   telemetry.MustPath(key),
		source: source,
		color:  color,
	}
}

func (p *seriesPlot) resize(w, h int) {
	p.width, p.height = max(1, w), max(1, h)
	c := plot.NewCanvas(p.width, p.height)
	c.ShowAxis = false
	c.LineColors = []plot.Color{p.color}
	p.canvas = &c
	p.draw()
}

// update extracts the newest window samples of the field. Samples missing
// the field repeat the previous value so gaps do not read as dips to zero.
func (p *seriesPlot) update(history []telemetry.Sample, window int) {
	if len(history) > window {
		history = history[len(history)-window:]
	}
	p.values = p.values[:0]
	last := 0.0
	for _, s := range history {
		if v, ok := p.path.Float(s); ok {
			last = v
		}
		p.values = append(p.values, last)
	}
	p.draw()
}

func (p *seriesPlot) draw() {
	if p.canvas == nil || len(p.values) == 0 {
		return
	}
	series := p.values
	if len(series) == 1 {
		series = []float64{series[0], series[0]}
	}
	p.canvas.NumDataPoints = len(series)
	p.canvas.Fill([][]float64{series})
}

func (p *seriesPlot) view() string {
	body := ""
	if p.canvas != nil && len(p.values) > 0 {
		body = p.canvas.String()
	}
	if body == "" {
		body = blank(p.width, p.height)
	}
	label := p.title
	if n := len(p.values); n > 0 {
		lo, hi := bounds(p.values)
		label = fmt.Sprintf("%s  %+.3f  [%+.2f, %+.2f]", p.title, p.values[n-1], lo, hi)
	}
	return plotStyle.Render(styles.JoinVertical(styles.Left, body, fit(label, p.width)))
}

func bounds(values []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

var (
	trackerX = telemetry.MustPath("center.0")
	trackerY = telemetry.MustPath("center.1")
	follVelX = telemetry.MustPath("vel_x")
	follVelY = telemetry.MustPath("vel_y")
)

// xyPlot draws the tracker center trail on a braille grid and annotates the
// latest follower heading.
type xyPlot struct {
	width, height int
	points        [][2]float64
	heading       string
}

func (p *xyPlot) resize(w, h int) {
	p.width, p.height = max(1, w), max(1, h)
}

func (p *xyPlot) update(tracker, follower []telemetry.Sample, window int) {
	if len(tracker) > window {
		tracker = tracker[len(tracker)-window:]
	}
	p.points = p.points[:0]
	for _, s := range tracker {
		x, okX := trackerX.Float(s)
		y, okY := trackerY.Float(s)
		if okX && okY {
			p.points = append(p.points, [2]float64{x, y})
		}
	}
	p.heading = ""
	if n := len(follower); n > 0 {
		// Body frame: vel_x is forward (screen up), vel_y is right.
		forward, okX := follVelX.Float(follower[n-1])
		right, okY := follVelY.Float(follower[n-1])
		if okX || okY {
			p.heading = fmt.Sprintf("%s |v|=%.2f", arrow(right, forward), math.Hypot(forward, right))
		}
	}
}

func (p *xyPlot) view() string {
	body := brailleScatter(p.points, p.width, p.height)
	label := "tracker center"
	if n := len(p.points); n > 0 {
		label = fmt.Sprintf("center (%+.2f, %+.2f)", p.points[n-1][0], p.points[n-1][1])
	}
	if p.heading != "" {
		label += "  follower " + p.heading
	}
	return plotStyle.Render(styles.JoinVertical(styles.Left, body, fit(label, p.width)))
}

// brailleScatter maps points onto a w x h cell grid of braille characters,
// each cell holding 2x4 dots. The view covers [-1, 1] on both axes and grows
// to include points outside it; y points up.
func brailleScatter(points [][2]float64, w, h int) string {
	if w < 1 || h < 1 {
		return ""
	}
	lim := 1.0
	for _, pt := range points {
		lim = math.Max(lim, math.Max(math.Abs(pt[0]), math.Abs(pt[1])))
	}
	dotsW, dotsH := 2*w, 4*h
	cells := make([]rune, w*h)
	for i := range cells {
		cells[i] = 0x2800
	}
	for _, pt := range points {
		dx := int(math.Round((pt[0] + lim) / (2 * lim) * float64(dotsW-1)))
		dy := int(math.Round((lim - pt[1]) / (2 * lim) * float64(dotsH-1)))
		dx = min(max(dx, 0), dotsW-1)
		dy = min(max(dy, 0), dotsH-1)
		cells[(dy/4)*w+dx/2] |= brailleBit[dx%2][dy%4]
	}

	var sb strings.Builder
	sb.Grow(len(cells)*3 + h)
	for row := 0; row < h; row++ {
		if row > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(string(cells[row*w : (row+1)*w]))
	}
	return sb.String()
}

var brailleBit = [2][4]rune{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

// arrow picks one of eight compass arrows for the vector (x, y).
func arrow(x, y float64) string {
	if x == 0 && y == 0 {
		return "·"
	}
	arrows := []string{"→", "↗", "↑", "↖", "←", "↙", "↓", "↘"}
	a := math.Atan2(y, x)
	idx := int(math.Round(a/(math.Pi/4))+8) % 8
	return arrows[idx]
}

func blank(w, h int) string {
	if w < 1 || h < 1 {
		return ""
	}
	line := strings.Repeat(" ", w)
	lines := make([]string, h)
	for i := range lines {
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

// fit pads or truncates s to exactly w cells.
func fit(s string, w int) string {
	if w < 1 {
		return ""
	}
	r := []rune(s)
	if len(r) > w {
		if w == 1 {
			return "…"
		}
		return string(r[:w-1]) + "…"
	}
	return s + strings.Repeat(" ", w-len(r))
}
