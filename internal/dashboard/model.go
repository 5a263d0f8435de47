// Package dashboard renders a follower telemetry page in the terminal.
package dashboard

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tui "github.com/charmbracelet/bubbletea"
	styles "github.com/charmbracelet/lipgloss"
	plot "github.com/chriskim06/drawille-go"

	"github.com/keilerkonzept/follower-dashboard/internal/history"
	"github.com/keilerkonzept/follower-dashboard/internal/page"
	"github.com/keilerkonzept/follower-dashboard/internal/telemetry"
)

const (
	defaultWidth  = 80
	defaultHeight = 24

	noticeTTL = 4 * time.Second
)

var (
	selectedColor = styles.AdaptiveColor{Light: "0", Dark: "9"}
	borderColor   = styles.AdaptiveColor{Light: "#555", Dark: "#555"}
	okColor       = styles.AdaptiveColor{Light: "2", Dark: "10"}
	errColor      = styles.AdaptiveColor{Light: "1", Dark: "9"}
	idleColor     = styles.AdaptiveColor{Light: "3", Dark: "11"}
	borderFg      = styles.NewStyle().Foreground(borderColor)
	titleStyle    = styles.NewStyle().Bold(true)
	dimStyle      = styles.NewStyle().Faint(true)
	plotStyle     = styles.NewStyle().
			BorderStyle(styles.NormalBorder()).
			Foreground(borderColor).
			BorderForeground(borderColor)
)

// Options configure the view. They are fixed for the life of the model.
type Options struct {
	PollInterval  time.Duration
	SeriesWindow  int
	RawTransition time.Duration
	ExportDir     string
	SessionID     string
	BaseURL       string
}

type model struct {
	page *page.Page
	opts Options

	width, height int

	keys    keyMap
	help    help.Model
	spinner spinner.Model

	xy     *xyPlot
	series []*seriesPlot
	raw    *rawPanel

	notice   string
	noticeAt time.Time
}

type pollTickMsg time.Time

type cycleDoneMsg page.Result

type exportDoneMsg struct {
	path    string
	entries int
	err     error
}

// New returns the bubbletea model for p.
func New(p *page.Page, opts Options) tui.Model {
	return newModel(p, opts)
}

func newModel(p *page.Page, opts Options) *model {
	if opts.SeriesWindow < 2 {
		opts.SeriesWindow = 2
	}
	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(styles.NewStyle().Foreground(selectedColor)),
	)
	m := &model{
		page:    p,
		opts:    opts,
		keys:    newKeyMap(),
		help:    help.New(),
		spinner: sp,
		xy:      &xyPlot{},
		series: []*seriesPlot{
			newSeriesPlot(telemetry.KindTracker, "center.0", plot.Red),
			newSeriesPlot(telemetry.KindTracker, "center.1", plot.Red),
			newSeriesPlot(telemetry.KindFollower, "vel_x", plot.DimGray),
			newSeriesPlot(telemetry.KindFollower, "vel_y", plot.DimGray),
			newSeriesPlot(telemetry.KindFollower, "vel_z", plot.DimGray),
		},
		raw: newRawPanel(),
	}
	if styles.DefaultRenderer().HasDarkBackground() {
		m.series[2].color, m.series[3].color, m.series[4].color = plot.LightGray, plot.LightGray, plot.LightGray
	} else {
		m.series[0].color, m.series[1].color = plot.Black, plot.Black
	}
	m.resize(defaultWidth, defaultHeight)
	return m
}

func (m *model) pollTick() tui.Cmd {
	return tui.Every(m.opts.PollInterval, func(t time.Time) tui.Msg {
		return pollTickMsg(t)
	})
}

// startCycle begins a fetch cycle if the page allows one and returns the
// command that performs it.
func (m *model) startCycle() tui.Cmd {
	seq, ok := m.page.BeginCycle()
	if !ok {
		return nil
	}
	return func() tui.Msg {
		return cycleDoneMsg(m.page.Fetch(seq))
	}
}

func (m *model) Init() tui.Cmd {
	return tui.Batch(m.spinner.Tick, m.pollTick())
}

func (m *model) Update(msg tui.Msg) (tui.Model, tui.Cmd) {
	switch msg := msg.(type) {
	case pollTickMsg:
		if m.page.Closed() {
			return m, nil
		}
		return m, tui.Batch(m.startCycle(), m.pollTick())
	case cycleDoneMsg:
		if !m.page.CompleteCycle(page.Result(msg)) {
			return m, nil
		}
		m.refresh()
		return m, m.raw.sync(m.page.Store().Raw())
	case rawUnmountMsg:
		m.raw.onUnmount(msg)
		m.layout()
		return m, nil
	case exportDoneMsg:
		if msg.err != nil {
			log.Printf("export: %v", msg.err)
			m.setNotice("export failed: " + msg.err.Error())
		} else {
			m.setNotice(fmt.Sprintf("exported %d entries to %s", msg.entries, msg.path))
		}
		return m, nil
	case spinner.TickMsg:
		if !m.page.Loading() {
			return m, nil
		}
		var cmd tui.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tui.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case tui.KeyMsg:
		if key.Matches(msg, m.keys.Abort) {
			m.page.Close()
			return m, tui.Quit
		}
		if m.raw.filtering() {
			break
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.page.Close()
			return m, tui.Quit
		case key.Matches(msg, m.keys.Raw):
			return m, m.toggleRaw()
		case key.Matches(msg, m.keys.Export):
			return m, m.export()
		}
	}
	if !m.raw.mounted {
		return m, nil
	}
	var cmd tui.Cmd
	m.raw.list, cmd = m.raw.list.Update(msg)
	return m, cmd
}

func (m *model) toggleRaw() tui.Cmd {
	shown := m.page.ToggleRaw()
	m.keys.setRawShown(shown)
	var cmd tui.Cmd
	if shown {
		cmd = m.raw.show(m.page.Store().Raw())
	} else {
		cmd = m.raw.hide(m.opts.RawTransition)
	}
	m.layout()
	return cmd
}

func (m *model) export() tui.Cmd {
	entries := m.page.Store().Raw()
	dir := m.opts.ExportDir
	name := fmt.Sprintf("raw-%s-%s.jsonl", m.opts.SessionID, time.Now().UTC().Format("20060102T150405"))
	return func() tui.Msg {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return exportDoneMsg{err: err}
		}
		if err := history.WriteJSONL(f, entries); err != nil {
			_ = f.Close()
			return exportDoneMsg{err: fmt.Errorf("write %s: %w", path, err)}
		}
		if err := f.Close(); err != nil {
			return exportDoneMsg{err: err}
		}
		return exportDoneMsg{path: path, entries: len(entries)}
	}
}

func (m *model) setNotice(s string) {
	m.notice = s
	m.noticeAt = time.Now()
}

// refresh recomputes every plot from the store.
func (m *model) refresh() {
	store := m.page.Store()
	tracker, follower := store.Tracker(), store.Follower()
	m.xy.update(tracker, follower, m.opts.SeriesWindow)
	for _, p := range m.series {
		src := tracker
		if p.source == telemetry.KindFollower {
			src = follower
		}
		p.update(src, m.opts.SeriesWindow)
	}
}

func (m *model) resize(w, h int) {
	m.width, m.height = max(1, w), max(1, h)
	m.help.Width = m.width
	m.layout()
}

// layout splits the screen into a 3x2 plot grid, the status block and, when
// mounted, the raw log below them.
func (m *model) layout() {
	const (
		statusLines = 3
		helpLines   = 1
		// border (2) + label line (1)
		plotChrome = 3
	)
	available := max(2, m.height-statusLines-helpLines)
	if m.raw.mounted {
		rawHeight := available * 2 / 5
		m.raw.setSize(m.width, max(1, rawHeight-1))
		available -= rawHeight
	}
	cellW := max(1, m.width/3-2)
	cellH := max(1, available/2-plotChrome)

	m.xy.resize(cellW, cellH)
	for _, p := range m.series {
		p.resize(cellW, cellH)
	}
}

func (m *model) View() string {
	if m.page.Loading() {
		return m.loadingView()
	}
	row1 := styles.JoinHorizontal(styles.Top, m.xy.view(), m.series[0].view(), m.series[1].view())
	row2 := styles.JoinHorizontal(styles.Top, m.series[2].view(), m.series[3].view(), m.series[4].view())
	parts := []string{row1, row2, m.statusView()}
	if raw := m.raw.view(m.width); raw != "" {
		parts = append(parts, raw)
	}
	parts = append(parts, m.help.View(m.keys))
	return styles.JoinVertical(styles.Left, parts...)
}

func (m *model) loadingView() string {
	line := fmt.Sprintf("%s Waiting for telemetry from %s", m.spinner.View(), m.opts.BaseURL)
	return styles.JoinVertical(styles.Left, "", " "+line, "", m.help.View(m.keys))
}

func statusBadge(s page.Status) string {
	switch s {
	case page.StatusSuccess:
		return styles.NewStyle().Bold(true).Foreground(okColor).Render("● OK")
	case page.StatusError:
		return styles.NewStyle().Bold(true).Foreground(errColor).Render("● ERROR")
	}
	return styles.NewStyle().Bold(true).Foreground(idleColor).Render("● POLLING")
}

func (m *model) statusView() string {
	c := m.page.Counters()
	lat := m.page.Latency()
	line1 := fmt.Sprintf("%s  cycles %d  ok %d  failed %d  skipped %d  samples %d  latency last %s avg %s max %s",
		statusBadge(m.page.Status()),
		c.Started, c.Succeeded, c.Failed, c.Skipped,
		m.page.Store().Len(),
		formatMetricDuration(lat.Last), formatMetricDuration(lat.Avg), formatMetricDuration(lat.Max),
	)

	failures := m.page.TopFailures()
	line2 := borderFg.Render("recent failures: none")
	if len(failures) > 0 {
		parts := make([]string, len(failures))
		for i, f := range failures {
			parts[i] = fmt.Sprintf("%s (%d)", f.Reason, f.Count)
		}
		line2 = styles.NewStyle().Foreground(errColor).Render("recent failures: " + strings.Join(parts, ", "))
	}

	line3 := ""
	if m.notice != "" && time.Since(m.noticeAt) < noticeTTL {
		line3 = m.notice
	} else if err := m.page.LastError(); err != nil {
		line3 = styles.NewStyle().Foreground(errColor).Render("ERROR: " + err.Error())
	} else if !lat.LastSuccess.IsZero() {
		line3 = borderFg.Render("last update " + lat.LastSuccess.Format("15:04:05"))
	}
	clip := styles.NewStyle().MaxWidth(m.width)
	return styles.JoinVertical(styles.Left, clip.Render(line1), clip.Render(line2), clip.Render(line3))
}

func formatMetricDuration(d time.Duration) string {
	if d <= 0 {
		return "0.0ms"
	}
	return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
}
