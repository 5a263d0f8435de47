package dashboard

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tui "github.com/charmbracelet/bubbletea"
	styles "github.com/charmbracelet/lipgloss"
	"github.com/ohler55/ojg/oj"

	"github.com/keilerkonzept/follower-dashboard/internal/history"
)

type rawItem struct {
	history.RawEntry
}

func (i rawItem) Title() string {
	return fmt.Sprintf("#%-5d %-8s %s", i.Seq, i.Kind, i.At.Format("15:04:05.000"))
}

func (i rawItem) Description() string {
	opts := oj.DefaultOptions
	opts.Sort = true
	return oj.JSON(map[string]any(i.Payload), &opts)
}

func (i rawItem) FilterValue() string { return i.Kind.String() + " " + i.Description() }

// rawPanel is the raw log view. It is mounted while the toggle is on; when
// the toggle goes off it stays mounted, dimmed, for the transition and is
// then unmounted.
type rawPanel struct {
	list     list.Model
	delegate list.DefaultDelegate
	mounted  bool
	hiding   bool
	gen      int
	synced   int
}

type rawUnmountMsg struct{ gen int }

func newRawPanel() *rawPanel {
	d := list.NewDefaultDelegate()
	d.Styles.SelectedTitle = styles.NewStyle().
		Border(styles.NormalBorder(), false, false, false, true).
		BorderForeground(borderColor).
		Foreground(selectedColor).
		Bold(false).
		Padding(0, 0, 0, 1)
	d.Styles.SelectedDesc = d.Styles.SelectedTitle.
		Foreground(selectedColor)
	d.ShowDescription = true

	l := list.New(nil, d, defaultWidth, defaultHeight/2)
	l.Styles.NoItems = l.Styles.NoItems.
		Padding(0, 2)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	return &rawPanel{list: l, delegate: d}
}

// show mounts the panel and cancels any pending unmount.
func (r *rawPanel) show(entries []history.RawEntry) tui.Cmd {
	r.gen++
	r.mounted = true
	r.hiding = false
	return r.sync(entries)
}

// hide schedules the unmount after transition.
func (r *rawPanel) hide(transition time.Duration) tui.Cmd {
	r.gen++
	if !r.mounted {
		return nil
	}
	if transition <= 0 {
		r.unmount()
		return nil
	}
	r.hiding = true
	gen := r.gen
	return tui.Tick(transition, func(time.Time) tui.Msg {
		return rawUnmountMsg{gen: gen}
	})
}

// onUnmount applies a scheduled unmount unless the toggle changed since.
func (r *rawPanel) onUnmount(msg rawUnmountMsg) {
	if msg.gen != r.gen || !r.hiding {
		return
	}
	r.unmount()
}

func (r *rawPanel) unmount() {
	r.mounted = false
	r.hiding = false
	r.synced = 0
	r.list.ResetFilter()
	r.list.SetItems(nil)
}

// sync refreshes the list, newest entry first.
func (r *rawPanel) sync(entries []history.RawEntry) tui.Cmd {
	if !r.mounted {
		return nil
	}
	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[len(entries)-1-i] = rawItem{RawEntry: e}
	}
	r.synced = len(items)
	return r.list.SetItems(items)
}

func (r *rawPanel) filtering() bool {
	return r.mounted && r.list.FilterState() == list.Filtering
}

func (r *rawPanel) setSize(w, h int) {
	r.list.SetSize(max(1, w), max(1, h))
}

func (r *rawPanel) view(width int) string {
	if !r.mounted {
		return ""
	}
	title := fmt.Sprintf("RAW LOG (%d entries)", r.synced)
	if r.list.FilterState() != list.Unfiltered {
		title += " filter: " + r.list.FilterValue()
	}
	body := styles.JoinVertical(styles.Left, titleStyle.Render(title), r.list.View())
	if r.hiding {
		return dimStyle.Width(width).Render(body)
	}
	return styles.NewStyle().Width(width).Render(body)
}
