package views

import (
	"fmt"
	"sort"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/tui/ui"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/view"
)

// StatsView shows per-sender message counts for one chat.
type StatsView struct {
	*tview.Table
	theme *ui.Theme
}

// NewStatsView creates the stats table.
func NewStatsView(theme *ui.Theme) *StatsView {
	table := tview.NewTable().
		SetSelectable(false, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetTitle(" Stats ")
	table.SetTitleColor(theme.TitleColor)

	return &StatsView{
		Table: table,
		theme: theme,
	}
}

// Name implements ui.Component.
func (sv *StatsView) Name() string { return "stats" }

// Hints implements ui.Component.
func (sv *StatsView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

// Update renders the counts, senders sorted by total descending.
func (sv *StatsView) Update(chat string, stats map[string]view.TypeCount) {
	sv.Clear()

	headers := []string{" SENDER", " TEXT", " PHOTO", " VIDEO", " AUDIO", " OTHER", " SYSTEM", " TOTAL"}
	for col, h := range headers {
		align := tview.AlignRight
		if col == 0 {
			align = tview.AlignLeft
		}
		sv.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(sv.theme.TableHeaderFg).
			SetBackgroundColor(sv.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetAlign(align))
	}

	type senderRow struct {
		name  string
		count view.TypeCount
		total uint64
	}
	rows := make([]senderRow, 0, len(stats))
	for name, count := range stats {
		total := count.Text + count.System +
			count.Media.Photo + count.Media.Video + count.Media.Audio + count.Media.Other
		rows = append(rows, senderRow{name: name, count: count, total: total})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].total != rows[j].total {
			return rows[i].total > rows[j].total
		}
		return rows[i].name < rows[j].name
	})

	for i, r := range rows {
		row := i + 1
		cells := []uint64{
			r.count.Text,
			r.count.Media.Photo,
			r.count.Media.Video,
			r.count.Media.Audio,
			r.count.Media.Other,
			r.count.System,
			r.total,
		}
		sv.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(r.name))).
			SetExpansion(1).SetTextColor(sv.theme.SenderColor))
		for col, n := range cells {
			sv.SetCell(row, col+1, tview.NewTableCell(fmt.Sprintf("%d ", n)).
				SetAlign(tview.AlignRight).SetTextColor(sv.theme.CounterColor))
		}
	}

	sv.SetTitle(fmt.Sprintf(" Stats: %s ", chat))
}
