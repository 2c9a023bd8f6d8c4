package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/api"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/tui/ui"
)

// StarredView lists one chat's starred messages.
type StarredView struct {
	*tview.Table
	theme *ui.Theme
	chat  string
	data  []api.StarredDTO
}

// NewStarredView creates the starred message table.
func NewStarredView(theme *ui.Theme) *StarredView {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Starred ")
	table.SetTitleColor(theme.TitleColor)

	return &StarredView{
		Table: table,
		theme: theme,
	}
}

// Name implements ui.Component.
func (sv *StarredView) Name() string { return "starred" }

// Hints implements ui.Component.
func (sv *StarredView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Jump"},
		{Key: "x", Description: "Unstar"},
		{Key: "Esc", Description: "Back"},
	}
}

// Update refreshes the table for a chat's starred list.
func (sv *StarredView) Update(chat string, items []api.StarredDTO) {
	sv.chat = chat
	sv.data = items
	sv.Clear()

	headers := []string{" #", " TIME", " SENDER", " MESSAGE"}
	for col, h := range headers {
		sv.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(sv.theme.TableHeaderFg).
			SetBackgroundColor(sv.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold))
	}

	for i, item := range items {
		row := i + 1
		pos := fmt.Sprintf(" %d", item.FrontendIndex)
		if !item.Found {
			// Starred in the store but absent from the current frontend
			// sequence, e.g. after the source file shrank.
			pos = " -"
		}
		sv.SetCell(row, 0, tview.NewTableCell(pos).
			SetTextColor(sv.theme.CounterColor).SetAlign(tview.AlignRight))
		sv.SetCell(row, 1, tview.NewTableCell(" "+formatTimestamp(item.TimestampUnixMS)).
			SetMaxWidth(12).SetTextColor(sv.theme.FgColor))
		sv.SetCell(row, 2, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(item.Sender))).
			SetMaxWidth(20).SetTextColor(sv.theme.SenderColor))
		sv.SetCell(row, 3, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(starredPreview(item)))).
			SetExpansion(1).SetTextColor(sv.theme.FgColor))
	}
	sv.SetTitle(fmt.Sprintf(" Starred: %s (%d) ", chat, len(items)))
	if len(items) > 0 {
		sv.Select(1, 0)
	}
}

// Chat returns the chat whose starred list is displayed.
func (sv *StarredView) Chat() string { return sv.chat }

// SelectedItem returns the selected starred item, if any.
func (sv *StarredView) SelectedItem() (api.StarredDTO, bool) {
	row, _ := sv.GetSelection()
	idx := row - 1
	if idx < 0 || idx >= len(sv.data) {
		return api.StarredDTO{}, false
	}
	return sv.data[idx], true
}

func starredPreview(item api.StarredDTO) string {
	if item.Kind == "media" {
		if item.Caption != "" {
			return "[" + item.MediaType + "] " + item.Caption
		}
		return "[" + item.MediaType + "]"
	}
	return item.Text
}
