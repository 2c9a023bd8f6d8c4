package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/api"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/tui/ui"
)

// ChatTable is the main chat list view.
type ChatTable struct {
	*tview.Table
	theme  *ui.Theme
	chats  []api.ChatDTO
	filter string
}

// NewChatTable creates the chat list table.
func NewChatTable(theme *ui.Theme) *ChatTable {
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
	table.SetTitle(" Chats ")
	table.SetTitleColor(theme.TitleColor)

	return &ChatTable{
		Table: table,
		theme: theme,
	}
}

// Name implements ui.Component.
func (ct *ChatTable) Name() string { return "chats" }

// Hints implements ui.Component.
func (ct *ChatTable) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "/", Description: "Filter"},
		{Key: ":", Description: "Command"},
		{Key: "t", Description: "Stats"},
		{Key: "*", Description: "Starred"},
		{Key: "d", Description: "Details"},
		{Key: "r", Description: "Reload"},
		{Key: "?", Description: "Help"},
		{Key: "q", Description: "Quit"},
		{Key: "1-9", Description: "Jump", Numeric: true},
	}
}

// Update refreshes the table with a new chat list.
func (ct *ChatTable) Update(chats []api.ChatDTO) {
	ct.chats = chats
	ct.render()
}

// SetFilter sets the active filter text and re-renders.
func (ct *ChatTable) SetFilter(filter string) {
	ct.filter = filter
	ct.render()
}

// ClearFilter clears the active filter.
func (ct *ChatTable) ClearFilter() {
	ct.filter = ""
	ct.render()
}

func (ct *ChatTable) render() {
	ct.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" NAME", 1},
		{" MESSAGES", 0},
		{" LAST MESSAGE", 2},
		{" TIME", 0},
	}
	for col, h := range headers {
		cell := tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(ct.theme.TableHeaderFg).
			SetBackgroundColor(ct.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp)
		ct.SetCell(0, col, cell)
	}

	row := 1
	for _, chat := range ct.visible() {
		ct.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(chat.Name))).
			SetExpansion(1).SetTextColor(ct.theme.FgColor))
		ct.SetCell(row, 1, tview.NewTableCell(fmt.Sprintf("%d", chat.MessageCount)).
			SetExpansion(0).SetTextColor(ct.theme.CounterColor).SetAlign(tview.AlignRight))
		ct.SetCell(row, 2, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(chat.LastPreview))).
			SetExpansion(2).SetTextColor(ct.theme.FgColor))
		ct.SetCell(row, 3, tview.NewTableCell(formatTimestamp(chat.LastSentUnixMS)).
			SetExpansion(0).SetTextColor(ct.theme.FgColor).SetAlign(tview.AlignRight))
		row++
	}

	if ct.filter != "" {
		ct.SetTitle(fmt.Sprintf(" Chats (%d/%d) filter: %s ", row-1, len(ct.chats), ct.filter))
	} else {
		ct.SetTitle(fmt.Sprintf(" Chats (%d) ", len(ct.chats)))
	}
}

// visible returns the chats passing the current filter, in list order.
func (ct *ChatTable) visible() []api.ChatDTO {
	if ct.filter == "" {
		return ct.chats
	}
	var out []api.ChatDTO
	for _, chat := range ct.chats {
		if matchesFilter(chat, ct.filter) {
			out = append(out, chat)
		}
	}
	return out
}

// SelectedChat returns the name of the currently selected chat.
func (ct *ChatTable) SelectedChat() string {
	row, _ := ct.GetSelection()
	idx := row - 1 // account for header
	visible := ct.visible()
	if idx < 0 || idx >= len(visible) {
		return ""
	}
	return visible[idx].Name
}

// ChatByIndex returns the name of the Nth visible chat (1-based).
func (ct *ChatTable) ChatByIndex(n int) string {
	visible := ct.visible()
	if n < 1 || n > len(visible) {
		return ""
	}
	return visible[n-1].Name
}

func matchesFilter(chat api.ChatDTO, filter string) bool {
	f := strings.ToLower(filter)
	return strings.Contains(strings.ToLower(chat.Name), f) ||
		strings.Contains(strings.ToLower(chat.LastPreview), f)
}

func formatTimestamp(ms int64) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms)
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	if t.Year() == now.Year() {
		return t.Format("Jan 02")
	}
	return t.Format("2006-01-02")
}
