package views

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/api"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/tui/ui"
)

// Thread renders one chat's normalized messages. Every message body is
// wrapped in a text region keyed by its frontend index, so selection and
// jump-to-message work on normalized positions, including galleries.
type Thread struct {
	*tview.TextView
	theme    *ui.Theme
	chat     string
	messages []api.MessageDTO
	selected int
}

// NewThread creates the message thread view.
func NewThread(theme *ui.Theme) *Thread {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Messages ")
	tv.SetTitleColor(theme.TitleColor)

	return &Thread{
		TextView: tv,
		theme:    theme,
		selected: -1,
	}
}

// Name implements ui.Component.
func (t *Thread) Name() string {
	if t.chat != "" {
		return t.chat
	}
	return "messages"
}

// Hints implements ui.Component.
func (t *Thread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "j/k", Description: "Next/Prev"},
		{Key: "g/G", Description: "First/Last"},
		{Key: "x", Description: "Star"},
		{Key: "s", Description: "Search"},
		{Key: "t", Description: "Stats"},
		{Key: "*", Description: "Starred"},
		{Key: "Esc", Description: "Back"},
	}
}

// SetMessages replaces the thread content. The selection moves to the last
// message unless the previous selection still exists.
func (t *Thread) SetMessages(chat string, msgs []api.MessageDTO) {
	keep := t.chat == chat && t.selected >= 0 && t.selected < len(msgs)
	t.chat = chat
	t.messages = msgs
	if !keep {
		t.selected = len(msgs) - 1
	}
	t.SetTitle(fmt.Sprintf(" %s (%d) ", chat, len(msgs)))
	t.render()
}

// Chat returns the name of the chat being displayed.
func (t *Thread) Chat() string { return t.chat }

// Selected returns the frontend index of the selected message, or -1.
func (t *Thread) Selected() int { return t.selected }

// SelectNext moves the selection one message down.
func (t *Thread) SelectNext() { t.Select(t.selected + 1) }

// SelectPrev moves the selection one message up.
func (t *Thread) SelectPrev() { t.Select(t.selected - 1) }

// SelectFirst moves the selection to the first message.
func (t *Thread) SelectFirst() { t.Select(0) }

// SelectLast moves the selection to the last message.
func (t *Thread) SelectLast() { t.Select(len(t.messages) - 1) }

// Select moves the selection to a frontend index, clamped to the thread.
func (t *Thread) Select(index int) {
	if len(t.messages) == 0 {
		t.selected = -1
		return
	}
	if index < 0 {
		index = 0
	}
	if index >= len(t.messages) {
		index = len(t.messages) - 1
	}
	t.selected = index
	t.Highlight(strconv.Itoa(index))
	t.ScrollToHighlight()
}

func (t *Thread) render() {
	t.Clear()
	for i := range t.messages {
		_, _ = fmt.Fprint(t.TextView, formatMessage(t.theme, &t.messages[i]))
	}
	if t.selected >= 0 {
		t.Highlight(strconv.Itoa(t.selected))
		t.ScrollToHighlight()
	} else {
		t.Highlight()
	}
}

// colorTag converts a theme color into a dynamic color tag value.
func colorTag(c tcell.Color) string {
	return fmt.Sprintf("#%06x", c.Hex())
}

// formatMessage renders one message as region-tagged tview markup.
func formatMessage(theme *ui.Theme, m *api.MessageDTO) string {
	sender := colorTag(theme.SenderColor)
	dim := colorTag(theme.SystemColor)
	media := colorTag(theme.MediaColor)
	star := ""
	if m.Starred {
		star = fmt.Sprintf(" [%s]★[-]", colorTag(theme.StarColor))
	}
	ts := formatTimestamp(m.TimestampUnixMS)

	switch m.Kind {
	case "system":
		return fmt.Sprintf("[\"%d\"][%s::d]-- %s --[-:-:-]%s[\"\"]\n\n",
			m.FrontendIndex, dim, tview.Escape(sanitizeForTerminal(m.Text)), star)
	case "media":
		line := fmt.Sprintf("[\"%d\"][%s::b]%s[-:-:-] [%s::d]%s[-:-:-]%s\n",
			m.FrontendIndex, sender, tview.Escape(sanitizeForTerminal(m.Sender)), dim, ts, star)
		line += fmt.Sprintf("[%s]%s[-] %s\n",
			media, tview.Escape("["+m.MediaType+"]"), tview.Escape(filepath.Base(m.Path)))
		if m.Caption != "" {
			line += tview.Escape(sanitizeForTerminal(m.Caption)) + "\n"
		}
		return line + "[\"\"]\n"
	case "bulk_media":
		line := fmt.Sprintf("[\"%d\"][%s::b]%s[-:-:-] [%s::d]%s[-:-:-]%s\n",
			m.FrontendIndex, sender, tview.Escape(sanitizeForTerminal(m.Sender)), dim, ts, star)
		line += fmt.Sprintf("[%s]%s[-]\n", media, tview.Escape(fmt.Sprintf("[gallery of %d]", len(m.Items))))
		for i, item := range m.Items {
			line += fmt.Sprintf("  %2d. [%s]%s[-] %s\n",
				i+1, media, tview.Escape("["+item.MediaType+"]"), tview.Escape(filepath.Base(item.Path)))
		}
		return line + "[\"\"]\n"
	default:
		return fmt.Sprintf("[\"%d\"][%s::b]%s[-:-:-] [%s::d]%s[-:-:-]%s\n%s\n[\"\"]\n",
			m.FrontendIndex, sender, tview.Escape(sanitizeForTerminal(m.Sender)), dim, ts, star,
			tview.Escape(sanitizeForTerminal(m.Text)))
	}
}
