package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// LibraryData holds library information for the header panel.
type LibraryData struct {
	Library string
	State   string
	Chats   int
	Records int64
	Uptime  time.Duration
}

// LibraryInfo displays library metadata in the header.
type LibraryInfo struct {
	*tview.TextView
	theme *Theme
}

// NewLibraryInfo creates a new library info panel.
func NewLibraryInfo(theme *Theme) *LibraryInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &LibraryInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the library info.
func (li *LibraryInfo) Update(data *LibraryData) {
	li.Clear()
	if data == nil {
		return
	}

	fgColor := colorName(li.theme.FgColor)
	counterColor := colorName(li.theme.CounterColor)

	text := fmt.Sprintf(
		"[%s::b]Library:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]State:[-:-:-]   [%s]%s[-]\n"+
			"[%s::b]Chats:[-:-:-]   [%s]%d[-]\n"+
			"[%s::b]Records:[-:-:-] [%s]%d[-]\n"+
			"[%s::b]Uptime:[-:-:-]  [%s]%s[-]",
		fgColor, counterColor, data.Library,
		fgColor, counterColor, data.State,
		fgColor, counterColor, data.Chats,
		fgColor, counterColor, data.Records,
		fgColor, counterColor, formatDuration(data.Uptime),
	)

	_, _ = fmt.Fprint(li, text)
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
