package views

import (
	"fmt"

	"github.com/rivo/tview"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/api"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/tui/ui"
)

// ChatInfo displays one chat's details and registered export files.
type ChatInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewChatInfo creates a new chat details view.
func NewChatInfo(theme *ui.Theme) *ChatInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Chat Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &ChatInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements ui.Component.
func (ci *ChatInfo) Name() string { return "details" }

// Hints implements ui.Component.
func (ci *ChatInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

// Update renders the chat details.
func (ci *ChatInfo) Update(chat *api.ChatDTO) {
	ci.Clear()
	if chat == nil {
		return
	}

	fg := fmt.Sprintf("#%06x", ci.theme.FgColor.Hex())
	ct := fmt.Sprintf("#%06x", ci.theme.CounterColor.Hex())

	first, last, imported := "-", "-", "never"
	if chat.MessageCount > 0 {
		first = formatTimestamp(chat.FirstSentUnixMS)
		last = formatTimestamp(chat.LastSentUnixMS)
	}
	if chat.ImportedAtUnixMS > 0 {
		imported = formatTimestamp(chat.ImportedAtUnixMS)
	}

	text := fmt.Sprintf(
		"\n [%s::b]Name:[-:-:-]     [%s]%s[-]\n"+
			" [%s::b]Messages:[-:-:-] [%s]%d[-]\n"+
			" [%s::b]First:[-:-:-]    [%s]%s[-]\n"+
			" [%s::b]Last:[-:-:-]     [%s]%s[-]\n"+
			" [%s::b]Imported:[-:-:-] [%s]%s[-]\n",
		fg, ct, tview.Escape(chat.Name),
		fg, ct, chat.MessageCount,
		fg, ct, first,
		fg, ct, last,
		fg, ct, imported,
	)
	_, _ = fmt.Fprint(ci, text)

	_, _ = fmt.Fprintf(ci, "\n [%s::b]Export files:[-:-:-]\n", fg)
	if len(chat.Sources) == 0 {
		_, _ = fmt.Fprint(ci, "   (none)\n")
	}
	for _, src := range chat.Sources {
		_, _ = fmt.Fprintf(ci, "   [%s]%s[-]\n", ct, tview.Escape(src.FilePath))
		if src.MediaDir != "" {
			_, _ = fmt.Fprintf(ci, "     media: [%s]%s[-]\n", ct, tview.Escape(src.MediaDir))
		}
	}

	ci.SetTitle(fmt.Sprintf(" %s Details ", chat.Name))
}
