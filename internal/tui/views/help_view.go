package views

import (
	"fmt"

	"github.com/rivo/tview"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/tui/ui"
)

// HelpView displays the key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	hv.render()
	return hv
}

// Name implements ui.Component.
func (hv *HelpView) Name() string { return "help" }

// Hints implements ui.Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

func (hv *HelpView) render() {
	kc := fmt.Sprintf("#%06x", hv.theme.MenuKeyColor.Hex())

	help := fmt.Sprintf(`
  [::b]Global Keys[-:-:-]

  [%s]:[-:-:-]      Command mode        [%s]Esc[-:-:-]   Back / Cancel
  [%s]/[-:-:-]      Filter chats        [%s]?[-:-:-]     Help
  [%s]q[-:-:-]      Quit                [%s]Ctrl-C[-:-:-] Quit immediately

  [::b]Chat List[-:-:-]

  [%s]Enter[-:-:-]  Open chat           [%s]d[-:-:-]     Chat details
  [%s]1-9[-:-:-]    Jump to Nth chat    [%s]r[-:-:-]     Reload selected chat
  [%s]t[-:-:-]      Stats               [%s]*[-:-:-]     Starred messages
  [%s]s[-:-:-]      Search selected chat

  [::b]Message Thread[-:-:-]

  [%s]j/k[-:-:-]    Select next/prev    [%s]g/G[-:-:-]   First/last message
  [%s]x[-:-:-]      Toggle star         [%s]s[-:-:-]     Search this chat
  [%s]t[-:-:-]      Stats               [%s]*[-:-:-]     Starred messages

  [::b]Commands (: mode)[-:-:-]

  [%s]:add <name> <file> [mediadir[][-:-:-]   Register an export file
  [%s]:rm <name>[-:-:-]                      Remove a chat
  [%s]:reload [name[][-:-:-]                  Re-import one chat, or all
  [%s]:chat <name>[-:-:-]                    Open chat by name
  [%s]:help[-:-:-] / [%s]:q[-:-:-]                      Help / Quit
`,
		kc, kc, kc, kc, kc, kc,
		kc, kc, kc, kc, kc, kc, kc,
		kc, kc, kc, kc, kc, kc,
		kc, kc, kc, kc, kc, kc,
	)

	_, _ = fmt.Fprint(hv, help)
}
