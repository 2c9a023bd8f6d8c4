package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// StatusBar displays the library name, daemon state and clock.
type StatusBar struct {
	*tview.TextView
	library string
	state   string
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv}
}

// SetLibrary updates the library name display.
func (sb *StatusBar) SetLibrary(name string) {
	sb.library = name
	sb.render()
}

// SetState updates the daemon state display.
func (sb *StatusBar) SetState(state string) {
	sb.state = state
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	state := sb.state
	switch state {
	case "READY":
		state = "[green]" + state + "[-]"
	case "IMPORTING", "BOOTING":
		state = "[yellow]" + state + "[-]"
	case "DEGRADED", "ERROR", "OFFLINE":
		state = "[red]" + state + "[-]"
	}

	clock := time.Now().Format("15:04")

	_, _ = fmt.Fprintf(sb, " [::b]%s[-:-:-] | %s | %s", sb.library, state, clock)
}
