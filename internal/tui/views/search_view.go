package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/api"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/tui/ui"
)

// SearchView searches one chat and lists the hits.
type SearchView struct {
	*tview.Flex
	theme   *ui.Theme
	input   *tview.InputField
	results *tview.Table
	chat    string
	onQuery func(query string)
	data    []api.SearchHitDTO
}

// NewSearchView creates a new search view.
func NewSearchView(theme *ui.Theme) *SearchView {
	input := tview.NewInputField().
		SetLabel(" Search: ").
		SetFieldWidth(0)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	results := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	results.SetBorder(true)
	results.SetBorderColor(theme.BorderColor)
	results.SetBackgroundColor(theme.BgColor)
	results.SetTitle(" Results ")
	results.SetTitleColor(theme.TitleColor)
	results.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(input, 1, 0, true).
		AddItem(results, 0, 1, false)

	return &SearchView{
		Flex:    flex,
		theme:   theme,
		input:   input,
		results: results,
	}
}

// Name implements ui.Component.
func (sv *SearchView) Name() string { return "search" }

// Hints implements ui.Component.
func (sv *SearchView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Search/Jump"},
		{Key: "Tab", Description: "Results"},
		{Key: "Esc", Description: "Back"},
	}
}

// SetChat binds the view to one chat and clears previous results.
func (sv *SearchView) SetChat(chat string) {
	sv.chat = chat
	sv.input.SetText("")
	sv.Update(nil)
	sv.results.SetTitle(fmt.Sprintf(" Results: %s ", chat))
}

// Chat returns the chat this view searches.
func (sv *SearchView) Chat() string { return sv.chat }

// SetOnQuery sets the callback when a search query is submitted.
func (sv *SearchView) SetOnQuery(fn func(query string)) {
	sv.onQuery = fn
	sv.input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && sv.onQuery != nil {
			sv.onQuery(sv.input.GetText())
		}
	})
}

// Update refreshes the result table.
func (sv *SearchView) Update(hits []api.SearchHitDTO) {
	sv.data = hits
	sv.results.Clear()

	headers := []string{" #", " TIME", " SENDER", " SNIPPET"}
	for col, h := range headers {
		sv.results.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(sv.theme.TableHeaderFg).
			SetBackgroundColor(sv.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold))
	}

	for i, hit := range hits {
		row := i + 1
		sender := hit.Sender
		if sender == "" {
			sender = "(system)"
		}
		sv.results.SetCell(row, 0, tview.NewTableCell(fmt.Sprintf(" %d", hit.FrontendIndex)).
			SetTextColor(sv.theme.CounterColor).SetAlign(tview.AlignRight))
		sv.results.SetCell(row, 1, tview.NewTableCell(" "+formatTimestamp(hit.TimestampUnixMS)).
			SetMaxWidth(12).SetTextColor(sv.theme.FgColor))
		sv.results.SetCell(row, 2, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(sender))).
			SetMaxWidth(20).SetTextColor(sv.theme.SenderColor))
		sv.results.SetCell(row, 3, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(hit.Snippet))).
			SetExpansion(1).SetTextColor(sv.theme.FgColor))
	}
	if len(hits) > 0 {
		sv.results.Select(1, 0)
	}
}

// SelectedHit returns the selected hit, if any.
func (sv *SearchView) SelectedHit() (api.SearchHitDTO, bool) {
	row, _ := sv.results.GetSelection()
	idx := row - 1
	if idx < 0 || idx >= len(sv.data) {
		return api.SearchHitDTO{}, false
	}
	return sv.data[idx], true
}

// Input returns the search input field.
func (sv *SearchView) Input() *tview.InputField {
	return sv.input
}

// Results returns the results table.
func (sv *SearchView) Results() *tview.Table {
	return sv.results
}
