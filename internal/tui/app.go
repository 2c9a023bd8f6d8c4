package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/api"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/tui/client"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/tui/keys"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/tui/model"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/tui/ui"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/tui/views"
)

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	pages    *ui.Pages
	vm       *model.ViewModel
	client   *client.Client
	registry *keys.Registry
	theme    *ui.Theme
	flash    *ui.FlashModel

	libInfo   *ui.LibraryInfo
	menu      *ui.Menu
	logo      *ui.Logo
	crumbs    *ui.Crumbs
	flashBar  *ui.FlashBar
	prompt    *ui.Prompt
	statusBar *views.StatusBar

	chatTable *views.ChatTable
	thread    *views.Thread
	searchV   *views.SearchView
	starredV  *views.StarredView
	statsV    *views.StatsView
	chatInfo  *views.ChatInfo
	helpV     *views.HelpView

	// components maps page names to their view for menu hints and crumbs.
	components map[string]ui.Component

	root         *tview.Flex
	promptActive bool
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c *client.Client, libraryName string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	vm := model.NewViewModel(c)
	theme := ui.DefaultTheme()

	a := &App{
		app:       tview.NewApplication(),
		pages:     ui.NewPages(),
		vm:        vm,
		client:    c,
		registry:  keys.NewRegistry(),
		theme:     theme,
		flash:     ui.NewFlashModel(),
		libInfo:   ui.NewLibraryInfo(theme),
		menu:      ui.NewMenu(theme),
		logo:      ui.NewLogo(theme),
		crumbs:    ui.NewCrumbs(theme),
		flashBar:  ui.NewFlashBar(theme),
		prompt:    ui.NewPrompt(theme),
		statusBar: views.NewStatusBar(),
		chatTable: views.NewChatTable(theme),
		thread:    views.NewThread(theme),
		searchV:   views.NewSearchView(theme),
		starredV:  views.NewStarredView(theme),
		statsV:    views.NewStatsView(theme),
		chatInfo:  views.NewChatInfo(theme),
		helpV:     views.NewHelpView(theme),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.components = map[string]ui.Component{
		"chats":   a.chatTable,
		"thread":  a.thread,
		"search":  a.searchV,
		"starred": a.starredV,
		"stats":   a.statsV,
		"details": a.chatInfo,
		"help":    a.helpV,
	}

	a.statusBar.SetLibrary(libraryName)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "Quit", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.registry.AddGlobal("help", &keys.Action{
		Rune: '?', Key: tcell.KeyRune,
		Description: "Help", Visible: true,
		Handler: func() { a.push("help") },
	})
	a.registry.AddGlobal("command", &keys.Action{
		Rune: ':', Key: tcell.KeyRune,
		Description: "Command", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptCommand) },
	})

	a.registry.AddView("chats", "filter", &keys.Action{
		Rune: '/', Key: tcell.KeyRune,
		Description: "Filter",
		Handler: func() { a.showPrompt(ui.PromptFilter) },
	})
	a.registry.AddView("chats", "clear-filter", &keys.Action{
		Key: tcell.KeyEscape,
		Handler: func() {
			a.chatTable.ClearFilter()
		},
	})
	a.registry.AddView("chats", "details", &keys.Action{
		Rune: 'd', Key: tcell.KeyRune,
		Description: "Details",
		Handler: func() { a.showDetails(a.chatTable.SelectedChat()) },
	})
	a.registry.AddView("chats", "reload", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "Reload",
		Handler: func() { a.reloadChat(a.chatTable.SelectedChat()) },
	})
	a.registry.AddView("chats", "stats", &keys.Action{
		Rune: 't', Key: tcell.KeyRune,
		Description: "Stats",
		Handler: func() { a.showStats(a.chatTable.SelectedChat()) },
	})
	a.registry.AddView("chats", "starred", &keys.Action{
		Rune: '*', Key: tcell.KeyRune,
		Description: "Starred",
		Handler: func() { a.showStarred(a.chatTable.SelectedChat()) },
	})
	a.registry.AddView("chats", "search", &keys.Action{
		Rune: 's', Key: tcell.KeyRune,
		Description: "Search",
		Handler: func() { a.showSearch(a.chatTable.SelectedChat()) },
	})
	for i := 1; i <= 9; i++ {
		n := i
		a.registry.AddView("chats", fmt.Sprintf("jump-%d", n), &keys.Action{
			Rune: rune('0' + n), Key: tcell.KeyRune,
			Handler: func() {
				if name := a.chatTable.ChatByIndex(n); name != "" {
					a.openChat(name, -1)
				}
			},
		})
	}

	a.registry.AddView("thread", "next", &keys.Action{
		Rune: 'j', Key: tcell.KeyRune,
		Handler: func() { a.thread.SelectNext() },
	})
	a.registry.AddView("thread", "prev", &keys.Action{
		Rune: 'k', Key: tcell.KeyRune,
		Handler: func() { a.thread.SelectPrev() },
	})
	a.registry.AddView("thread", "next-arrow", &keys.Action{
		Key:     tcell.KeyDown,
		Handler: func() { a.thread.SelectNext() },
	})
	a.registry.AddView("thread", "prev-arrow", &keys.Action{
		Key:     tcell.KeyUp,
		Handler: func() { a.thread.SelectPrev() },
	})
	a.registry.AddView("thread", "first", &keys.Action{
		Rune: 'g', Key: tcell.KeyRune,
		Handler: func() { a.thread.SelectFirst() },
	})
	a.registry.AddView("thread", "last", &keys.Action{
		Rune: 'G', Key: tcell.KeyRune,
		Handler: func() { a.thread.SelectLast() },
	})
	a.registry.AddView("thread", "star", &keys.Action{
		Rune: 'x', Key: tcell.KeyRune,
		Description: "Star",
		Handler:     func() { a.toggleStarSelected() },
	})
	a.registry.AddView("thread", "search", &keys.Action{
		Rune: 's', Key: tcell.KeyRune,
		Description: "Search",
		Handler:     func() { a.showSearch(a.thread.Chat()) },
	})
	a.registry.AddView("thread", "stats", &keys.Action{
		Rune: 't', Key: tcell.KeyRune,
		Description: "Stats",
		Handler:     func() { a.showStats(a.thread.Chat()) },
	})
	a.registry.AddView("thread", "starred", &keys.Action{
		Rune: '*', Key: tcell.KeyRune,
		Description: "Starred",
		Handler:     func() { a.showStarred(a.thread.Chat()) },
	})

	a.registry.AddView("starred", "unstar", &keys.Action{
		Rune: 'x', Key: tcell.KeyRune,
		Description: "Unstar",
		Handler:     func() { a.unstarSelected() },
	})
}

func (a *App) setupCallbacks() {
	a.chatTable.SetSelectedFunc(func(row, col int) {
		if name := a.chatTable.SelectedChat(); name != "" {
			a.openChat(name, -1)
		}
	})

	a.searchV.SetOnQuery(func(query string) {
		chat := a.searchV.Chat()
		go func() {
			hits, err := a.vm.Search(a.ctx, chat, query)
			if err != nil {
				a.flash.Err(err)
				return
			}
			a.app.QueueUpdateDraw(func() {
				a.searchV.Update(hits)
				a.app.SetFocus(a.searchV.Results())
			})
		}()
	})

	a.searchV.Results().SetSelectedFunc(func(row, col int) {
		hit, ok := a.searchV.SelectedHit()
		if !ok {
			return
		}
		a.openChat(a.searchV.Chat(), hit.FrontendIndex)
	})

	a.starredV.SetSelectedFunc(func(row, col int) {
		item, ok := a.starredV.SelectedItem()
		if !ok || !item.Found {
			return
		}
		a.openChat(a.starredV.Chat(), item.FrontendIndex)
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptFilter:
			a.chatTable.SetFilter(text)
		case ui.PromptCommand:
			a.runCommand(text)
		}
	})
	a.prompt.SetOnCancel(func() {
		a.hidePrompt()
	})

	a.pages.SetOnChange(func([]string) { a.syncNav() })
}

// syncNav refreshes the breadcrumb trail and the menu hints for the page
// on top of the stack.
func (a *App) syncNav() {
	stack := a.pages.Stack()
	names := make([]string, len(stack))
	for i, page := range stack {
		names[i] = page
		if c, ok := a.components[page]; ok {
			names[i] = c.Name()
		}
	}
	a.crumbs.Update(names)
	if c, ok := a.components[a.pages.Current()]; ok {
		a.menu.Update(c.Hints())
	}
}

func (a *App) setupLayout() {
	header := tview.NewFlex().
		AddItem(a.libInfo, 0, 1, false).
		AddItem(a.menu, 0, 2, false).
		AddItem(a.logo, 18, 0, false)

	a.pages.AddPage("chats", a.chatTable, true, false)
	a.pages.AddPage("thread", a.thread, true, false)
	a.pages.AddPage("search", a.searchV, true, false)
	a.pages.AddPage("starred", a.starredV, true, false)
	a.pages.AddPage("stats", a.statsV, true, false)
	a.pages.AddPage("details", a.chatInfo, true, false)
	a.pages.AddPage("help", a.helpV, true, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 6, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false).
		AddItem(a.statusBar, 1, 0, false)

	a.pages.Reset("chats")
	a.app.SetRoot(a.root, true)
	a.app.SetFocus(a.chatTable)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		// The prompt owns the keyboard while it is open.
		if a.promptActive {
			return event
		}

		page := a.pages.Current()

		if page == "search" && event.Key() == tcell.KeyTab {
			a.toggleSearchFocus()
			return nil
		}

		focused := a.app.GetFocus()
		if _, ok := focused.(*tview.InputField); ok {
			if event.Key() == tcell.KeyEscape {
				a.pop()
				return nil
			}
			return event
		}

		if event.Key() == tcell.KeyEscape && a.pages.Depth() > 1 {
			a.pop()
			return nil
		}

		if a.registry.HandleEvent(page, event) {
			return nil
		}
		return event
	})
}

func (a *App) push(name string) {
	if a.pages.Current() == name {
		return
	}
	a.pages.Push(name)
	a.app.SetFocus(a.focusForPage(name))
}

func (a *App) pop() {
	if a.pages.Depth() <= 1 {
		return
	}
	a.pages.Pop()
	a.app.SetFocus(a.focusForPage(a.pages.Current()))
}

func (a *App) focusForPage(name string) tview.Primitive {
	switch name {
	case "chats":
		return a.chatTable
	case "thread":
		return a.thread
	case "search":
		return a.searchV.Input()
	case "starred":
		return a.starredV
	case "stats":
		return a.statsV
	case "details":
		return a.chatInfo
	case "help":
		return a.helpV
	}
	return a.pages
}

func (a *App) toggleSearchFocus() {
	if a.app.GetFocus() == a.searchV.Input() {
		a.app.SetFocus(a.searchV.Results())
	} else {
		a.app.SetFocus(a.searchV.Input())
	}
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.promptActive = true
	a.prompt.Activate(mode)
	a.root.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.promptActive = false
	a.root.ResizeItem(a.prompt, 0, 0)
	a.app.SetFocus(a.focusForPage(a.pages.Current()))
}

// openChat loads a chat's messages and shows the thread view. A jumpTo of
// -1 keeps the default selection, otherwise the message at that frontend
// index is selected.
func (a *App) openChat(name string, jumpTo int) {
	go func() {
		if err := a.vm.LoadMessages(a.ctx, name); err != nil {
			a.flash.Err(err)
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.thread.SetMessages(name, a.vm.GetMessages())
			if jumpTo >= 0 {
				a.thread.Select(jumpTo)
			}
			if a.pages.Current() != "thread" {
				a.push("thread")
			} else {
				// Crumbs show the chat name, which just changed.
				a.syncNav()
			}
		})
	}()
}

func (a *App) showSearch(chat string) {
	if chat == "" {
		a.flash.Warn("No chat selected")
		return
	}
	a.searchV.SetChat(chat)
	a.push("search")
}

func (a *App) showStarred(chat string) {
	if chat == "" {
		a.flash.Warn("No chat selected")
		return
	}
	go func() {
		if err := a.vm.LoadStarred(a.ctx, chat); err != nil {
			a.flash.Err(err)
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.starredV.Update(chat, a.vm.GetStarred())
			a.push("starred")
		})
	}()
}

func (a *App) showStats(chat string) {
	if chat == "" {
		a.flash.Warn("No chat selected")
		return
	}
	go func() {
		if err := a.vm.LoadStats(a.ctx, chat); err != nil {
			a.flash.Err(err)
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.statsV.Update(chat, a.vm.GetStats())
			a.push("stats")
		})
	}()
}

func (a *App) showDetails(chat string) {
	if chat == "" {
		a.flash.Warn("No chat selected")
		return
	}
	go func() {
		detail, err := a.vm.ChatDetail(a.ctx, chat)
		if err != nil {
			a.flash.Err(err)
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.chatInfo.Update(detail)
			a.push("details")
		})
	}()
}

func (a *App) reloadChat(chat string) {
	if chat == "" {
		a.flash.Warn("No chat selected")
		return
	}
	a.flash.Info("Reloading " + chat)
	go func() {
		if err := a.vm.ReloadChat(a.ctx, chat); err != nil {
			a.flash.Err(err)
			return
		}
		a.flash.Info("Reloaded " + chat)
		a.refreshChats()
	}()
}

// toggleStarSelected stars or unstars the message under the cursor. For a
// gallery the anchor is its first collapsed message.
func (a *App) toggleStarSelected() {
	msg, ok := a.vm.MessageAt(a.thread.Selected())
	if !ok {
		return
	}
	var seq int64
	switch {
	case msg.Seq != nil:
		seq = *msg.Seq
	case len(msg.Seqs) > 0:
		seq = msg.Seqs[0]
	default:
		return
	}
	chat := a.thread.Chat()
	go func() {
		starred, err := a.vm.ToggleStar(a.ctx, chat, seq)
		if err != nil {
			a.flash.Err(err)
			return
		}
		if starred {
			a.flash.Info("Starred")
		} else {
			a.flash.Info("Unstarred")
		}
		if err := a.vm.LoadMessages(a.ctx, chat); err != nil {
			return
		}
		a.app.QueueUpdateDraw(func() {
			sel := a.thread.Selected()
			a.thread.SetMessages(chat, a.vm.GetMessages())
			a.thread.Select(sel)
		})
	}()
}

func (a *App) unstarSelected() {
	item, ok := a.starredV.SelectedItem()
	if !ok {
		return
	}
	chat := a.starredV.Chat()
	go func() {
		if _, err := a.vm.ToggleStar(a.ctx, chat, item.Seq); err != nil {
			a.flash.Err(err)
			return
		}
		if err := a.vm.LoadStarred(a.ctx, chat); err != nil {
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.starredV.Update(chat, a.vm.GetStarred())
		})
	}()
}

func (a *App) runCommand(text string) {
	cmd := ParseCommand(text)
	switch cmd.Name {
	case "add":
		if len(cmd.Args) < 2 || len(cmd.Args) > 3 {
			a.flash.Warn("Usage: add <name> <file> [mediadir]")
			return
		}
		name := cmd.Args[0]
		file, err := filepath.Abs(cmd.Args[1])
		if err != nil {
			a.flash.Err(err)
			return
		}
		mediaDir := ""
		if len(cmd.Args) == 3 {
			if mediaDir, err = filepath.Abs(cmd.Args[2]); err != nil {
				a.flash.Err(err)
				return
			}
		}
		a.flash.Info("Importing " + name)
		go func() {
			if err := a.vm.AddChat(a.ctx, name, file, mediaDir); err != nil {
				a.flash.Err(err)
				return
			}
			a.flash.Info("Added " + name)
			a.refreshChats()
		}()
	case "rm":
		if len(cmd.Args) != 1 {
			a.flash.Warn("Usage: rm <name>")
			return
		}
		name := cmd.Args[0]
		go func() {
			if err := a.vm.RemoveChat(a.ctx, name); err != nil {
				a.flash.Err(err)
				return
			}
			a.flash.Info("Removed " + name)
			a.refreshChats()
		}()
	case "reload":
		if len(cmd.Args) == 1 {
			a.reloadChat(cmd.Args[0])
			return
		}
		a.flash.Info("Reloading library")
		go func() {
			resp, err := a.vm.ReloadLibrary(a.ctx)
			if err != nil {
				a.flash.Err(err)
				return
			}
			a.flash.Info(fmt.Sprintf("Reloaded: %d imported, %d failed", resp.Imported, resp.Failed))
			a.refreshChats()
		}()
	case "chat":
		if len(cmd.Args) != 1 {
			a.flash.Warn("Usage: chat <name>")
			return
		}
		a.openChat(cmd.Args[0], -1)
	case "help", "h":
		a.push("help")
	case "quit", "q":
		a.app.Stop()
	default:
		a.flash.Warn("Unknown command: " + cmd.Name)
	}
}

// refreshChats reloads the chat list and library counters and repaints
// whatever is visible.
func (a *App) refreshChats() {
	if err := a.vm.LoadChats(a.ctx); err != nil {
		return
	}
	_ = a.vm.LoadLibrary(a.ctx)
	a.app.QueueUpdateDraw(func() {
		a.chatTable.Update(a.vm.GetChats())
		a.renderHeader()
	})
}

func (a *App) renderHeader() {
	lib := a.vm.GetLibrary()
	if lib == nil {
		return
	}
	a.libInfo.Update(&ui.LibraryData{
		Library: lib.Library,
		State:   lib.State,
		Chats:   lib.Chats,
		Records: lib.Records,
		Uptime:  time.Duration(lib.UptimeMS) * time.Millisecond,
	})
	a.statusBar.SetState(lib.State)
}

// Run starts the TUI application and blocks until it exits.
func (a *App) Run() error {
	go func() {
		_ = a.vm.LoadLibrary(a.ctx)
		_ = a.vm.LoadChats(a.ctx)
		a.app.QueueUpdateDraw(func() {
			a.chatTable.Update(a.vm.GetChats())
			a.renderHeader()
		})
		a.watchEvents()
		a.watchFlash()
		a.startRefreshLoop()
	}()

	defer a.cancel()
	return a.app.Run()
}

// Stop terminates the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

// watchEvents follows the daemon's event stream and keeps the visible
// state current. The stream is re-dialed after a dropped connection.
func (a *App) watchEvents() {
	go func() {
		for {
			events, err := a.client.Events(a.ctx, "")
			if err != nil {
				select {
				case <-a.ctx.Done():
					return
				case <-time.After(2 * time.Second):
					continue
				}
			}
			for env := range events {
				a.handleEvent(env)
			}
			select {
			case <-a.ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
		}
	}()
}

func (a *App) handleEvent(env api.EventEnvelope) {
	switch {
	case env.Kind == "library.status_changed":
		_ = a.vm.LoadLibrary(a.ctx)
		a.app.QueueUpdateDraw(a.renderHeader)
	case strings.HasPrefix(env.Kind, "chat.") || env.Kind == "import.failed":
		if env.Kind == "import.failed" {
			a.flash.Warn("Import failed: " + eventChat(env))
		}
		a.refreshChats()
		chat := eventChat(env)
		if chat == "" || chat != a.thread.Chat() {
			return
		}
		// The open thread was re-imported underneath us.
		if err := a.vm.LoadMessages(a.ctx, chat); err != nil {
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.thread.SetMessages(chat, a.vm.GetMessages())
		})
	}
}

// eventChat extracts the chat name from an event payload. Added/removed
// events carry the bare name, import events carry a struct.
func eventChat(env api.EventEnvelope) string {
	switch p := env.Payload.(type) {
	case string:
		return p
	case map[string]any:
		if s, ok := p["Chat"].(string); ok {
			return s
		}
	}
	return ""
}

func (a *App) watchFlash() {
	go func() {
		for {
			select {
			case <-a.ctx.Done():
				return
			case msg := <-a.flash.Watch():
				m := msg
				a.app.QueueUpdateDraw(func() {
					a.flashBar.Update(&m)
				})
			}
		}
	}()
}

func (a *App) startRefreshLoop() {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				err := a.vm.LoadLibrary(a.ctx)
				a.app.QueueUpdateDraw(func() {
					if err != nil {
						a.statusBar.SetState("OFFLINE")
					} else {
						a.renderHeader()
					}
					a.flashBar.Update(a.flash.GetMessage())
				})
			case <-a.ctx.Done():
				return
			}
		}
	}()
}
