package model

import (
	"context"
	"sync"

	"github.com/williamdwatson/whatsapp-export-viewer/internal/api"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/tui/client"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/view"
)

// ViewModel caches daemon state for the views. All loads go through the
// daemon client; views render snapshots and never call the daemon directly.
type ViewModel struct {
	mu sync.RWMutex

	client     *client.Client
	Library    *api.LibraryStatusDTO
	Chats      []api.ChatDTO
	Messages   []api.MessageDTO
	Total      int
	ActiveChat string
	Starred    []api.StarredDTO
	Stats      map[string]view.TypeCount
}

// NewViewModel creates a view model connected to the daemon client.
func NewViewModel(c *client.Client) *ViewModel {
	return &ViewModel{client: c}
}

// LoadLibrary fetches daemon state and library counts.
func (vm *ViewModel) LoadLibrary(ctx context.Context) error {
	lib, err := vm.client.LibraryStatus(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Library = lib
	vm.mu.Unlock()
	return nil
}

// LoadChats fetches the chat list.
func (vm *ViewModel) LoadChats(ctx context.Context) error {
	chats, err := vm.client.ListChats(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Chats = chats
	vm.mu.Unlock()
	return nil
}

// LoadMessages fetches the full normalized message list for a chat and
// makes it the active one.
func (vm *ViewModel) LoadMessages(ctx context.Context, chat string) error {
	resp, err := vm.client.Messages(ctx, chat, 0, 0)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.ActiveChat = chat
	vm.Messages = resp.Messages
	vm.Total = resp.Total
	vm.mu.Unlock()
	return nil
}

// LoadStarred fetches the starred list for a chat.
func (vm *ViewModel) LoadStarred(ctx context.Context, chat string) error {
	items, err := vm.client.Starred(ctx, chat)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Starred = items
	vm.mu.Unlock()
	return nil
}

// LoadStats fetches per-sender counts for a chat.
func (vm *ViewModel) LoadStats(ctx context.Context, chat string) error {
	stats, err := vm.client.Stats(ctx, chat)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.Stats = stats
	vm.mu.Unlock()
	return nil
}

// ChatDetail fetches one chat with its registered sources.
func (vm *ViewModel) ChatDetail(ctx context.Context, name string) (*api.ChatDTO, error) {
	return vm.client.GetChat(ctx, name)
}

// Search runs a substring search on one chat. Results are returned, not
// cached.
func (vm *ViewModel) Search(ctx context.Context, chat, query string) ([]api.SearchHitDTO, error) {
	return vm.client.Search(ctx, chat, query)
}

// ToggleStar flips the star on one record and returns the new state.
func (vm *ViewModel) ToggleStar(ctx context.Context, chat string, seq int64) (bool, error) {
	resp, err := vm.client.Star(ctx, chat, seq)
	if err != nil {
		return false, err
	}
	return resp.Starred, nil
}

// AddChat registers an export file and refreshes the chat list.
func (vm *ViewModel) AddChat(ctx context.Context, name, file, mediaDir string) error {
	if _, err := vm.client.AddChat(ctx, name, file, mediaDir); err != nil {
		return err
	}
	return vm.LoadChats(ctx)
}

// RemoveChat deletes a chat and refreshes the chat list.
func (vm *ViewModel) RemoveChat(ctx context.Context, name string) error {
	if err := vm.client.DeleteChat(ctx, name); err != nil {
		return err
	}
	return vm.LoadChats(ctx)
}

// ReloadChat re-imports one chat and refreshes the chat list.
func (vm *ViewModel) ReloadChat(ctx context.Context, name string) error {
	if _, err := vm.client.ReloadChat(ctx, name); err != nil {
		return err
	}
	return vm.LoadChats(ctx)
}

// ReloadLibrary re-imports every chat and refreshes the chat list.
func (vm *ViewModel) ReloadLibrary(ctx context.Context) (*api.ReloadResponse, error) {
	resp, err := vm.client.ReloadLibrary(ctx)
	if err != nil {
		return nil, err
	}
	return resp, vm.LoadChats(ctx)
}

// GetLibrary returns a snapshot of the library status.
func (vm *ViewModel) GetLibrary() *api.LibraryStatusDTO {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Library
}

// GetChats returns a snapshot of the chat list.
func (vm *ViewModel) GetChats() []api.ChatDTO {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Chats
}

// GetMessages returns a snapshot of the active chat's messages.
func (vm *ViewModel) GetMessages() []api.MessageDTO {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Messages
}

// GetActiveChat returns the name of the chat whose messages are loaded.
func (vm *ViewModel) GetActiveChat() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.ActiveChat
}

// MessageAt returns the message at a frontend index, if loaded.
func (vm *ViewModel) MessageAt(index int) (api.MessageDTO, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if index < 0 || index >= len(vm.Messages) {
		return api.MessageDTO{}, false
	}
	return vm.Messages[index], true
}

// GetStarred returns a snapshot of the starred list.
func (vm *ViewModel) GetStarred() []api.StarredDTO {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Starred
}

// GetStats returns a snapshot of the per-sender counts.
func (vm *ViewModel) GetStats() map[string]view.TypeCount {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.Stats
}
