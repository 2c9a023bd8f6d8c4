package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/williamdwatson/whatsapp-export-viewer/internal/api"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/view"
)

// Client talks to a library daemon over its Unix domain socket.
type Client struct {
	http *http.Client
	base string
}

// New returns a client for the daemon listening on socketPath. Nothing is
// dialed until the first request.
func New(socketPath string) *Client {
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
		},
		base: "http://wev",
	}
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Health reports whether the daemon answers on its socket.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// LibraryStatus returns daemon state and library counts.
func (c *Client) LibraryStatus(ctx context.Context) (*api.LibraryStatusDTO, error) {
	var out api.LibraryStatusDTO
	if err := c.do(ctx, http.MethodGet, "/v1/library", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReloadLibrary re-imports every registered chat.
func (c *Client) ReloadLibrary(ctx context.Context) (*api.ReloadResponse, error) {
	var out api.ReloadResponse
	if err := c.do(ctx, http.MethodPost, "/v1/library/reload", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListChats returns all registered chats, most recently active first.
func (c *Client) ListChats(ctx context.Context) ([]api.ChatDTO, error) {
	var out []api.ChatDTO
	if err := c.do(ctx, http.MethodGet, "/v1/chats", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddChat registers a chat (or another export file for an existing one)
// and imports it.
func (c *Client) AddChat(ctx context.Context, name, file, mediaDir string) (*api.ChatDTO, error) {
	req := api.AddChatRequest{Name: name, File: file, MediaDir: mediaDir}
	var out api.ChatDTO
	if err := c.do(ctx, http.MethodPost, "/v1/chats", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetChat returns one chat with its registered sources.
func (c *Client) GetChat(ctx context.Context, name string) (*api.ChatDTO, error) {
	var out api.ChatDTO
	if err := c.do(ctx, http.MethodGet, "/v1/chats/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteChat removes a chat and everything imported for it.
func (c *Client) DeleteChat(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/v1/chats/"+url.PathEscape(name), nil, nil)
}

// ReloadChat re-imports one chat from its registered files.
func (c *Client) ReloadChat(ctx context.Context, name string) (*api.ChatDTO, error) {
	var out api.ChatDTO
	if err := c.do(ctx, http.MethodPost, "/v1/chats/"+url.PathEscape(name)+"/reload", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Messages returns a window of normalized messages. limit <= 0 means all.
func (c *Client) Messages(ctx context.Context, chat string, offset, limit int) (*api.MessagesResponse, error) {
	path := "/v1/chats/" + url.PathEscape(chat) + "/messages?offset=" + strconv.Itoa(offset) + "&limit=" + strconv.Itoa(limit)
	var out api.MessagesResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search returns all case-insensitive substring matches for query.
func (c *Client) Search(ctx context.Context, chat, query string) ([]api.SearchHitDTO, error) {
	path := "/v1/chats/" + url.PathEscape(chat) + "/search?q=" + url.QueryEscape(query)
	var out api.SearchResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Hits, nil
}

// Star toggles the star on one record and returns the new state.
func (c *Client) Star(ctx context.Context, chat string, seq int64) (*api.StarResponse, error) {
	var out api.StarResponse
	if err := c.do(ctx, http.MethodPost, "/v1/chats/"+url.PathEscape(chat)+"/star", api.StarRequest{Seq: seq}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Starred lists a chat's starred records with their resolved positions.
func (c *Client) Starred(ctx context.Context, chat string) ([]api.StarredDTO, error) {
	var out api.StarredResponse
	if err := c.do(ctx, http.MethodGet, "/v1/chats/"+url.PathEscape(chat)+"/starred", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Stats returns per-sender message type counts.
func (c *Client) Stats(ctx context.Context, chat string) (map[string]view.TypeCount, error) {
	var out api.StatsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/chats/"+url.PathEscape(chat)+"/stats", nil, &out); err != nil {
		return nil, err
	}
	return out.Senders, nil
}

// Resolve maps raw sequence numbers onto frontend indices.
func (c *Client) Resolve(ctx context.Context, chat string, seqs []int64) ([]api.HitDTO, error) {
	var out api.ResolveResponse
	if err := c.do(ctx, http.MethodPost, "/v1/chats/"+url.PathEscape(chat)+"/resolve", api.ResolveRequest{Seqs: seqs}, &out); err != nil {
		return nil, err
	}
	return out.Hits, nil
}

// Events subscribes to the daemon's event stream. Envelopes arrive on the
// returned channel until ctx is cancelled or the stream breaks; the channel
// is closed either way.
func (c *Client) Events(ctx context.Context, prefix string) (<-chan api.EventEnvelope, error) {
	u := c.base + "/v1/events"
	if prefix != "" {
		u += "?prefix=" + url.QueryEscape(prefix)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("daemon: status %d", resp.StatusCode)
	}

	ch := make(chan api.EventEnvelope, 16)
	go func() {
		defer close(ch)
		defer func() { _ = resp.Body.Close() }()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var env api.EventEnvelope
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &env); err != nil {
				continue
			}
			select {
			case ch <- env:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("dial daemon: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		var apiErr api.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon: status %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
