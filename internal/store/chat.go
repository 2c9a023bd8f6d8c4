package store

import (
	"database/sql"
	"time"
)

// CreateChat inserts a new chat. Names are unique per library.
func (db *DB) CreateChat(name string) (*Chat, error) {
	now := time.Now().UnixMilli()
	res, err := db.Exec(`
		INSERT INTO chats (name, created_at, updated_at)
		VALUES (?, ?, ?)`,
		name, now, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Chat{ID: id, Name: name}, nil
}

// GetChat returns a single chat by name, or nil if it does not exist.
func (db *DB) GetChat(name string) (*Chat, error) {
	var c Chat
	err := db.QueryRow(`
		SELECT id, name, message_count, first_sent, last_sent, last_preview, imported_at
		FROM chats
		WHERE name = ?`, name).
		Scan(&c.ID, &c.Name, &c.MessageCount, &c.FirstSent, &c.LastSent, &c.LastPreview, &c.ImportedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListChats returns all chats sorted by last message timestamp
// descending, name ascending for ties.
func (db *DB) ListChats() ([]Chat, error) {
	rows, err := db.Query(`
		SELECT id, name, message_count, first_sent, last_sent, last_preview, imported_at
		FROM chats
		ORDER BY last_sent DESC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.Name, &c.MessageCount, &c.FirstSent, &c.LastSent, &c.LastPreview, &c.ImportedAt); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// DeleteChat removes a chat; its sources and records cascade. Returns
// ErrNotFound if no chat has that name.
func (db *DB) DeleteChat(name string) error {
	res, err := db.Exec(`DELETE FROM chats WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ChatCount returns the number of registered chats.
func (db *DB) ChatCount() (int64, error) {
	var n int64
	err := db.QueryRow(`SELECT COUNT(*) FROM chats`).Scan(&n)
	return n, err
}

// UpdateChatSummary refreshes the denormalized columns after an import.
func (db *DB) UpdateChatSummary(chatID int64, count int, firstSent, lastSent int64, preview string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE chats SET
			message_count = ?,
			first_sent = ?,
			last_sent = ?,
			last_preview = ?,
			imported_at = ?,
			updated_at = ?
		WHERE id = ?`,
		count, firstSent, lastSent, preview, now, now, chatID)
	return err
}
