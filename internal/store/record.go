package store

import (
	"database/sql"
	"fmt"
)

// starKey identifies a record across re-imports for the purpose of
// carrying the starred flag. Media paths are excluded: they move when
// a media directory is re-registered, the message itself does not.
type starKey struct {
	Timestamp int64
	Sender    string
	Kind      string
	Body      string
	Caption   string
}

func recordStarKey(timestamp int64, sender, kind, body, caption string) starKey {
	return starKey{Timestamp: timestamp, Sender: sender, Kind: kind, Body: body, Caption: caption}
}

// ReplaceRecords swaps a chat's records for the given slice in one
// transaction. Seq is taken from each record's position. Starred flags
// survive the swap: each starred row in the old set marks one matching
// record in the new set (same timestamp, sender, kind, body and
// caption), so stars outlive re-imports that renumber sequences.
func (db *DB) ReplaceRecords(chatID int64, records []Record) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	starred := make(map[starKey]int)
	rows, err := tx.Query(`
		SELECT timestamp, sender, kind, body, caption
		FROM records
		WHERE chat_id = ? AND starred = 1`, chatID)
	if err != nil {
		return fmt.Errorf("load starred: %w", err)
	}
	for rows.Next() {
		var ts int64
		var sender, kind, body, caption string
		if err := rows.Scan(&ts, &sender, &kind, &body, &caption); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan starred: %w", err)
		}
		starred[recordStarKey(ts, sender, kind, body, caption)]++
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("load starred: %w", err)
	}
	_ = rows.Close()

	if _, err := tx.Exec(`DELETE FROM records WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO records (chat_id, seq, timestamp, sender, kind, body, media_type, media_path, caption, starred)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, r := range records {
		star := r.Starred
		if !star {
			key := recordStarKey(r.Timestamp, r.Sender, string(r.Kind), r.Body, r.Caption)
			if starred[key] > 0 {
				starred[key]--
				star = true
			}
		}
		if _, err := stmt.Exec(chatID, int64(i), r.Timestamp, r.Sender, string(r.Kind), r.Body, string(r.MediaType), r.MediaPath, r.Caption, star); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// ListRecords returns all of a chat's records in sequence order.
func (db *DB) ListRecords(chatID int64) ([]Record, error) {
	rows, err := db.Query(`
		SELECT chat_id, seq, timestamp, sender, kind, body, media_type, media_path, caption, starred
		FROM records
		WHERE chat_id = ?
		ORDER BY seq ASC`, chatID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanRecords(rows)
}

// ListStarred returns a chat's starred records in sequence order.
func (db *DB) ListStarred(chatID int64) ([]Record, error) {
	rows, err := db.Query(`
		SELECT chat_id, seq, timestamp, sender, kind, body, media_type, media_path, caption, starred
		FROM records
		WHERE chat_id = ? AND starred = 1
		ORDER BY seq ASC`, chatID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ChatID, &r.Seq, &r.Timestamp, &r.Sender, &r.Kind, &r.Body, &r.MediaType, &r.MediaPath, &r.Caption, &r.Starred); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// CountRecords returns the number of records stored for a chat.
func (db *DB) CountRecords(chatID int64) (int64, error) {
	var n int64
	err := db.QueryRow(`SELECT COUNT(*) FROM records WHERE chat_id = ?`, chatID).Scan(&n)
	return n, err
}

// RecordCount returns the number of records across all chats.
func (db *DB) RecordCount() (int64, error) {
	var n int64
	err := db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&n)
	return n, err
}

// ToggleStarred flips the starred flag on a single record and returns
// the new value. Returns ErrNotFound if the record does not exist.
func (db *DB) ToggleStarred(chatID, seq int64) (bool, error) {
	tx, err := db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var starred bool
	err = tx.QueryRow(`SELECT starred FROM records WHERE chat_id = ? AND seq = ?`, chatID, seq).Scan(&starred)
	if err == sql.ErrNoRows {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	if _, err := tx.Exec(`UPDATE records SET starred = ? WHERE chat_id = ? AND seq = ?`, !starred, chatID, seq); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return !starred, nil
}
