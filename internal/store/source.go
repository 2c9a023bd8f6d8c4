package store

import "time"

// AddSource registers an export file for a chat (idempotent on
// chat_id + file_path). Re-adding an existing path updates its media
// directory in place.
func (db *DB) AddSource(chatID int64, filePath, mediaDir string) (*Source, error) {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO sources (chat_id, file_path, media_dir, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chat_id, file_path) DO UPDATE SET
			media_dir = excluded.media_dir`,
		chatID, filePath, mediaDir, now)
	if err != nil {
		return nil, err
	}
	var s Source
	err = db.QueryRow(`
		SELECT id, chat_id, file_path, media_dir, file_mtime, file_size, created_at
		FROM sources
		WHERE chat_id = ? AND file_path = ?`, chatID, filePath).
		Scan(&s.ID, &s.ChatID, &s.FilePath, &s.MediaDir, &s.FileMtime, &s.FileSize, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSources returns a chat's export files in registration order,
// which is also the merge order on import.
func (db *DB) ListSources(chatID int64) ([]Source, error) {
	rows, err := db.Query(`
		SELECT id, chat_id, file_path, media_dir, file_mtime, file_size, created_at
		FROM sources
		WHERE chat_id = ?
		ORDER BY id ASC`, chatID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sources []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.ID, &s.ChatID, &s.FilePath, &s.MediaDir, &s.FileMtime, &s.FileSize, &s.CreatedAt); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// RemoveSource deletes a single export registration. Returns
// ErrNotFound if the chat has no source with that path.
func (db *DB) RemoveSource(chatID int64, filePath string) error {
	res, err := db.Exec(`DELETE FROM sources WHERE chat_id = ? AND file_path = ?`, chatID, filePath)
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

// UpdateSourceStat records the file mtime and size seen at import time,
// so unchanged files can be skipped on the next boot.
func (db *DB) UpdateSourceStat(sourceID, mtime, size int64) error {
	_, err := db.Exec(`UPDATE sources SET file_mtime = ?, file_size = ? WHERE id = ?`, mtime, size, sourceID)
	return err
}
