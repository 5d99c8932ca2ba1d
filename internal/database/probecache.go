package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"media-converter/internal/media"
)

// GetProbe returns the cached probe result for key. A row that no longer
// decodes is treated as a miss.
func (d *Database) GetProbe(ctx context.Context, key string) (*media.MediaInfo, bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_probe", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var data string
	err = d.db.QueryRowContext(ctx, "SELECT info FROM probe_cache WHERE key = ?", key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var info media.MediaInfo
	if jsonErr := json.Unmarshal([]byte(data), &info); jsonErr != nil {
		return nil, false, nil
	}
	return &info, true, nil
}

// PutProbe stores a probe result under key.
func (d *Database) PutProbe(ctx context.Context, key, path string, info *media.MediaInfo) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("put_probe", start, err) }()

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to encode probe result: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO probe_cache (key, path, info, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			path = excluded.path,
			info = excluded.info,
			created_at = excluded.created_at
	`, key, path, string(data), start.Unix())
	return err
}

// PruneProbeCache deletes entries stored before olderThan and returns how
// many were removed.
func (d *Database) PruneProbeCache(ctx context.Context, olderThan time.Time) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("prune_probe_cache", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, "DELETE FROM probe_cache WHERE created_at < ?", olderThan.Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
