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

// History statuses besides the media.FailureReason labels.
const (
	StatusQueued      = "queued"
	StatusInterrupted = "interrupted"
)

// Limits for ListConversions.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// ConversionRecord is one row of conversion history.
type ConversionRecord struct {
	ID         string                   `json:"id"`
	InputPath  string                   `json:"inputPath"`
	OutputPath string                   `json:"outputPath"`
	Status     string                   `json:"status"`
	Options    *media.ConversionOptions `json:"options,omitempty"`
	Result     *media.ConversionResult  `json:"result,omitempty"`
	CreatedAt  time.Time                `json:"createdAt"`
	FinishedAt *time.Time               `json:"finishedAt,omitempty"`
}

// RecordStart stores a newly queued conversion. Starting an id again
// resets its row.
func (d *Database) RecordStart(ctx context.Context, opts media.ConversionOptions) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("record_start", start, err) }()

	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("failed to encode options: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO conversions (id, input_path, output_path, status, options, result, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, NULL, ?, NULL)
		ON CONFLICT(id) DO UPDATE SET
			input_path = excluded.input_path,
			output_path = excluded.output_path,
			status = excluded.status,
			options = excluded.options,
			result = NULL,
			created_at = excluded.created_at,
			finished_at = NULL
	`, opts.ID, opts.InputPath, opts.OutputPath, StatusQueued, string(optsJSON), start.UnixMilli())
	return err
}

// RecordResult stores the terminal result of a conversion. A result for an
// id that was never started creates the row.
func (d *Database) RecordResult(ctx context.Context, result *media.ConversionResult) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("record_result", start, err) }()

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	finished := result.FinishedAt
	if finished.IsZero() {
		finished = start
	}
	created := result.StartedAt
	if created.IsZero() {
		created = finished
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO conversions (id, output_path, status, result, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			result = excluded.result,
			finished_at = excluded.finished_at
	`, result.JobID, result.OutputPath, result.Reason.Status(), string(resultJSON), created.UnixMilli(), finished.UnixMilli())
	return err
}

// GetConversion returns one history record or ErrNotFound.
func (d *Database) GetConversion(ctx context.Context, id string) (*ConversionRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_conversion", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `
		SELECT id, input_path, output_path, status, options, result, created_at, finished_at
		FROM conversions WHERE id = ?
	`, id)

	rec, err := scanConversion(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListConversions returns the most recent conversions, newest first. A
// non-positive limit uses DefaultHistoryLimit; limits are capped at
// MaxHistoryLimit.
func (d *Database) ListConversions(ctx context.Context, limit int) ([]ConversionRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_conversions", start, err) }()

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, input_path, output_path, status, options, result, created_at, finished_at
		FROM conversions
		ORDER BY created_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]ConversionRecord, 0)
	for rows.Next() {
		var rec *ConversionRecord
		if rec, err = scanConversion(rows); err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	err = rows.Err()
	return records, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversion(row rowScanner) (*ConversionRecord, error) {
	var (
		rec        ConversionRecord
		optsJSON   sql.NullString
		resultJSON sql.NullString
		created    int64
		finished   sql.NullInt64
	)

	if err := row.Scan(&rec.ID, &rec.InputPath, &rec.OutputPath, &rec.Status,
		&optsJSON, &resultJSON, &created, &finished); err != nil {
		return nil, err
	}

	rec.CreatedAt = time.UnixMilli(created)
	if finished.Valid {
		t := time.UnixMilli(finished.Int64)
		rec.FinishedAt = &t
	}
	if optsJSON.Valid && optsJSON.String != "" {
		var opts media.ConversionOptions
		if err := json.Unmarshal([]byte(optsJSON.String), &opts); err != nil {
			return nil, fmt.Errorf("corrupt options for %s: %w", rec.ID, err)
		}
		rec.Options = &opts
	}
	if resultJSON.Valid && resultJSON.String != "" {
		var result media.ConversionResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, fmt.Errorf("corrupt result for %s: %w", rec.ID, err)
		}
		rec.Result = &result
	}
	return &rec, nil
}
