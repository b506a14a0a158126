// Package journal keeps an append-only sqlite record of batch publish attempts.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"cloudpico-positioning/internal/batch"
)

//go:embed sql/insert-flush.sql
var insertFlushSQL string

//go:embed sql/get-recent-flushes.sql
var getRecentFlushesSQL string

// Entry is one journaled publish attempt.
type Entry struct {
	Packet      int64     `json:"packet"`
	MessageID   string    `json:"message_id,omitempty"`
	Samples     int       `json:"samples"`
	Bytes       int       `json:"bytes"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	AttemptedAt time.Time `json:"attempted_at"`
}

type Journal interface {
	batch.FlushRecorder
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

type journalImpl struct {
	db *sql.DB
}

func New(db *sql.DB) Journal {
	return &journalImpl{db: db}
}

func (j *journalImpl) RecordFlush(ctx context.Context, rec batch.FlushRecord) error {
	var (
		msgID  sql.NullString
		errStr sql.NullString
	)
	if rec.MessageID != "" {
		msgID = sql.NullString{String: rec.MessageID, Valid: true}
	}
	if rec.Err != nil {
		errStr = sql.NullString{String: rec.Err.Error(), Valid: true}
	}

	_, err := j.db.ExecContext(ctx, insertFlushSQL,
		rec.Packet,
		msgID,
		rec.Samples,
		rec.Bytes,
		rec.Err == nil,
		errStr,
		rec.AttemptedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert flush %d: %w", rec.Packet, err)
	}
	return nil
}

// Recent returns at most limit entries, newest first.
func (j *journalImpl) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, getRecentFlushesSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close flush journal rows", "error", err)
		}
	}()

	out := []Entry{}
	for rows.Next() {
		var (
			e      Entry
			msgID  sql.NullString
			errStr sql.NullString
			ts     string
		)
		if err := rows.Scan(&e.Packet, &msgID, &e.Samples, &e.Bytes, &e.Success, &errStr, &ts); err != nil {
			return nil, err
		}
		e.MessageID = msgID.String
		e.Error = errStr.String
		e.AttemptedAt, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse attempted_at %q: %w", ts, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
