// Package audit stores the trail of writes to output records in SQLite.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/busmap-core/internal/record"
)

// Page size limits for List.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// timeLayout sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Entry is one attempted register write.
type Entry struct {
	ID        string    `json:"id"`
	Record    string    `json:"record"`
	Address   string    `json:"address,omitempty"`
	Value     int64     `json:"value"`
	Mask      uint32    `json:"mask"`
	Source    string    `json:"source"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter selects entries for List.
type Filter struct {
	Record     string // optional
	Source     string // optional
	FailedOnly bool
	Limit      int // default 50, max 200
	Offset     int
}

// ListResult is one page of entries, most recent first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository stores and queries write entries.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository implements Repository on the register_writes table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on db. The register_writes
// migration must have been applied.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts e, filling in ID and CreatedAt if empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = "wr-" + uuid.NewString()[:8]
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	success := 0
	if e.Success {
		success = 1
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO register_writes (id, record, address, value, mask, source, success, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Record, e.Address, e.Value, int64(e.Mask), e.Source, success, e.Error,
		e.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting register write: %w", err)
	}
	return nil
}

// List returns entries matching filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultLimit
	}
	if filter.Limit > MaxLimit {
		filter.Limit = MaxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Record != "" {
		conditions = append(conditions, "record = ?")
		args = append(args, filter.Record)
	}
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filter.Source)
	}
	if filter.FailedOnly {
		conditions = append(conditions, "success = 0")
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM register_writes " + where //nolint:gosec // placeholders only
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting register writes: %w", err)
	}

	query := "SELECT id, record, address, value, mask, source, success, error, created_at FROM register_writes " + //nolint:gosec // placeholders only
		where + " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying register writes: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var mask int64
		var success int
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Record, &e.Address, &e.Value, &mask,
			&e.Source, &success, &e.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning register write: %w", err)
		}
		e.Mask = uint32(mask) //nolint:gosec // stored from a uint32
		e.Success = success != 0

		e.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing register write timestamp %q: %w", createdAt, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating register writes: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// FromEvent converts a record write event.
func FromEvent(ev record.WriteEvent) Entry {
	e := Entry{
		Record:    ev.Record,
		Address:   ev.Address,
		Value:     ev.Value,
		Mask:      ev.Mask,
		Source:    ev.Source,
		Success:   ev.Err == nil,
		CreatedAt: ev.Time,
	}
	if ev.Err != nil {
		e.Error = ev.Err.Error()
	}
	return e
}
