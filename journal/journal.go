// Package journal records every operation dispatched against a page in an
// SQLite table, so a session can be audited or replayed after the fact.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/ectrol/dbopen"
	"github.com/hazyhaar/ectrol/idgen"
	"github.com/hazyhaar/ectrol/kit"
)

// Entry statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Entry is one journaled operation.
type Entry struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	Op         string    `json:"op"`
	Selector   string    `json:"selector,omitempty"`
	Transport  string    `json:"transport,omitempty"`
	RunID      string    `json:"run_id,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Params     string    `json:"params,omitempty"` // JSON
	Result     string    `json:"result,omitempty"` // JSON
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}

// Filter narrows Recent.
type Filter struct {
	RunID string
	Op    string
	Limit int // default 50
}

// Store persists entries.
type Store struct {
	db     *sql.DB
	newID  idgen.Generator
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides entry IDs. Default: "act_" + UUIDv7.
func WithIDGenerator(gen idgen.Generator) Option { return func(s *Store) { s.newID = gen } }

// WithLogger sets the logger for write failures in Middleware.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// New wraps an open database. The caller applies Schema.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		newID:  idgen.Prefixed("act_", idgen.UUIDv7()),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open opens (creating if needed) the journal database at path.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	return New(db, opts...), nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Record inserts e, filling ID, Time and Status when empty.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = s.newID()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if e.Status == "" {
		e.Status = StatusOK
	}
	_, err := dbopen.Exec(ctx, s.db, `INSERT INTO actions
		(entry_id, ts, op, selector, transport, run_id, request_id, params, result, status, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Time.UnixMilli(), e.Op, e.Selector, e.Transport, e.RunID, e.RequestID,
		e.Params, e.Result, e.Status, e.Error, e.DurationMs)
	if err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}
	return nil
}

// Recent returns the newest entries matching f, newest first.
func (s *Store) Recent(ctx context.Context, f Filter) ([]*Entry, error) {
	q := `SELECT entry_id, ts, op, selector, transport, run_id, request_id,
		params, result, status, error, duration_ms FROM actions WHERE 1=1`
	var args []any
	if f.RunID != "" {
		q += " AND run_id = ?"
		args = append(args, f.RunID)
	}
	if f.Op != "" {
		q += " AND op = ?"
		args = append(args, f.Op)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	q += " ORDER BY ts DESC, entry_id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		var ts int64
		if err := rows.Scan(&e.ID, &ts, &e.Op, &e.Selector, &e.Transport, &e.RunID, &e.RequestID,
			&e.Params, &e.Result, &e.Status, &e.Error, &e.DurationMs); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.Time = time.UnixMilli(ts)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Prune keeps the newest keep entries and deletes the rest. It returns the
// number of deleted rows.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	var n int64
	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM actions WHERE entry_id NOT IN
			(SELECT entry_id FROM actions ORDER BY ts DESC, entry_id DESC LIMIT ?)`, keep)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	return n, nil
}

// Action is implemented by requests the journal middleware can describe.
type Action interface {
	ActionName() string
	ActionTarget() string
}

// Middleware records every call that passes through it. Requests that do
// not implement Action are journaled under op "unknown". A failed write is
// logged and never fails the call.
func (s *Store) Middleware() kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			e := &Entry{
				Op:         "unknown",
				Transport:  kit.GetTransport(ctx),
				RunID:      kit.GetRunID(ctx),
				RequestID:  kit.GetRequestID(ctx),
				DurationMs: time.Since(start).Milliseconds(),
			}
			if a, ok := req.(Action); ok {
				e.Op = a.ActionName()
				e.Selector = a.ActionTarget()
			}
			if b, merr := json.Marshal(req); merr == nil {
				e.Params = string(b)
			}
			if err != nil {
				e.Status = StatusError
				e.Error = err.Error()
			} else if resp != nil {
				if b, merr := json.Marshal(resp); merr == nil {
					e.Result = string(b)
				}
			}
			if werr := s.Record(context.WithoutCancel(ctx), e); werr != nil {
				s.logger.Warn("journal: write failed", "op", e.Op, "error", werr)
			}
			return resp, err
		}
	}
}
