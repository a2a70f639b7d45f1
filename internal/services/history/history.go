// Package history persists periodic snapshots of timer statistics to a
// local sqlite database, so tick behavior can be inspected after the fact.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	logx "runtick/pkg/logx"

	"runtick/internal/timer"
)

//go:embed migrations.sql
var migrationsFS embed.FS

var ErrClosed = errors.New("history: store closed")

type Config struct {
	Path        string
	BusyTimeout time.Duration

	// MaxRows caps the table; older rows are pruned past it. 0 keeps all.
	MaxRows int
}

// Entry is one persisted snapshot.
type Entry struct {
	At       time.Time   `json:"at"`
	Stats    timer.Stats `json:"stats"`
	Activity string      `json:"activity"`
}

// Store is the sqlite-backed snapshot store.
type Store struct {
	db  *sql.DB
	log logx.Logger

	maxRows int

	opCount    atomic.Uint64
	pruneEvery uint64
}

func Open(cfg Config, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("history: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &Store{db: db, log: log, maxRows: cfg.MaxRows, pruneEvery: 50}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append writes one snapshot row, pruning old rows every few appends.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tick_stats(at, ticks, ctxt_switches, idle_gcs, bad_ticks, activity)
		 VALUES(?,?,?,?,?,?)`,
		e.At.Format(time.RFC3339Nano),
		e.Stats.Ticks, e.Stats.CtxtSwitches, e.Stats.IdleGCs, e.Stats.BadTicks,
		e.Activity,
	)
	if err == nil && s.maxRows > 0 && s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		if perr := s.prune(pctx); perr != nil && !s.log.IsZero() {
			s.log.Debug("history prune failed", logx.Any("err", perr))
		}
		cancel()
	}
	return err
}

// Recent returns up to limit snapshots, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, ticks, ctxt_switches, idle_gcs, bad_ticks, activity
		 FROM tick_stats ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var at string
		if err := rows.Scan(&at, &e.Stats.Ticks, &e.Stats.CtxtSwitches, &e.Stats.IdleGCs, &e.Stats.BadTicks, &e.Activity); err != nil {
			return nil, err
		}
		if t, perr := time.Parse(time.RFC3339Nano, at); perr == nil {
			e.At = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) prune(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM tick_stats WHERE id NOT IN
		 (SELECT id FROM tick_stats ORDER BY id DESC LIMIT ?)`, s.maxRows)
	return err
}
