package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// changeRetention is how many change rows are kept for watchers.
const changeRetention = 1000

// watchPollInterval bounds how long a change can go unnoticed when the
// file watcher misses an event.
const watchPollInterval = 2 * time.Second

// SQLiteStore implements KV using a local SQLite database. Every write
// is recorded in a change log tagged with the writing process's origin
// ID, so watchers can pick up writes from other processes.
type SQLiteStore struct {
	db     *sqlx.DB
	path   string
	origin string
	log    zerolog.Logger

	mu sync.Mutex
}

var _ KV = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		// Enable WAL mode for better concurrent read performance.
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
		if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting busy timeout: %w", err)
		}
	}

	s := &SQLiteStore{
		db:     db,
		path:   dbPath,
		origin: uuid.NewString(),
		log:    log,
	}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Get returns the value stored under key.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM kv WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading key %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key.
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	return s.write(ctx, key, value, false)
}

// Remove deletes key. Removing a missing key is not an error.
func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	return s.write(ctx, key, "", true)
}

func (s *SQLiteStore) write(ctx context.Context, key, value string, removed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if removed {
		res, err := tx.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key)
		if err != nil {
			return fmt.Errorf("removing key %s: %w", key, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
	} else {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("writing key %s: %w", key, err)
		}
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO kv_changes (key, value, removed, origin) VALUES (?, ?, ?, ?)",
		key, value, boolToInt(removed), s.origin,
	)
	if err != nil {
		return fmt.Errorf("recording change of %s: %w", key, err)
	}
	if seq, err := res.LastInsertId(); err == nil && seq > changeRetention {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM kv_changes WHERE seq <= ?", seq-changeRetention,
		); err != nil {
			return fmt.Errorf("pruning change log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing change of %s: %w", key, err)
	}
	return nil
}

// Watch delivers changes written by other processes. The database
// directory is watched with fsnotify; a periodic check covers missed
// events. The channel is closed when ctx is done.
func (s *SQLiteStore) Watch(ctx context.Context) (<-chan Change, error) {
	var lastSeq int64
	if err := s.db.GetContext(ctx, &lastSeq,
		"SELECT COALESCE(MAX(seq), 0) FROM kv_changes",
	); err != nil {
		return nil, fmt.Errorf("reading change log position: %w", err)
	}

	var watcher *fsnotify.Watcher
	if s.path != ":memory:" {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("creating file watcher: %w", err)
		}
		if err := w.Add(filepath.Dir(s.path)); err != nil {
			w.Close()
			return nil, fmt.Errorf("watching %s: %w", filepath.Dir(s.path), err)
		}
		watcher = w
	}

	out := make(chan Change, 16)
	go s.watchLoop(ctx, watcher, lastSeq, out)
	return out, nil
}

func (s *SQLiteStore) watchLoop(
	ctx context.Context,
	watcher *fsnotify.Watcher,
	lastSeq int64,
	out chan<- Change,
) {
	defer close(out)

	var events chan fsnotify.Event
	var errs chan error
	if watcher != nil {
		defer watcher.Close()
		events = watcher.Events
		errs = watcher.Errors
	}

	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()

	base := filepath.Base(s.path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			name := filepath.Base(ev.Name)
			if name != base && name != base+"-wal" {
				continue
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.log.Warn().Err(err).Msg("store file watcher error")
			continue
		case <-ticker.C:
		}

		changes, err := s.changesSince(ctx, lastSeq)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn().Err(err).Msg("reading store changes")
			}
			continue
		}
		for _, c := range changes {
			lastSeq = c.Seq
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}
}

type changeRow struct {
	Seq     int64  `db:"seq"`
	Key     string `db:"key"`
	Value   string `db:"value"`
	Removed int    `db:"removed"`
}

func (s *SQLiteStore) changesSince(ctx context.Context, seq int64) ([]Change, error) {
	var rows []changeRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT seq, key, value, removed FROM kv_changes
		WHERE seq > ? AND origin != ?
		ORDER BY seq`,
		seq, s.origin,
	)
	if err != nil {
		return nil, fmt.Errorf("querying changes since %d: %w", seq, err)
	}

	changes := make([]Change, 0, len(rows))
	for _, r := range rows {
		changes = append(changes, Change{
			Seq:     r.Seq,
			Key:     r.Key,
			Value:   r.Value,
			Removed: r.Removed != 0,
		})
	}
	return changes, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
