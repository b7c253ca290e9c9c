// Package sqlite is the CLI-default repository.Store: a pure-Go SQLite
// database (modernc.org/sqlite, no cgo) with its schema applied through
// embedded goose migrations. A single *sql.DB connection serializes all
// writes, matching the spec's "the repository is the only shared resource
// and MUST serialize its own writes."
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"

	"github.com/gofrs/flock"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"ragts/internal/repository"
	"ragts/internal/snapshot"
)

// Store is a SQLite-backed repository.Store. A single connection plus an
// advisory file lock serialize writes both within this process (via
// SetMaxOpenConns(1)) and across separate `ragts process` invocations
// sharing the same database file (via flock), matching the spec's
// requirement that the repository serialize its own writes.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

// Open opens (creating if necessary) the SQLite database at path, takes an
// exclusive advisory lock on path+".lock", and applies all pending
// migrations. The lock is released by Close.
func Open(path string) (*Store, error) {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc.org/sqlite is not safe for concurrent writers on one
	// connection pool entry; a single connection plus WAL mode gives us
	// serialized writes without an external lock for in-process use. The
	// flock above additionally serializes across processes sharing path.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	migrationsFS, err := fs.Sub(MigrationFS, "migrations")
	if err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("migrations sub-fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrationsFS)
	if err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.Up(context.Background()); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{db: db, lock: lock}, nil
}

// Close closes the underlying database connection and releases the
// advisory file lock.
func (s *Store) Close() error {
	err := s.db.Close()
	if uerr := s.lock.Unlock(); uerr != nil && err == nil {
		err = uerr
	}
	return err
}

func (s *Store) CreateSession(ctx context.Context, sessionID string, cols, rows int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, cols, rows, status) VALUES (?, ?, ?, ?)`,
		sessionID, cols, rows, string(repository.Pending))
	if err != nil {
		return fmt.Errorf("create session %s: %w", sessionID, err)
	}
	return nil
}

func (s *Store) MarkProcessing(ctx context.Context, sessionID string, cols, rows int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, cols = ?, rows = ? WHERE id = ?`,
		string(repository.Processing), cols, rows, sessionID)
	if err != nil {
		return fmt.Errorf("mark processing %s: %w", sessionID, err)
	}
	return checkAffected(res, sessionID)
}

func (s *Store) MarkFailed(ctx context.Context, sessionID string, cause error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mark failed tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET status = ? WHERE id = ?`, string(repository.Failed), sessionID)
	if err != nil {
		return fmt.Errorf("mark failed %s: %w", sessionID, err)
	}
	if err := checkAffected(res, sessionID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear sections for %s: %w", sessionID, err)
	}
	return tx.Commit()
}

// Commit writes the snapshot, every section, and the Completed status in
// one transaction: a reader never observes sections without their
// snapshot, or a Completed status without its sections.
func (s *Store) Commit(ctx context.Context, sessionID string, result repository.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	snapBlob, err := json.Marshal(result.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET snapshot = ?, event_count = ?, section_count = ?, status = ? WHERE id = ?`,
		snapBlob, result.EventCount, len(result.Sections), string(repository.Completed), sessionID)
	if err != nil {
		return fmt.Errorf("update session %s: %w", sessionID, err)
	}
	if err := checkAffected(res, sessionID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear stale sections for %s: %w", sessionID, err)
	}

	for _, sec := range result.Sections {
		var secSnap []byte
		if sec.Snapshot != nil {
			secSnap, err = json.Marshal(sec.Snapshot)
			if err != nil {
				return fmt.Errorf("marshal section snapshot: %w", err)
			}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sections (session_id, type, label, start_event, end_event, start_line, end_line, snapshot)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sessionID, string(sec.Type), sec.Label, sec.StartEvent,
			nullableInt(sec.EndEvent), nullableInt(sec.StartLine), nullableInt(sec.EndLine), secSnap)
		if err != nil {
			return fmt.Errorf("insert section for %s: %w", sessionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx for %s: %w", sessionID, err)
	}
	return nil
}

func (s *Store) Session(ctx context.Context, sessionID string) (*repository.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, cols, rows, event_count, section_count, status, snapshot FROM sessions WHERE id = ?`, sessionID)

	var sess repository.Session
	var status string
	var snapBlob []byte
	if err := row.Scan(&sess.ID, &sess.Cols, &sess.Rows, &sess.EventCount, &sess.SectionCount, &status, &snapBlob); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("query session %s: %w", sessionID, err)
	}
	sess.Status = repository.Status(status)
	if len(snapBlob) > 0 {
		var snap snapshot.Snapshot
		if err := json.Unmarshal(snapBlob, &snap); err != nil {
			return nil, fmt.Errorf("decode snapshot for %s: %w", sessionID, err)
		}
		sess.Snapshot = &snap
	}
	return &sess, nil
}

func (s *Store) SectionsFor(ctx context.Context, sessionID string) ([]repository.Section, error) {
	if _, err := s.Session(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT type, label, start_event, end_event, start_line, end_line, snapshot
		 FROM sections WHERE session_id = ? ORDER BY start_event ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query sections for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []repository.Section
	for rows.Next() {
		var sec repository.Section
		var typ string
		var endEvent, startLine, endLine sql.NullInt64
		var snapBlob []byte
		if err := rows.Scan(&typ, &sec.Label, &sec.StartEvent, &endEvent, &startLine, &endLine, &snapBlob); err != nil {
			return nil, fmt.Errorf("scan section for %s: %w", sessionID, err)
		}
		sec.Type = repository.SectionType(typ)
		sec.EndEvent = fromNullable(endEvent)
		sec.StartLine = fromNullable(startLine)
		sec.EndLine = fromNullable(endLine)
		if len(snapBlob) > 0 {
			var snap snapshot.Snapshot
			if err := json.Unmarshal(snapBlob, &snap); err != nil {
				return nil, fmt.Errorf("decode section snapshot for %s: %w", sessionID, err)
			}
			sec.Snapshot = &snap
		}
		out = append(out, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sections for %s: %w", sessionID, err)
	}
	return out, nil
}

func checkAffected(res sql.Result, sessionID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func fromNullable(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

var _ repository.Store = (*Store)(nil)
