package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/OCharnyshevich/voxel-world/pkg/world/chunk"
)

// SQLiteStore keeps payloads in one SQLite table.
type SQLiteStore struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string, log *slog.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, log: log}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("exec %q: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS chunks (
		cx INTEGER NOT NULL,
		cz INTEGER NOT NULL,
		revision INTEGER NOT NULL,
		payload BLOB NOT NULL,
		saved_at TEXT NOT NULL,
		PRIMARY KEY (cx, cz)
	);`)
	if err != nil {
		return fmt.Errorf("create chunks table: %w", err)
	}
	return nil
}

const upsertChunk = `INSERT INTO chunks (cx, cz, revision, payload, saved_at) VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (cx, cz) DO UPDATE SET revision = excluded.revision, payload = excluded.payload, saved_at = excluded.saved_at`

func (s *SQLiteStore) Load(ctx context.Context, pos chunk.Pos) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM chunks WHERE cx = ? AND cz = ?`, pos.X, pos.Z).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load chunk %s: %w", pos, err)
	}
	return data, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, pos chunk.Pos, data []byte) error {
	return s.SaveBatch(ctx, []Entry{{Pos: pos, Data: data}})
}

// SaveBatch writes all entries in one transaction.
func (s *SQLiteStore) SaveBatch(ctx context.Context, entries []Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertChunk)
	if err != nil {
		return fmt.Errorf("prepare save: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Pos.X, e.Pos.Z, int64(revisionOf(e.Data)), e.Data, now); err != nil {
			return fmt.Errorf("save chunk %s: %w", e.Pos, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	s.log.Debug("saved chunks", "chunks", len(entries))
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]chunk.Pos, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cx, cz FROM chunks ORDER BY cx, cz`)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()
	var out []chunk.Pos
	for rows.Next() {
		var p chunk.Pos
		if err := rows.Scan(&p.X, &p.Z); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// revisionOf reads the revision from an encoded payload header, or 0 if
// the header is short.
func revisionOf(data []byte) uint64 {
	p, err := chunk.PayloadHeader(data)
	if err != nil {
		return 0
	}
	return p.Revision
}
