package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteBackend stores records in a local SQLite file and scores them by
// brute force. It needs no server and suits corpora of a few hundred thousand
// chunks.
type SQLiteBackend struct {
	db   *sql.DB
	path string

	mu     sync.RWMutex
	metric Metric
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite index: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS index_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite index: %w", err)
	}

	return &SQLiteBackend{db: db, path: path, metric: MetricL2}, nil
}

func (s *SQLiteBackend) Name() string { return "sqlite" }

const createRecords = `CREATE TABLE IF NOT EXISTS records (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	text TEXT NOT NULL,
	vector BLOB NOT NULL
)`

const createRecordsIndex = `CREATE INDEX IF NOT EXISTS idx_records_document ON records(document_id)`

func (s *SQLiteBackend) Compatible(ctx context.Context, dim int, metric Metric) (bool, error) {
	storedDim, storedMetric, err := s.readMeta(ctx)
	if err != nil {
		return false, err
	}
	if storedDim == 0 {
		// No metadata: only an empty or absent table is usable.
		n, err := s.countIfExists(ctx)
		if err != nil {
			return false, err
		}
		return n == 0, nil
	}
	return storedDim == dim && storedMetric == metric, nil
}

func (s *SQLiteBackend) Ensure(ctx context.Context, dim int, metric Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := createSchema(ctx, tx, dim, metric); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.metric = metric
	return nil
}

func (s *SQLiteBackend) Recreate(ctx context.Context, dim int, metric Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS records`); err != nil {
		return fmt.Errorf("drop records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM index_meta`); err != nil {
		return fmt.Errorf("clear index meta: %w", err)
	}
	if err := createSchema(ctx, tx, dim, metric); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.metric = metric
	return nil
}

func createSchema(ctx context.Context, tx *sql.Tx, dim int, metric Metric) error {
	for _, stmt := range []string{createRecords, createRecordsIndex} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	for key, value := range map[string]string{
		"dimension": strconv.Itoa(dim),
		"metric":    string(metric),
	} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO index_meta(key, value) VALUES(?, ?) ON CONFLICT(key) DO NOTHING`,
			key, value); err != nil {
			return fmt.Errorf("write index meta: %w", err)
		}
	}
	return nil
}

func (s *SQLiteBackend) Replace(ctx context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	del, err := tx.PrepareContext(ctx, `DELETE FROM records WHERE id = ?`)
	if err != nil {
		return err
	}
	defer del.Close()
	ins, err := tx.PrepareContext(ctx,
		`INSERT INTO records(id, document_id, chunk_index, text, vector) VALUES(?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer ins.Close()

	for _, r := range records {
		if _, err := del.ExecContext(ctx, r.ID); err != nil {
			return fmt.Errorf("delete %s: %w", r.ID, err)
		}
		if _, err := ins.ExecContext(ctx, r.ID, r.DocumentID, r.ChunkIndex, r.Text, encodeVector(r.Vector)); err != nil {
			return fmt.Errorf("insert %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteBackend) Prune(ctx context.Context, documentID string, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE document_id = ? AND chunk_index >= ?`, documentID, keep)
	if err != nil {
		return fmt.Errorf("prune %s: %w", documentID, err)
	}
	return nil
}

func (s *SQLiteBackend) Search(ctx context.Context, vector []float32, limit int, documentIDs []string) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, document_id, chunk_index, text, vector FROM records`
	args := make([]any, 0, len(documentIDs))
	if len(documentIDs) > 0 {
		query += ` WHERE document_id IN (` + strings.TrimSuffix(strings.Repeat("?,", len(documentIDs)), ",") + `)`
		for _, id := range documentIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			h    Hit
			blob []byte
		)
		if err := rows.Scan(&h.ID, &h.DocumentID, &h.ChunkIndex, &h.Text, &blob); err != nil {
			return nil, err
		}
		v, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", h.ID, err)
		}
		if len(v) != len(vector) {
			return nil, fmt.Errorf("%w: record %s has %d dimensions, query has %d",
				ErrDimensionMismatch, h.ID, len(v), len(vector))
		}
		h.Distance = distance(s.metric, vector, v)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *SQLiteBackend) Count(ctx context.Context) (int, error) {
	return s.countIfExists(ctx)
}

func (s *SQLiteBackend) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return nil
}

func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

func (s *SQLiteBackend) readMeta(ctx context.Context) (int, Metric, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM index_meta`)
	if err != nil {
		return 0, "", fmt.Errorf("read index meta: %w", err)
	}
	defer rows.Close()

	var (
		dim    int
		metric Metric
	)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return 0, "", err
		}
		switch key {
		case "dimension":
			dim, _ = strconv.Atoi(value)
		case "metric":
			metric = Metric(value)
		}
	}
	return dim, metric, rows.Err()
}

func (s *SQLiteBackend) countIfExists(ctx context.Context) (int, error) {
	var tables int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'records'`).Scan(&tables)
	if err != nil {
		return 0, fmt.Errorf("look up records table: %w", err)
	}
	if tables == 0 {
		return 0, nil
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

var _ Backend = (*SQLiteBackend)(nil)
