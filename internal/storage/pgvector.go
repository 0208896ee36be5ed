package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// DefaultPgTable is the table used by PgvectorBackend.
const DefaultPgTable = "rag_records"

// PgvectorBackend stores records in PostgreSQL with the pgvector extension.
// The metric is recorded as the table comment ("metric=l2").
type PgvectorBackend struct {
	pool   *pgxpool.Pool
	table  string
	ident  string
	metric Metric
}

// NewPgvectorBackend connects to dsn and verifies the connection.
func NewPgvectorBackend(ctx context.Context, dsn, table string) (*PgvectorBackend, error) {
	if table == "" {
		table = DefaultPgTable
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return &PgvectorBackend{
		pool:   pool,
		table:  table,
		ident:  pgx.Identifier{table}.Sanitize(),
		metric: MetricCosine,
	}, nil
}

func (p *PgvectorBackend) Name() string { return "pgvector" }

func (p *PgvectorBackend) Compatible(ctx context.Context, dim int, metric Metric) (bool, error) {
	var (
		typ     *string
		comment *string
	)
	err := p.pool.QueryRow(ctx, `
		SELECT format_type(a.atttypid, a.atttypmod), obj_description(a.attrelid, 'pg_class')
		FROM pg_attribute a
		WHERE a.attrelid = to_regclass($1) AND a.attname = 'embedding' AND NOT a.attisdropped
	`, p.table).Scan(&typ, &comment)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("inspect %s: %w", p.table, err)
	}
	if typ == nil || *typ != fmt.Sprintf("vector(%d)", dim) {
		return false, nil
	}
	return comment != nil && *comment == "metric="+string(metric), nil
}

func (p *PgvectorBackend) Ensure(ctx context.Context, dim int, metric Metric) error {
	if dim <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			chunk_index INT NOT NULL,
			text TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL
		)`, p.ident, dim),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(document_id)",
			pgx.Identifier{p.table + "_document_idx"}.Sanitize(), p.ident),
		fmt.Sprintf("COMMENT ON TABLE %s IS 'metric=%s'", p.ident, metric),
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}
	p.metric = metric
	return nil
}

func (p *PgvectorBackend) Recreate(ctx context.Context, dim int, metric Metric) error {
	if _, err := p.pool.Exec(ctx, "DROP TABLE IF EXISTS "+p.ident); err != nil {
		return fmt.Errorf("drop %s: %w", p.table, err)
	}
	return p.Ensure(ctx, dim, metric)
}

func (p *PgvectorBackend) Replace(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM "+p.ident+" WHERE id = ANY($1)", ids); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}

	batch := &pgx.Batch{}
	insert := "INSERT INTO " + p.ident + " (id, document_id, chunk_index, text, embedding) VALUES ($1, $2, $3, $4, $5)"
	for _, r := range records {
		batch.Queue(insert, r.ID, r.DocumentID, r.ChunkIndex, r.Text, pgvector.NewVector(r.Vector))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert records: %w", err)
	}
	return tx.Commit(ctx)
}

func (p *PgvectorBackend) Prune(ctx context.Context, documentID string, keep int) error {
	_, err := p.pool.Exec(ctx,
		"DELETE FROM "+p.ident+" WHERE document_id = $1 AND chunk_index >= $2", documentID, keep)
	if err != nil {
		return fmt.Errorf("prune %s: %w", documentID, err)
	}
	return nil
}

func (p *PgvectorBackend) Search(ctx context.Context, vector []float32, limit int, documentIDs []string) ([]Hit, error) {
	op := "<->"
	if p.metric == MetricCosine {
		op = "<=>"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT id, document_id, chunk_index, text, (embedding %s $1::vector) AS distance FROM %s", op, p.ident)
	args := []any{pgvector.NewVector(vector), limit}
	if len(documentIDs) > 0 {
		sb.WriteString(" WHERE document_id = ANY($3)")
		args = append(args, documentIDs)
	}
	fmt.Fprintf(&sb, " ORDER BY embedding %s $1::vector LIMIT $2", op)

	rows, err := p.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query similar records: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.DocumentID, &h.ChunkIndex, &h.Text, &h.Distance); err != nil {
			return nil, fmt.Errorf("scan similar record: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (p *PgvectorBackend) Count(ctx context.Context) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+p.ident).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func (p *PgvectorBackend) Health(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return nil
}

func (p *PgvectorBackend) Close() error {
	p.pool.Close()
	return nil
}

var _ Backend = (*PgvectorBackend)(nil)
