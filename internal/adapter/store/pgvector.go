package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"framesearch/internal/domain"
)

// PgVectorIndex searches a Postgres table of (indice, embedding) rows with
// the pgvector cosine distance operator.
type PgVectorIndex struct {
	pool  *pgxpool.Pool
	table string
}

// NewPgVectorIndex connects to Postgres and verifies the connection.
func NewPgVectorIndex(ctx context.Context, dsn, table string) (*PgVectorIndex, error) {
	if table == "" {
		table = "frame_embeddings"
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PgVectorIndex{
		pool:  pool,
		table: pgx.Identifier{table}.Sanitize(),
	}, nil
}

// Search returns the k nearest keys by cosine distance.
func (p *PgVectorIndex) Search(ctx context.Context, query []float32, k int) ([]int64, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := p.pool.Query(ctx,
		fmt.Sprintf(`SELECT indice FROM %s ORDER BY embedding <=> $1 LIMIT $2`, p.table),
		pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("%w: pgvector search failed: %w", domain.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	keys := make([]int64, 0, k)
	for rows.Next() {
		var key int64
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("%w: failed to scan search results: %w", domain.ErrIndexUnavailable, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
	return keys, nil
}

// Count returns the number of rows in the embedding table.
func (p *PgVectorIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s`, p.table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return n, nil
}

// Close closes the connection pool.
func (p *PgVectorIndex) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}
