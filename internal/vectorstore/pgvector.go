package vectorstore

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"paperchat/internal/contextutil"
)

// PgIndex implements Index on a PostgreSQL table with the pgvector extension.
// Replace runs in one transaction, so readers see either the old or the new chunk set.
type PgIndex struct {
	db        *sqlx.DB
	dimension int
}

type chunkRow struct {
	DocumentID string          `db:"document_id"`
	ChunkIndex int             `db:"chunk_index"`
	Offset     int             `db:"chunk_offset"`
	Content    string          `db:"content"`
	Embedding  pgvector.Vector `db:"embedding"`
	Similarity float64         `db:"similarity"`
}

// NewPgIndex connects to dsn and prepares the chunk table.
func NewPgIndex(ctx context.Context, dsn string, dimension int) (*PgIndex, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	idx := &PgIndex{db: db, dimension: dimension}
	if err := idx.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

func (p *PgIndex) migrate(ctx context.Context) error {
	schema := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
			document_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			chunk_offset INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			PRIMARY KEY (document_id, chunk_index)
		)`, p.dimension),
	}
	for _, stmt := range schema {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply pgvector migration: %w", err)
		}
	}
	return nil
}

// Close closes the database pool.
func (p *PgIndex) Close() error {
	return p.db.Close()
}

// Ping checks the database connection.
func (p *PgIndex) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Replace deletes the namespace's rows and inserts entries in one transaction.
func (p *PgIndex) Replace(ctx context.Context, namespace string, entries []Entry) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, namespace); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	query := `INSERT INTO document_chunks (document_id, chunk_index, chunk_offset, content, embedding)
		VALUES ($1, $2, $3, $4, $5)`
	for _, e := range entries {
		if len(e.Vector) != p.dimension {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", p.dimension, len(e.Vector))
		}
		if _, err := tx.ExecContext(ctx, query, namespace, e.Index, e.Offset, e.Text, pgvector.NewVector(e.Vector)); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", e.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "replaced chunks", "document_id", namespace, "count", len(entries))
	return nil
}

// Search returns up to k rows of the namespace ordered by cosine distance.
func (p *PgIndex) Search(ctx context.Context, namespace string, query []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	var rows []chunkRow
	err := p.db.SelectContext(ctx, &rows, `
		SELECT document_id, chunk_index, chunk_offset, content, embedding,
			1 - (embedding <=> $2) AS similarity
		FROM document_chunks
		WHERE document_id = $1
		ORDER BY embedding <=> $2, chunk_index
		LIMIT $3`,
		namespace, pgvector.NewVector(query), k,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	matches := make([]Match, 0, len(rows))
	for _, r := range rows {
		matches = append(matches, Match{
			Entry: Entry{
				DocumentID: r.DocumentID,
				Index:      r.ChunkIndex,
				Offset:     r.Offset,
				Text:       r.Content,
				Vector:     r.Embedding.Slice(),
			},
			Score: float32(r.Similarity),
		})
	}
	return onlyNamespace(namespace, matches), nil
}

// SearchDiverse runs maximal marginal relevance over the FetchK nearest rows.
func (p *PgIndex) SearchDiverse(ctx context.Context, namespace string, query []float32, opts DiverseOptions) ([]Match, error) {
	candidates, err := p.Search(ctx, namespace, query, max(opts.FetchK, opts.K))
	if err != nil {
		return nil, err
	}
	return SelectDiverse(query, candidates, opts.K, opts.Lambda), nil
}

// DeleteNamespace removes every row of the namespace.
func (p *PgIndex) DeleteNamespace(ctx context.Context, namespace string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, namespace); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// Count returns the number of rows in the namespace.
func (p *PgIndex) Count(ctx context.Context, namespace string) (int, error) {
	var n int
	if err := p.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM document_chunks WHERE document_id = $1`, namespace); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}
