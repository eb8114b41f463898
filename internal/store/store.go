// Package store maintains a Postgres/pgvector index of record embeddings,
// used for dataset hygiene (near-duplicate detection) rather than training.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// EmbeddingDim is the pgvector column width; it matches the feature
// extractor's flattened output.
const EmbeddingDim = 1000

// Store manages the PostgreSQL connection and pgvector operations.
type Store struct {
	conn *pgx.Conn
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the necessary tables and vector extension if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS datasets (
			id TEXT PRIMARY KEY,
			record_path TEXT NOT NULL,
			indexed_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS sample_embeddings (
			id BIGSERIAL PRIMARY KEY,
			dataset_id TEXT REFERENCES datasets(id),
			record_index INT NOT NULL,
			embedding VECTOR(%d) NOT NULL
		);
		CREATE INDEX IF NOT EXISTS sample_embeddings_dataset_idx ON sample_embeddings (dataset_id);
	`, EmbeddingDim)
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// EnsureDataset registers a record file in the index. Re-indexing the same
// dataset first clears its old embeddings so the index stays idempotent.
func (s *Store) EnsureDataset(ctx context.Context, datasetID, recordPath string) error {
	if _, err := s.conn.Exec(ctx, "DELETE FROM sample_embeddings WHERE dataset_id = $1", datasetID); err != nil {
		return err
	}

	_, err := s.conn.Exec(ctx, `
		INSERT INTO datasets (id, record_path, indexed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET indexed_at = NOW(), record_path = EXCLUDED.record_path
	`, datasetID, recordPath)
	return err
}

// InsertEmbeddings saves a batch of record embeddings, preserving record
// order via startIndex.
func (s *Store) InsertEmbeddings(ctx context.Context, datasetID string, startIndex int, vecs [][]float32) error {
	if len(vecs) == 0 {
		return nil
	}

	for i, vec := range vecs {
		if len(vec) != EmbeddingDim {
			return fmt.Errorf("embedding %d has dimension %d, expected %d", startIndex+i, len(vec), EmbeddingDim)
		}
		_, err := s.conn.Exec(ctx, `
			INSERT INTO sample_embeddings (dataset_id, record_index, embedding)
			VALUES ($1, $2, $3::vector)
		`, datasetID, startIndex+i, vecToString(vec))
		if err != nil {
			return err
		}
	}
	return nil
}

// Neighbor is one nearest-neighbor hit.
type Neighbor struct {
	DatasetID   string
	RecordIndex int
	Distance    float64
}

// FindNearest returns the k indexed samples closest to vec by cosine distance.
func (s *Store) FindNearest(ctx context.Context, vec []float32, k int) ([]Neighbor, error) {
	// <=> is the cosine distance operator in pgvector
	rows, err := s.conn.Query(ctx, `
		SELECT dataset_id, record_index, embedding <=> $1::vector AS dist
		FROM sample_embeddings
		ORDER BY dist ASC
		LIMIT $2
	`, vecToString(vec), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Neighbor
	for rows.Next() {
		var n Neighbor
		if err := rows.Scan(&n.DatasetID, &n.RecordIndex, &n.Distance); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// DupePair is a pair of samples whose embeddings sit within the duplicate
// threshold of each other.
type DupePair struct {
	DatasetID string
	IndexA    int
	IndexB    int
	Distance  float64
}

// NearDuplicates reports the closest same-dataset sample pairs under the
// given cosine distance threshold, nearest first.
func (s *Store) NearDuplicates(ctx context.Context, threshold float64, limit int) ([]DupePair, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT a.dataset_id, a.record_index, b.record_index, a.embedding <=> b.embedding AS dist
		FROM sample_embeddings a
		JOIN sample_embeddings b
		  ON a.dataset_id = b.dataset_id AND a.id < b.id
		WHERE a.embedding <=> b.embedding < $1
		ORDER BY dist ASC
		LIMIT $2
	`, threshold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DupePair
	for rows.Next() {
		var p DupePair
		if err := rows.Scan(&p.DatasetID, &p.IndexA, &p.IndexB, &p.Distance); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountEmbeddings returns how many samples are indexed for a dataset.
func (s *Store) CountEmbeddings(ctx context.Context, datasetID string) (int, error) {
	var n int
	err := s.conn.QueryRow(ctx, "SELECT COUNT(*) FROM sample_embeddings WHERE dataset_id = $1", datasetID).Scan(&n)
	return n, err
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS sample_embeddings CASCADE;
		DROP TABLE IF EXISTS datasets CASCADE;
	`)
	return err
}

// vecToString formats a float slice into a PostgreSQL vector string format "[1.0,2.0,...]"
func vecToString(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%f", v)
	}
	b.WriteByte(']')
	return b.String()
}
