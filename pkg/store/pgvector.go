package store

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/docchat/internal/models"
)

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int
}

// VectorStore is the pgvector-backed similarity index. Each document's
// chunks live in their own namespace; queries never cross namespaces.
type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(config VectorStoreConfig) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize() error {
	ctx := context.Background()

	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			namespace TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d),
			PRIMARY KEY (namespace, chunk_index)
		)`, vs.config.TableName, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		vs.config.TableName, vs.config.TableName)

	_, err = vs.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %v", err)
	}

	return nil
}

func (vs *VectorStore) ListNamespaces(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT namespace FROM %s", vs.config.TableName)

	rows, err := vs.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: listing namespaces: %v", models.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	var namespaces []string
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return nil, fmt.Errorf("%w: scanning namespace: %v", models.ErrIndexUnavailable, err)
		}
		namespaces = append(namespaces, ns)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: listing namespaces: %v", models.ErrIndexUnavailable, err)
	}

	return namespaces, nil
}

func (vs *VectorStore) Upsert(ctx context.Context, namespace string, pairs []models.ChunkEmbedding) error {
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", models.ErrIndexUnavailable, err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (namespace, chunk_index, content, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (namespace, chunk_index) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`,
		vs.config.TableName)

	for _, pair := range pairs {
		_, err = tx.Exec(ctx, stmt,
			namespace,
			pair.Index,
			sanitizeUTF8(pair.Content),
			pgvector.NewVector(pair.Embedding),
		)
		if err != nil {
			return fmt.Errorf("%w: inserting chunk %d: %v", models.ErrIndexUnavailable, pair.Index, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", models.ErrIndexUnavailable, err)
	}

	return nil
}

// Query returns at most k chunks from the namespace ranked by cosine
// distance ascending, ties broken by chunk index for determinism.
func (vs *VectorStore) Query(ctx context.Context, namespace string, vector []float32, k int) ([]models.Chunk, error) {
	query := fmt.Sprintf(`
		SELECT namespace, chunk_index, content
		FROM %s
		WHERE namespace = $1
		ORDER BY embedding <=> $2, chunk_index ASC
		LIMIT $3`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, query, namespace, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("%w: querying chunks: %v", models.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var chunk models.Chunk
		if err := rows.Scan(&chunk.DocumentID, &chunk.Index, &chunk.Content); err != nil {
			return nil, fmt.Errorf("%w: scanning chunk: %v", models.ErrIndexUnavailable, err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: querying chunks: %v", models.ErrIndexUnavailable, err)
	}

	return chunks, nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
