package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/pkg/store"
)

func testConnString(t *testing.T) string {
	t.Helper()
	conn := os.Getenv("TEST_DATABASE_URL")
	if conn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database test")
	}
	return conn
}

func TestVectorStore(t *testing.T) {
	s, err := store.NewWithConfig(store.VectorStoreConfig{
		ConnString: testConnString(t),
		TableName:  "test_chunks",
		VectorDim:  3,
	})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()

	pairs := []models.ChunkEmbedding{
		{Chunk: models.Chunk{DocumentID: "doc-pg", Index: 0, Content: "A is red"}, Embedding: []float32{1, 0, 0}},
		{Chunk: models.Chunk{DocumentID: "doc-pg", Index: 1, Content: "B is blue"}, Embedding: []float32{0, 1, 0}},
		{Chunk: models.Chunk{DocumentID: "doc-pg", Index: 2, Content: "C is green"}, Embedding: []float32{0, 0, 1}},
	}
	require.NoError(t, s.Upsert(ctx, "doc-pg", pairs))

	namespaces, err := s.ListNamespaces(ctx)
	require.NoError(t, err)
	assert.Contains(t, namespaces, "doc-pg")

	chunks, err := s.Query(ctx, "doc-pg", []float32{0.9, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "A is red", chunks[0].Content)

	// Upsert of the same pairs must not duplicate rows
	require.NoError(t, s.Upsert(ctx, "doc-pg", pairs))
	all, err := s.Query(ctx, "doc-pg", []float32{1, 1, 1}, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// Queries never cross namespaces
	other, err := s.Query(ctx, "doc-other", []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}
