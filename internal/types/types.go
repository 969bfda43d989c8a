package types

import (
	"context"

	"github.com/xhad/docchat/internal/models"
)

// DocumentSource fetches a document's raw content and declared mime type.
// Owned by the upload/storage subsystem; this core only reads through it.
type DocumentSource interface {
	Fetch(ctx context.Context, documentID string) (content []byte, mimeType string, err error)
}

// Embedder turns text into fixed-length vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Ingestor produces the ordered (chunk, embedding) pairs for a document.
// Pure computation; it never writes to the vector index itself.
type Ingestor interface {
	Ingest(ctx context.Context, documentID string) ([]models.ChunkEmbedding, error)
}

// VectorIndex is the similarity-search backend, partitioned by namespace.
type VectorIndex interface {
	ListNamespaces(ctx context.Context) ([]string, error)
	Upsert(ctx context.Context, namespace string, pairs []models.ChunkEmbedding) error
	Query(ctx context.Context, namespace string, vector []float32, k int) ([]models.Chunk, error)
}

// Retriever hands back the best-matching chunks for a document's namespace,
// ensuring the namespace has been ingested first.
type Retriever interface {
	EnsureNamespace(ctx context.Context, documentID string) error
	Retrieve(ctx context.Context, documentID, query string, k int) ([]models.Chunk, error)
}

// Rewriter produces a standalone search query from history plus a question.
type Rewriter interface {
	Rewrite(ctx context.Context, history []models.ChatMessage, question string) (string, error)
}

// Synthesizer produces a grounded answer from history, question and context.
type Synthesizer interface {
	Synthesize(ctx context.Context, history []models.ChatMessage, question string, chunks []models.Chunk) (string, error)
}

// TranscriptStore is the append-only per-conversation message log. A
// conversation is identified by the (owner, document) pair.
type TranscriptStore interface {
	AppendMessage(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, error)
	Messages(ctx context.Context, ownerID, documentID string) ([]models.ChatMessage, error)
	CountHumanMessages(ctx context.Context, ownerID, documentID string) (int, error)
}
