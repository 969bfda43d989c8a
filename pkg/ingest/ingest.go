package ingest

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"
	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
)

type IngestConfig struct {
	ChunkSize    int // max characters per chunk
	ChunkOverlap int // characters shared with the previous chunk
}

// Service turns a document into its ordered (chunk, embedding) pairs.
// It has no side effects beyond the fetch and embedding calls; writing
// to the vector index is the namespace manager's job.
type Service struct {
	config   IngestConfig
	source   types.DocumentSource
	embedder types.Embedder
	splitter textsplitter.RecursiveCharacter
}

func NewWithConfig(config IngestConfig, source types.DocumentSource, embedder types.Embedder) *Service {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}

	return &Service{
		config:   config,
		source:   source,
		embedder: embedder,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(config.ChunkSize),
			textsplitter.WithChunkOverlap(config.ChunkOverlap),
		),
	}
}

func (s *Service) Ingest(ctx context.Context, documentID string) ([]models.ChunkEmbedding, error) {
	content, mimeType, err := s.source.Fetch(ctx, documentID)
	if err != nil {
		return nil, err
	}

	text, err := ExtractText(ctx, content, mimeType)
	if err != nil {
		return nil, err
	}

	chunks, err := s.SplitText(text)
	if err != nil {
		return nil, err
	}

	vectors, err := s.embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d chunks",
			models.ErrEmbedding, len(vectors), len(chunks))
	}

	pairs := make([]models.ChunkEmbedding, len(chunks))
	for i, chunk := range chunks {
		pairs[i] = models.ChunkEmbedding{
			Chunk: models.Chunk{
				DocumentID: documentID,
				Index:      i,
				Content:    chunk,
			},
			Embedding: vectors[i],
		}
	}

	return pairs, nil
}

// SplitText chunks extracted text with the configured size and overlap.
// Boundaries are deterministic for the same input and configuration.
func (s *Service) SplitText(text string) ([]string, error) {
	chunks, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDocumentParse, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks produced", models.ErrDocumentParse)
	}
	return chunks, nil
}
