package store

import (
	"context"
	"fmt"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
	"golang.org/x/sync/singleflight"
)

// NamespaceManager guarantees each document is ingested into the vector
// index at most once. The existence check against the namespace listing is
// not atomic with the write, so first-time ingestions for the same document
// are deduplicated through a singleflight group: one caller performs the
// ingestion, concurrent callers wait on its result, and the flight is
// released on failure so a later retry is not blocked.
type NamespaceManager struct {
	index    types.VectorIndex
	ingestor types.Ingestor
	embedder types.Embedder
	flights  singleflight.Group
}

func NewNamespaceManager(index types.VectorIndex, ingestor types.Ingestor, embedder types.Embedder) *NamespaceManager {
	return &NamespaceManager{
		index:    index,
		ingestor: ingestor,
		embedder: embedder,
	}
}

// EnsureNamespace makes the document's namespace ready, ingesting it on
// first use. Calling it again for an existing namespace is a no-op read.
func (m *NamespaceManager) EnsureNamespace(ctx context.Context, documentID string) error {
	exists, err := m.hasNamespace(ctx, documentID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err, _ = m.flights.Do(documentID, func() (interface{}, error) {
		// Re-check inside the flight: a concurrent caller may have
		// finished ingesting between our check and now.
		exists, err := m.hasNamespace(ctx, documentID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, nil
		}

		pairs, err := m.ingestor.Ingest(ctx, documentID)
		if err != nil {
			return nil, err
		}

		if err := m.index.Upsert(ctx, documentID, pairs); err != nil {
			return nil, err
		}
		return nil, nil
	})

	return err
}

// Retrieve embeds the query and returns the top-k chunks from the
// document's namespace, nearest first.
func (m *NamespaceManager) Retrieve(ctx context.Context, documentID, query string, k int) ([]models.Chunk, error) {
	exists, err := m.hasNamespace(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: document %s has not been ingested", models.ErrNamespaceNotReady, documentID)
	}

	vector, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	return m.index.Query(ctx, documentID, vector, k)
}

func (m *NamespaceManager) hasNamespace(ctx context.Context, documentID string) (bool, error) {
	namespaces, err := m.index.ListNamespaces(ctx)
	if err != nil {
		return false, err
	}
	for _, ns := range namespaces {
		if ns == documentID {
			return true, nil
		}
	}
	return false, nil
}
