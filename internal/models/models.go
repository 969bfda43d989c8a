package models

import "time"

// Tier is the owner's subscription tier, supplied by the identity layer.
type Tier string

const (
	TierFree Tier = "free"
	TierPaid Tier = "paid"
)

// Document identifies an uploaded source document. The upload subsystem owns
// the record; this core only ever reads it.
type Document struct {
	ID          string
	OwnerID     string
	Title       string
	DownloadURL string
}

// Chunk is one ordered fragment of a document's extracted text. Index is
// stable within the document and used as the retrieval tie-breaker.
type Chunk struct {
	DocumentID string
	Index      int
	Content    string
}

// ChunkEmbedding pairs a chunk with its embedding vector.
type ChunkEmbedding struct {
	Chunk
	Embedding []float32
}

type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn in a conversation transcript. Transcripts are
// append-only; CreatedAt is assigned by the store.
type ChatMessage struct {
	ID         string
	OwnerID    string
	DocumentID string
	Role       Role
	Content    string
	CreatedAt  time.Time
}

// QuotaPolicy caps the number of human-authored questions per conversation.
type QuotaPolicy struct {
	FreeLimit int
	PaidLimit int
}

func (q QuotaPolicy) CeilingFor(tier Tier) int {
	if tier == TierPaid {
		return q.PaidLimit
	}
	return q.FreeLimit
}
