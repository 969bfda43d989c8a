package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
	"github.com/xhad/docchat/pkg/store"
)

type PipelineConfig struct {
	TopK     int
	Quota    models.QuotaPolicy
	LockWait time.Duration
}

// Pipeline runs one conversational turn end to end: quota gate, transcript
// append, namespace ingestion on first use, history-aware retrieval and
// answer synthesis. Submissions for the same conversation are serialized
// through a per-conversation lock so the gate and the append are atomic
// with respect to each other.
type Pipeline struct {
	config      PipelineConfig
	transcript  types.TranscriptStore
	retriever   types.Retriever
	rewriter    types.Rewriter
	synthesizer types.Synthesizer
	locks       *store.KeyLock
}

func NewPipeline(config PipelineConfig, transcript types.TranscriptStore, retriever types.Retriever, rewriter types.Rewriter, synthesizer types.Synthesizer) *Pipeline {
	if config.TopK == 0 {
		config.TopK = 4
	}
	if config.Quota.FreeLimit == 0 {
		config.Quota.FreeLimit = 3
	}
	if config.Quota.PaidLimit == 0 {
		config.Quota.PaidLimit = 100
	}
	if config.LockWait == 0 {
		config.LockWait = 10 * time.Second
	}

	return &Pipeline{
		config:      config,
		transcript:  transcript,
		retriever:   retriever,
		rewriter:    rewriter,
		synthesizer: synthesizer,
		locks:       store.NewKeyLock(),
	}
}

// SubmitQuestion asks one question against a document's conversation and
// returns the synthesized answer. A failure after the human message has
// been appended leaves that message in the transcript; the caller may
// retry, which re-enters the quota gate.
func (p *Pipeline) SubmitQuestion(ctx context.Context, ownerID, documentID, question string, tier models.Tier) (string, error) {
	release, err := p.locks.Acquire(ctx, conversationKey(ownerID, documentID), p.config.LockWait)
	if err != nil {
		return "", err
	}
	defer release()

	count, err := p.transcript.CountHumanMessages(ctx, ownerID, documentID)
	if err != nil {
		return "", fmt.Errorf("failed to count questions: %w", err)
	}

	ceiling := p.config.Quota.CeilingFor(tier)
	if count >= ceiling {
		return "", &models.QuotaExceededError{Ceiling: ceiling}
	}

	// History up to and including the prior turn, read before the new
	// question is appended.
	history, err := p.transcript.Messages(ctx, ownerID, documentID)
	if err != nil {
		return "", fmt.Errorf("failed to read history: %w", err)
	}

	if _, err := p.transcript.AppendMessage(ctx, models.ChatMessage{
		OwnerID:    ownerID,
		DocumentID: documentID,
		Role:       models.RoleHuman,
		Content:    question,
	}); err != nil {
		return "", fmt.Errorf("failed to append question: %w", err)
	}

	if err := p.retriever.EnsureNamespace(ctx, documentID); err != nil {
		return "", err
	}

	query, err := p.rewriter.Rewrite(ctx, history, question)
	if err != nil {
		return "", err
	}

	chunks, err := p.retriever.Retrieve(ctx, documentID, query, p.config.TopK)
	if err != nil {
		return "", err
	}

	answer, err := p.synthesizer.Synthesize(ctx, history, question, chunks)
	if err != nil {
		return "", err
	}

	if _, err := p.transcript.AppendMessage(ctx, models.ChatMessage{
		OwnerID:    ownerID,
		DocumentID: documentID,
		Role:       models.RoleAssistant,
		Content:    answer,
	}); err != nil {
		return "", fmt.Errorf("failed to append answer: %w", err)
	}

	return answer, nil
}

func conversationKey(ownerID, documentID string) string {
	return ownerID + "/" + documentID
}
