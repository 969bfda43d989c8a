package models

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the pipeline. Callers classify failures with
// errors.Is; wrapped detail carries the backend cause.
var (
	ErrDocumentFetch       = errors.New("document fetch failed")
	ErrDocumentParse       = errors.New("document parse failed")
	ErrEmbedding           = errors.New("embedding failed")
	ErrIndexUnavailable    = errors.New("vector index unavailable")
	ErrNamespaceNotReady   = errors.New("namespace not ready")
	ErrSynthesis           = errors.New("answer synthesis failed")
	ErrConcurrencyConflict = errors.New("conversation is busy")
)

// QuotaExceededError is a terminal business outcome, not a fault. It carries
// the ceiling so the user-visible message can name it.
type QuotaExceededError struct {
	Ceiling int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("question limit of %d reached for this document", e.Ceiling)
}
