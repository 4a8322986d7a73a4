package chat

import (
	"context"

	"github.com/physical-ai/tutor-api/internal/domain"
	"github.com/physical-ai/tutor-api/internal/repository/history"
)

// Searcher runs nearest-neighbor search over indexed textbook chunks.
// chapter=0 means whole-book search.
type Searcher interface {
	Search(ctx context.Context, vector []float32, topK, chapter int) ([]domain.SearchHit, error)
}

// Generator produces one completion for a fully assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// HistoryStore persists and lists question/answer exchanges.
type HistoryStore interface {
	SaveInteraction(ctx context.Context, in *history.Interaction) error
	ListBySession(ctx context.Context, userID, sessionID string, limit int) ([]history.Interaction, error)
}

// ProfileStore resolves a learner's declared background.
// Returns domain.ErrNoProfile when the user has none.
type ProfileStore interface {
	GetBackground(ctx context.Context, userID string) (domain.Background, error)
}
