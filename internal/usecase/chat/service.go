// Package chat orchestrates retrieval-augmented answering of textbook questions.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/physical-ai/tutor-api/internal/domain"
	"github.com/physical-ai/tutor-api/internal/repository/history"
)

// Timeouts bound the external calls of one orchestration. Zero disables
// the bound for that stage.
type Timeouts struct {
	Embed    time.Duration
	Search   time.Duration
	Generate time.Duration
}

// Service answers textbook questions via embed, search, and generate.
type Service struct {
	embedder  domain.Embedder
	searcher  Searcher
	generator Generator
	histories HistoryStore
	profiles  ProfileStore
	topK      int
	timeouts  Timeouts
	logger    *zap.Logger
}

// New creates the chat service.
func New(
	embedder domain.Embedder,
	searcher Searcher,
	generator Generator,
	histories HistoryStore,
	profiles ProfileStore,
	topK int,
	timeouts Timeouts,
	logger *zap.Logger,
) *Service {
	return &Service{
		embedder:  embedder,
		searcher:  searcher,
		generator: generator,
		histories: histories,
		profiles:  profiles,
		topK:      topK,
		timeouts:  timeouts,
		logger:    logger,
	}
}

// Ask runs the full pipeline for one question and returns the answer with
// its source attribution. The interaction is recorded best-effort: a
// history write failure is logged but never fails an already generated
// answer.
func (s *Service) Ask(ctx context.Context, userID, sessionID string, q domain.Query) (domain.Answer, error) {
	if !domain.ValidChapter(q.Chapter) {
		return domain.Answer{}, fmt.Errorf("%w: %d", domain.ErrInvalidChapter, q.Chapter)
	}

	bg := s.resolveBackground(ctx, userID)

	embResult, err := s.embedQuery(ctx, q.EffectiveText())
	if err != nil {
		return domain.Answer{}, fmt.Errorf("%w: embed query: %w", domain.ErrGenerationFailed, err)
	}

	hits, err := s.search(ctx, embResult.Embedding, q.Chapter)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("%w: search context: %w", domain.ErrGenerationFailed, err)
	}

	prompt := buildPrompt(bg, buildContext(hits), q.Message)

	text, err := s.generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, domain.ErrGenerationFailed) {
			return domain.Answer{}, err
		}
		return domain.Answer{}, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}

	answer := domain.Answer{
		Message: text,
		Sources: collectSources(hits),
	}

	s.record(ctx, userID, sessionID, q, answer)

	return answer, nil
}

// History lists the exchanges of one session, oldest first.
func (s *Service) History(ctx context.Context, userID, sessionID string, limit int) ([]history.Interaction, error) {
	items, err := s.histories.ListBySession(ctx, userID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return items, nil
}

// resolveBackground degrades to balanced coverage on any profile problem.
// A missing profile is the normal anonymous path, not an error.
func (s *Service) resolveBackground(ctx context.Context, userID string) domain.Background {
	if userID == "" {
		return ""
	}
	bg, err := s.profiles.GetBackground(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNoProfile) {
			s.logger.Warn("Failed to resolve profile, using balanced coverage",
				zap.String("user_id", userID), zap.Error(err))
		}
		return ""
	}
	return bg
}

func (s *Service) embedQuery(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	ctx, cancel := withTimeout(ctx, s.timeouts.Embed)
	defer cancel()
	return s.embedder.Embed(ctx, text) //nolint:wrapcheck // wrapped by the caller with stage context
}

func (s *Service) search(ctx context.Context, vector []float32, chapter int) ([]domain.SearchHit, error) {
	ctx, cancel := withTimeout(ctx, s.timeouts.Search)
	defer cancel()
	return s.searcher.Search(ctx, vector, s.topK, chapter) //nolint:wrapcheck // wrapped by the caller with stage context
}

func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, s.timeouts.Generate)
	defer cancel()
	return s.generator.Generate(ctx, prompt) //nolint:wrapcheck // wrapped by the caller with stage context
}

func (s *Service) record(ctx context.Context, userID, sessionID string, q domain.Query, a domain.Answer) {
	in := &history.Interaction{
		UserID:           userID,
		SessionID:        sessionID,
		Chapter:          q.Chapter,
		SelectedText:     q.SelectedText,
		UserMessage:      q.Message,
		AssistantMessage: a.Message,
		Sources:          a.Sources,
	}
	if err := s.histories.SaveInteraction(ctx, in); err != nil {
		s.logger.Warn("Failed to record interaction",
			zap.String("user_id", userID), zap.String("session_id", sessionID), zap.Error(err))
	}
}

// collectSources attributes the answer to the top hits in retrieval order.
func collectSources(hits []domain.SearchHit) []domain.Source {
	n := len(hits)
	if n > domain.MaxSources {
		n = domain.MaxSources
	}
	sources := make([]domain.Source, n)
	for i := 0; i < n; i++ {
		sources[i] = domain.NewSource(hits[i])
	}
	return sources
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
