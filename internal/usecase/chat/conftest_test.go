package chat

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/physical-ai/tutor-api/internal/domain"
	"github.com/physical-ai/tutor-api/internal/repository/history"
)

type mockEmbedder struct {
	result   domain.EmbeddingResult
	err      error
	gotTexts []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.gotTexts = append(m.gotTexts, text)
	return m.result, m.err
}

type mockSearcher struct {
	hits       []domain.SearchHit
	err        error
	gotTopK    int
	gotChapter int
}

func (m *mockSearcher) Search(_ context.Context, _ []float32, topK, chapter int) ([]domain.SearchHit, error) {
	m.gotTopK = topK
	m.gotChapter = chapter
	return m.hits, m.err
}

type mockGenerator struct {
	text      string
	err       error
	gotPrompt string
}

func (m *mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.gotPrompt = prompt
	return m.text, m.err
}

type mockHistory struct {
	saved   []*history.Interaction
	saveErr error
	items   []history.Interaction
	listErr error
}

func (m *mockHistory) SaveInteraction(_ context.Context, in *history.Interaction) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, in)
	return nil
}

func (m *mockHistory) ListBySession(_ context.Context, _, _ string, _ int) ([]history.Interaction, error) {
	return m.items, m.listErr
}

type mockProfiles struct {
	bg  domain.Background
	err error
}

func (m *mockProfiles) GetBackground(_ context.Context, _ string) (domain.Background, error) {
	return m.bg, m.err
}

type testDeps struct {
	embedder  *mockEmbedder
	searcher  *mockSearcher
	generator *mockGenerator
	histories *mockHistory
	profiles  *mockProfiles
}

func newTestService(t *testing.T) (*Service, *testDeps) {
	t.Helper()
	d := &testDeps{
		embedder:  &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}},
		searcher:  &mockSearcher{},
		generator: &mockGenerator{text: "generated answer"},
		histories: &mockHistory{},
		profiles:  &mockProfiles{err: domain.ErrNoProfile},
	}
	svc := New(d.embedder, d.searcher, d.generator, d.histories, d.profiles, 5, Timeouts{}, zap.NewNop())
	return svc, d
}

func hit(chapter int, section, content string, score float64) domain.SearchHit {
	return domain.SearchHit{
		ID:    "id",
		Score: score,
		Payload: domain.Payload{
			Chapter: chapter,
			Section: section,
			Content: content,
		},
	}
}
