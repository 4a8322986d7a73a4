package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/physical-ai/tutor-api/internal/domain"
)

func TestAsk_FullPipeline(t *testing.T) {
	svc, d := newTestService(t)
	d.searcher.hits = []domain.SearchHit{
		hit(3, "3.2", "ROS 2 nodes communicate over topics.", 0.91),
		hit(3, "3.4", "Services provide request/response semantics.", 0.84),
	}

	answer, err := svc.Ask(context.Background(), "u1", "s1", domain.Query{Message: "What is a topic?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer.Message != "generated answer" {
		t.Fatalf("unexpected answer: %q", answer.Message)
	}
	if len(answer.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(answer.Sources))
	}
	if answer.Sources[0].Chapter != 3 || answer.Sources[0].Score != 0.91 {
		t.Fatalf("unexpected first source: %+v", answer.Sources[0])
	}
	if d.searcher.gotTopK != 5 {
		t.Fatalf("expected topK=5, got %d", d.searcher.gotTopK)
	}
}

func TestAsk_SelectedTextBiasesRetrieval(t *testing.T) {
	svc, d := newTestService(t)

	q := domain.Query{Message: "Explain this", SelectedText: "inverse kinematics"}
	if _, err := svc.Ask(context.Background(), "u1", "s1", q); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(d.embedder.gotTexts) != 1 {
		t.Fatalf("expected 1 embed call, got %d", len(d.embedder.gotTexts))
	}
	want := "inverse kinematics\n\nQuestion: Explain this"
	if d.embedder.gotTexts[0] != want {
		t.Fatalf("embedded %q, want %q", d.embedder.gotTexts[0], want)
	}
	// The prompt carries only the question, not the highlighted passage.
	if !strings.Contains(d.generator.gotPrompt, "User Question: Explain this") {
		t.Fatalf("prompt missing user question: %q", d.generator.gotPrompt)
	}
}

func TestAsk_ChapterFilterPassedThrough(t *testing.T) {
	svc, d := newTestService(t)

	q := domain.Query{Message: "q", Chapter: 7}
	if _, err := svc.Ask(context.Background(), "u1", "s1", q); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.searcher.gotChapter != 7 {
		t.Fatalf("expected chapter=7, got %d", d.searcher.gotChapter)
	}
}

func TestAsk_InvalidChapter(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Ask(context.Background(), "u1", "s1", domain.Query{Message: "q", Chapter: 14})
	if !errors.Is(err, domain.ErrInvalidChapter) {
		t.Fatalf("expected ErrInvalidChapter, got %v", err)
	}
}

func TestAsk_SourcesCappedAtThree(t *testing.T) {
	svc, d := newTestService(t)
	d.searcher.hits = []domain.SearchHit{
		hit(1, "1.1", "a", 0.9),
		hit(1, "1.2", "b", 0.8),
		hit(2, "2.1", "c", 0.7),
		hit(2, "2.2", "d", 0.6),
		hit(3, "3.1", "e", 0.5),
	}

	answer, err := svc.Ask(context.Background(), "u1", "s1", domain.Query{Message: "q"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(answer.Sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(answer.Sources))
	}
	// All five hits still feed the prompt context.
	for _, content := range []string{"a", "b", "c", "d", "e"} {
		if !strings.Contains(d.generator.gotPrompt, content) {
			t.Fatalf("prompt missing context chunk %q", content)
		}
	}
}

func TestAsk_PersonalizationFromProfile(t *testing.T) {
	svc, d := newTestService(t)
	d.profiles.bg = domain.BackgroundHardware
	d.profiles.err = nil

	if _, err := svc.Ask(context.Background(), "u1", "s1", domain.Query{Message: "q"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(d.generator.gotPrompt, "Focus on hardware") {
		t.Fatalf("expected hardware instruction in prompt: %q", d.generator.gotPrompt)
	}
}

func TestAsk_ProfileErrorDegradesToBalanced(t *testing.T) {
	svc, d := newTestService(t)
	d.profiles.err = errors.New("db down")

	if _, err := svc.Ask(context.Background(), "u1", "s1", domain.Query{Message: "q"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(d.generator.gotPrompt, "balanced coverage") {
		t.Fatalf("expected balanced instruction in prompt: %q", d.generator.gotPrompt)
	}
}

func TestAsk_EmbedFailure(t *testing.T) {
	svc, d := newTestService(t)
	d.embedder.err = errors.New("provider down")

	_, err := svc.Ask(context.Background(), "u1", "s1", domain.Query{Message: "q"})
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestAsk_SearchFailure(t *testing.T) {
	svc, d := newTestService(t)
	d.searcher.err = errors.New("qdrant down")

	_, err := svc.Ask(context.Background(), "u1", "s1", domain.Query{Message: "q"})
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestAsk_GenerateFailure(t *testing.T) {
	svc, d := newTestService(t)
	d.generator.err = errors.New("model error")

	_, err := svc.Ask(context.Background(), "u1", "s1", domain.Query{Message: "q"})
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if len(d.histories.saved) != 0 {
		t.Fatalf("expected no history write on failure, got %d", len(d.histories.saved))
	}
}

func TestAsk_HistoryFailureDoesNotFailAnswer(t *testing.T) {
	svc, d := newTestService(t)
	d.histories.saveErr = errors.New("insert failed")

	answer, err := svc.Ask(context.Background(), "u1", "s1", domain.Query{Message: "q"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer.Message != "generated answer" {
		t.Fatalf("unexpected answer: %q", answer.Message)
	}
}

func TestAsk_RecordsInteraction(t *testing.T) {
	svc, d := newTestService(t)

	q := domain.Query{Message: "q", SelectedText: "sel", Chapter: 2}
	if _, err := svc.Ask(context.Background(), "u1", "s1", q); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.histories.saved) != 1 {
		t.Fatalf("expected 1 history write, got %d", len(d.histories.saved))
	}
	in := d.histories.saved[0]
	if in.UserID != "u1" || in.SessionID != "s1" || in.Chapter != 2 || in.SelectedText != "sel" {
		t.Fatalf("unexpected interaction: %+v", in)
	}
	if in.UserMessage != "q" || in.AssistantMessage != "generated answer" {
		t.Fatalf("unexpected messages: %+v", in)
	}
}
