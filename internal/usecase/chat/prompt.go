package chat

import (
	"fmt"
	"strings"

	"github.com/physical-ai/tutor-api/internal/domain"
)

const promptTemplate = `You are an expert AI assistant for the "Physical AI & Humanoid Robotics" textbook.

%s

Context: %s

Guidelines:
- Answer ONLY based on the context.
- Cite chapter numbers if available.
- Keep it concise.

User Question: %s`

// buildContext joins retrieved chunk contents, preserving retrieval order.
func buildContext(hits []domain.SearchHit) string {
	parts := make([]string, len(hits))
	for i, hit := range hits {
		parts[i] = hit.Payload.Content
	}
	return strings.Join(parts, "\n")
}

// buildPrompt assembles the grounded generation prompt. The background
// instruction steers emphasis; the guidelines pin answers to the context.
func buildPrompt(bg domain.Background, contextText, message string) string {
	return fmt.Sprintf(promptTemplate, bg.Instruction(), contextText, message)
}
