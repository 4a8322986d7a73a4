// Package translate renders answers into supported reading languages.
package translate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/physical-ai/tutor-api/internal/domain"
)

// LanguageUrdu is the only supported target language.
const LanguageUrdu = "ur"

const promptTemplate = `Translate the following text to Urdu (اردو) but keep technical terms like
ROS 2, NVIDIA, Jetson Orin, Python, and Linux in English.

Text: %s

Urdu Translation:`

// Generator produces one completion for a fully assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Service translates answer text via the generation provider.
type Service struct {
	generator Generator
	logger    *zap.Logger
}

// New creates a translation service.
func New(generator Generator, logger *zap.Logger) *Service {
	return &Service{generator: generator, logger: logger}
}

// Supported reports whether lang is a valid translation target.
func Supported(lang string) bool {
	return lang == LanguageUrdu
}

// Translate renders text into the target language. Technical vocabulary
// stays in English per the prompt contract.
func (s *Service) Translate(ctx context.Context, text, lang string) (string, error) {
	if !Supported(lang) {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedLanguage, lang)
	}

	out, err := s.generator.Generate(ctx, fmt.Sprintf(promptTemplate, text))
	if err != nil {
		return "", fmt.Errorf("translate text: %w", err)
	}
	return out, nil
}
