// Package titles suggests a short title for a new note.
package titles

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/prompts"
	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/config"
)

// MaxLength is the longest title, in characters, a generator returns.
const MaxLength = 50

// Generator suggests a title for note content.
type Generator interface {
	Generate(ctx context.Context, content string) (string, error)
}

const titleTemplate = `Generiere einen kurzen, prägnanten Titel (maximal 50 Zeichen) für folgenden Text:

{{.text}}

Titel:`

// LLMGenerator asks a language model for a title.
type LLMGenerator struct {
	llm         llms.Model
	prompt      prompts.PromptTemplate
	temperature float64
}

// NewLLMGenerator returns a generator that prompts llm at the given temperature.
func NewLLMGenerator(llm llms.Model, temperature float64) *LLMGenerator {
	return &LLMGenerator{
		llm:         llm,
		prompt:      prompts.NewPromptTemplate(titleTemplate, []string{"text"}),
		temperature: temperature,
	}
}

// NewOpenAIGenerator returns an LLMGenerator backed by an OpenAI chat model. The API key
// is read from OPENAI_API_KEY.
func NewOpenAIGenerator(model string, temperature float64) (*LLMGenerator, error) {
	llm, err := openai.New(openai.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}
	return NewLLMGenerator(llm, temperature), nil
}

// Generate returns the model's title for content, cleaned up and capped at MaxLength.
func (g *LLMGenerator) Generate(ctx context.Context, content string) (string, error) {
	prompt, err := g.prompt.Format(map[string]any{"text": content})
	if err != nil {
		return "", fmt.Errorf("failed to format title prompt: %w", err)
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt,
		llms.WithTemperature(g.temperature),
		llms.WithMaxTokens(60),
	)
	if err != nil {
		return "", fmt.Errorf("title generation failed: %w", err)
	}
	title := Clean(out)
	if title == "" {
		return "", fmt.Errorf("title generation returned no title")
	}
	return title, nil
}

// FirstLine uses the first non-empty line of the content as the title.
type FirstLine struct{}

// Generate returns the first non-empty line of content, capped at MaxLength. Empty
// content yields an empty title.
func (FirstLine) Generate(_ context.Context, content string) (string, error) {
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return truncate(line, MaxLength), nil
		}
	}
	return "", nil
}

// Fallback tries Primary and uses Secondary when it fails.
type Fallback struct {
	Primary   Generator
	Secondary Generator
	Logger    *zap.Logger
}

// Generate implements Generator.
func (f *Fallback) Generate(ctx context.Context, content string) (string, error) {
	title, err := f.Primary.Generate(ctx, content)
	if err == nil {
		return title, nil
	}
	if ctx.Err() != nil {
		return "", err
	}
	if f.Logger != nil {
		f.Logger.Warn("title generation failed, using fallback", zap.Error(err))
	}
	return f.Secondary.Generate(ctx, content)
}

// New builds the generator selected by cfg. The OpenAI generator falls back to the first
// line of the note when the model cannot be reached or no API key is set.
func New(cfg config.TitleConfig, logger *zap.Logger) Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Provider == "firstline" {
		return FirstLine{}
	}
	g, err := NewOpenAIGenerator(cfg.Model, cfg.TemperatureOrDefault())
	if err != nil {
		logger.Warn("title model unavailable, using first line of note", zap.Error(err))
		return FirstLine{}
	}
	return &Fallback{Primary: g, Secondary: FirstLine{}, Logger: logger}
}

// Clean normalizes a model answer: first non-empty line only, no "Titel:"/"Title:" label,
// no surrounding quotes, at most MaxLength characters.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	for _, label := range []string{"Titel:", "Title:"} {
		if len(s) >= len(label) && strings.EqualFold(s[:len(label)], label) {
			s = strings.TrimSpace(s[len(label):])
		}
	}
	s = strings.Trim(s, "\"'“”„«»*")
	return truncate(strings.TrimSpace(s), MaxLength)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)[:n]
	return strings.TrimSpace(string(r))
}
