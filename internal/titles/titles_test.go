package titles

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"github.com/hyperjump/kioku/internal/config"
)

// fakeModel records the prompt and returns a canned answer.
type fakeModel struct {
	answer  string
	err     error
	prompt  string
	options llms.CallOptions
}

func (m *fakeModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, opts ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, o := range opts {
		o(&m.options)
	}
	if len(msgs) > 0 && len(msgs[0].Parts) > 0 {
		if tc, ok := msgs[0].Parts[0].(llms.TextContent); ok {
			m.prompt = tc.Text
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.answer}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, opts...)
}

func TestLLMGenerator(t *testing.T) {
	m := &fakeModel{answer: "  \"Einkaufsliste für Samstag\"\n"}
	g := NewLLMGenerator(m, 0.7)
	title, err := g.Generate(context.Background(), "Milch, Eier, Brot <3")
	if err != nil {
		t.Fatal(err)
	}
	if title != "Einkaufsliste für Samstag" {
		t.Errorf("title = %q", title)
	}
	if !strings.Contains(m.prompt, "Milch, Eier, Brot <3") || !strings.Contains(m.prompt, "maximal 50 Zeichen") {
		t.Errorf("prompt = %q", m.prompt)
	}
	if m.options.Temperature != 0.7 {
		t.Errorf("temperature = %v", m.options.Temperature)
	}
}

func TestLLMGenerator_errors(t *testing.T) {
	if _, err := NewLLMGenerator(&fakeModel{err: errors.New("quota")}, 0).Generate(context.Background(), "x"); err == nil {
		t.Error("expected model error")
	}
	if _, err := NewLLMGenerator(&fakeModel{answer: "  \n"}, 0).Generate(context.Background(), "x"); err == nil {
		t.Error("expected error for empty answer")
	}
}

func TestClean(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Titel: Gartenplanung", "Gartenplanung"},
		{"title: Garden", "Garden"},
		{"„Reise nach Rom“", "Reise nach Rom"},
		{"**Bold**\nexplanation", "Bold"},
		{strings.Repeat("ä", 60), strings.Repeat("ä", 50)},
	}
	for _, tt := range tests {
		if got := Clean(tt.in); got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFirstLine(t *testing.T) {
	tests := []struct{ in, want string }{
		{"\n\n  Hello world  \nsecond", "Hello world"},
		{"", ""},
		{strings.Repeat("word ", 20), strings.TrimSpace(strings.Repeat("word ", 10))},
	}
	for _, tt := range tests {
		got, err := FirstLine{}.Generate(context.Background(), tt.in)
		if err != nil || got != tt.want {
			t.Errorf("FirstLine(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestFallback(t *testing.T) {
	f := &Fallback{Primary: NewLLMGenerator(&fakeModel{err: errors.New("offline")}, 0), Secondary: FirstLine{}}
	got, err := f.Generate(context.Background(), "first line\nrest")
	if err != nil || got != "first line" {
		t.Errorf("Generate = %q, %v", got, err)
	}
}

func TestNew(t *testing.T) {
	if _, ok := New(config.TitleConfig{Provider: "firstline"}, nil).(FirstLine); !ok {
		t.Error("firstline provider should return FirstLine")
	}
	t.Setenv("OPENAI_API_KEY", "")
	if _, ok := New(config.TitleConfig{Provider: "openai", Model: "gpt-3.5-turbo"}, nil).(FirstLine); !ok {
		t.Error("openai without key should fall back to FirstLine")
	}
}
