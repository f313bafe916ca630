package language

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"basegraph.app/copilot-survey/common/llm"
)

// Supported lists the locales a survey template exists for.
var Supported = []string{"en", "es", "pt", "fr"}

// Detector returns the ISO 639-1 code of the dominant language in text.
type Detector interface {
	Detect(ctx context.Context, text string) (string, error)
}

type staticDetector struct {
	locale string
}

// NewStaticDetector always answers locale. Used when no LLM is configured.
func NewStaticDetector(locale string) Detector {
	return &staticDetector{locale: locale}
}

func (d *staticDetector) Detect(context.Context, string) (string, error) {
	return d.locale, nil
}

const (
	maxSampleChars = 2000

	systemPrompt = `You identify the natural language of pull request text written by software engineers.
Ignore code, identifiers, file paths and URLs. Answer with the ISO 639-1 code of the dominant human language, lowercase.
If the text has no natural language, answer "und".`
)

type detection struct {
	Code string `json:"code" jsonschema:"description=ISO 639-1 language code or und"`
}

type llmDetector struct {
	client llm.Client
}

// NewLLMDetector detects language with a structured-output chat call.
func NewLLMDetector(client llm.Client) Detector {
	return &llmDetector{client: client}
}

func (d *llmDetector) Detect(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("no text to detect")
	}
	if len(text) > maxSampleChars {
		text = text[:maxSampleChars]
	}

	var out detection
	if _, err := d.client.Chat(ctx, llm.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   text,
		SchemaName:   "language_detection",
		Schema:       llm.GenerateSchema[detection](),
		MaxTokens:    16,
		Temperature:  llm.Temp(0),
	}, &out); err != nil {
		return "", fmt.Errorf("detecting language: %w", err)
	}

	return strings.ToLower(strings.TrimSpace(out.Code)), nil
}

// Resolve picks the template locale for text, falling back to fallback
// when detection fails or returns a language without a template.
func Resolve(ctx context.Context, d Detector, text, fallback string) string {
	code, err := d.Detect(ctx, text)
	if err != nil {
		slog.WarnContext(ctx, "language detection failed, using default locale",
			"error", err,
			"locale", fallback)
		return fallback
	}

	for _, s := range Supported {
		if code == s {
			return code
		}
	}

	slog.DebugContext(ctx, "unsupported language detected, using default locale",
		"detected", code,
		"locale", fallback)
	return fallback
}
