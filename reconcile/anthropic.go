package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"bitbucket.org/mmdatafocus/ocr_backend/config"
	"bitbucket.org/mmdatafocus/ocr_backend/utils"
)

const disambiguationSystemPrompt = "You match noisy OCR output against a fixed list of allowed values. " +
	"Reply with exactly one candidate value from the list, verbatim, or the single token NONE if no candidate fits. " +
	"Never reply with anything else."

// ClaudeDisambiguator asks Claude to pick among fuzzy candidates. It only
// ever sees the scored candidate list, never the full vocabulary.
type ClaudeDisambiguator struct {
	client anthropic.Client
	model  string
}

func NewClaudeDisambiguator() (*ClaudeDisambiguator, error) {
	apiKey := config.GetAnthropicAPIKey()
	if apiKey == "" {
		return nil, utils.NewValidationError("ANTHROPIC_API_KEY is not set")
	}

	return &ClaudeDisambiguator{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  config.GetDisambiguationModel(),
	}, nil
}

func (d *ClaudeDisambiguator) Disambiguate(ctx context.Context, raw, fieldName string, candidates []Candidate) (string, error) {
	message, err := d.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(d.model),
		MaxTokens: 64,
		System: []anthropic.TextBlockParam{
			{Text: disambiguationSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildDisambiguationPrompt(raw, fieldName, candidates))),
		},
	})
	if err != nil {
		return "", utils.NewExternalServiceError("anthropic", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return strings.TrimSpace(block.Text), nil
		}
	}
	return "", utils.NewExternalServiceError("anthropic", fmt.Errorf("no text content in response"))
}

func buildDisambiguationPrompt(raw, fieldName string, candidates []Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Field: %s\n", fieldName)
	fmt.Fprintf(&b, "Extracted value: %q\n\n", raw)
	b.WriteString("Candidates (value, label, similarity score):\n")
	for _, candidate := range candidates {
		fmt.Fprintf(&b, "- %s | %s | %d\n", candidate.Value, candidate.Label, candidate.Score)
	}
	b.WriteString("\nReply with one candidate value or NONE.")
	return b.String()
}
