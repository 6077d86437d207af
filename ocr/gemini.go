package ocr

import (
	"context"

	"google.golang.org/genai"

	"bitbucket.org/mmdatafocus/ocr_backend/config"
	"bitbucket.org/mmdatafocus/ocr_backend/utils"
)

// Extractor issues one extraction call per composed prompt against a
// vision model and returns the raw reply text. Implementations do no
// response parsing; that is the normalizer's job.
type Extractor interface {
	Extract(ctx context.Context, image []byte, mimeType string, prompt string) (string, error)
}

// GeminiExtractor calls the Gemini API for document field extraction.
type GeminiExtractor struct {
	client *genai.Client
	model  string
}

func NewGeminiExtractor(ctx context.Context) (*GeminiExtractor, error) {
	apiKey := config.GetGeminiAPIKey()
	if apiKey == "" {
		return nil, utils.NewValidationError("GEMINI_API_KEY is not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, utils.NewExternalServiceError("gemini", err)
	}

	return &GeminiExtractor{
		client: client,
		model:  config.GetExtractionModel(),
	}, nil
}

func (e *GeminiExtractor) Extract(ctx context.Context, image []byte, mimeType string, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(image, mimeType),
		}, genai.RoleUser),
	}

	result, err := e.client.Models.GenerateContent(ctx, e.model, contents, nil)
	if err != nil {
		return "", utils.NewExternalServiceError("gemini", err)
	}

	text := result.Text()
	if text == "" {
		return "", utils.NewExternalServiceError("gemini", utils.NewValidationError("empty model response"))
	}
	return text, nil
}
