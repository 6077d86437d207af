package config

import "os"

// Model defaults. Extraction runs on a vision-capable Gemini model; SELECT
// disambiguation uses a small Claude model because it only ever sees a short
// candidate list, never the document.
const (
	defaultExtractionModel     = "gemini-2.0-flash"
	defaultDisambiguationModel = "claude-3-5-haiku-latest"
)

func GetGeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

func GetExtractionModel() string {
	if m := os.Getenv("EXTRACTION_MODEL"); m != "" {
		return m
	}
	return defaultExtractionModel
}

func GetAnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

func GetDisambiguationModel() string {
	if m := os.Getenv("DISAMBIGUATION_MODEL"); m != "" {
		return m
	}
	return defaultDisambiguationModel
}

func GetUploadDir() string {
	if d := os.Getenv("UPLOAD_DIR"); d != "" {
		return d
	}
	return "uploads"
}
