package llm

import (
	"google.golang.org/genai"

	"github.com/rahulvarma2468/ai-voice-agent/internal/persona"
)

const (
	defaultModel          = "gemini-2.0-flash"
	defaultTemperature    = 0.7
	defaultTopP           = 0.95
	defaultTopK           = 40
	defaultMaxTokens      = 2048
	defaultTimeoutSeconds = 30
)

// GeminiConfig holds configuration for the Gemini adapter.
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int
	TimeoutSeconds  int
}

// GeminiHardcodedConfig carries the settings that are not tunable per
// deployment: safety thresholds, the persona system prompt, and in-character
// fallback replies used when the backend misbehaves.
var GeminiHardcodedConfig = struct {
	SafetySettings []*genai.SafetySetting
	SystemPrompt   string
	Fallbacks      []string
}{
	SafetySettings: []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	},
	SystemPrompt: persona.SystemPrompt,
	Fallbacks: []string{
		persona.ErrorResponse(persona.ErrorGeneration),
		persona.ErrorResponse(persona.ErrorGeneral),
	},
}
