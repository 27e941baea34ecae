package types

// Model describes one LLM model a provider adapter exposes, including its
// capabilities and pricing. This is distinct from LLMModelConfig: Model is
// the provider's own hardcoded catalog entry, LLMModelConfig is the
// admin-managed row selecting and tagging one for use (is_small, is_active).
type Model struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	ProviderID        string       `json:"providerID"`
	ContextLength     int          `json:"contextLength"`
	MaxOutputTokens   int          `json:"maxOutputTokens,omitempty"`
	SupportsTools     bool         `json:"supportsTools"`
	SupportsVision    bool         `json:"supportsVision"`
	SupportsReasoning bool         `json:"supportsReasoning,omitempty"`
	InputPrice        float64      `json:"inputPrice,omitempty"`
	OutputPrice       float64      `json:"outputPrice,omitempty"`
	Options           ModelOptions `json:"options,omitempty"`
}

// ModelOptions holds model-specific tuning knobs.
type ModelOptions struct {
	Temperature    *float64 `json:"temperature,omitempty"`
	TopP           *float64 `json:"topP,omitempty"`
	PromptCaching  bool     `json:"promptCaching,omitempty"`
	ExtendedOutput bool     `json:"extendedOutput,omitempty"`
}
