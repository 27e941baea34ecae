package types

// LLMModelConfig is an admin-managed row describing one selectable LLM model.
type LLMModelConfig struct {
	ID         string  `json:"id"`
	ProviderID string  `json:"providerID"`
	ModelID    string  `json:"modelID"`
	Name       string  `json:"name"`
	IsSmall    bool    `json:"isSmall"` // eligible for TitleGenerator / cheap tasks
	IsActive   bool    `json:"isActive"`
	InputPrice float64 `json:"inputPrice,omitempty"`
	OutputPrice float64 `json:"outputPrice,omitempty"`
}

// ImageConfig describes the sandbox container image surfaced verbatim into
// the dynamic system prompt so the model knows what is available.
type ImageConfig struct {
	Name         string   `json:"name"`
	Packages     []string `json:"packages,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}
