package types

// Config is the process-level configuration for an agentserver instance:
// default model selection, provider credentials, subagent definitions, and
// the handful of other settings that apply regardless of tenant. Per-user
// and per-conversation state (roles, skills, MCP servers, LLM model
// catalog) lives in the repository instead, not here.
type Config struct {
	// Model selection
	Model      string `json:"model,omitempty"`       // "anthropic/claude-sonnet-4"
	SmallModel string `json:"small_model,omitempty"` // eligible for TitleGenerator

	// Provider configs, keyed by provider id.
	Provider map[string]ProviderConfig `json:"provider,omitempty"`

	// Agent configs, keyed by agent name, for the subagent dispatcher.
	Agent map[string]AgentConfig `json:"agent,omitempty"`

	// Global permission defaults, overridden per-user by role/department
	// grants resolved through the repository.
	Permission *PermissionConfig `json:"permission,omitempty"`
}

// ProviderConfig holds credentials and model filtering for one LLM
// provider.
type ProviderConfig struct {
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseURL,omitempty"`

	// Npm identifies the provider client implementation to use
	// (e.g. "@ai-sdk/anthropic"), independent of the map key naming it.
	Npm string `json:"npm,omitempty"`

	Model string `json:"model,omitempty"`

	Options *ProviderOptions `json:"options,omitempty"`

	Whitelist []string `json:"whitelist,omitempty"`
	Blacklist []string `json:"blacklist,omitempty"`

	Disable bool `json:"disable,omitempty"`
}

// ProviderOptions holds nested provider options.
type ProviderOptions struct {
	APIKey        string `json:"apiKey,omitempty"`
	BaseURL       string `json:"baseURL,omitempty"`
	EnterpriseURL string `json:"enterpriseUrl,omitempty"`
	Timeout       *int   `json:"timeout,omitempty"` // ms, nil = default, 0 = disabled
}

// AgentConfig configures one subagent definition usable by the task tool.
type AgentConfig struct {
	Model string `json:"model,omitempty"`

	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`

	Prompt string `json:"prompt,omitempty"`

	Tools map[string]bool `json:"tools,omitempty"`

	Permission *PermissionConfig `json:"permission,omitempty"`

	Description string `json:"description,omitempty"`
	Mode        string `json:"mode,omitempty"` // "subagent"|"primary"|"all"

	Disable bool `json:"disable,omitempty"`
}

// PermissionConfig holds default allow/deny/ask settings for sensitive
// tool categories, narrowed per-turn by the resolved role/department grant.
type PermissionConfig struct {
	Edit        string      `json:"edit,omitempty"`
	Bash        interface{} `json:"bash,omitempty"` // string or map[string]string
	WebFetch    string      `json:"webfetch,omitempty"`
	ExternalDir string      `json:"external_directory,omitempty"`
	DoomLoop    string      `json:"doom_loop,omitempty"`
}
