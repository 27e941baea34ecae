// Package config loads process-level configuration: default model
// selection, LLM provider credentials, and subagent definitions.
//
// # Configuration loading
//
// Load merges configuration from three sources, in priority order:
//
//  1. Global config (~/.config/agentserver/agentserver.json[c])
//  2. Project config (<directory>/.agentserver/agentserver.json[c])
//  3. Environment variables
//
// Later sources override earlier ones field-by-field; map fields
// (Provider, Agent) are merged key-by-key rather than replaced wholesale.
//
// # Supported formats
//
// Both agentserver.json and agentserver.jsonc (JSON with // and /* */
// comments stripped before parsing) are accepted.
//
// # Environment variable overrides
//
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY, GOOGLE_API_KEY, AWS_ACCESS_KEY_ID —
//     provider credentials, applied only where the config didn't already
//     set one.
//   - AGENTSERVER_MODEL — overrides Model.
//   - AGENTSERVER_SMALL_MODEL — overrides SmallModel.
//
// # Path management
//
// Paths follows the XDG Base Directory layout (Data/Config/Cache/State),
// each rooted at an agentserver subdirectory, with Windows falling back to
// %APPDATA%.
package config
