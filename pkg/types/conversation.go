// Package types holds the data model shared across the server: conversations,
// messages, todos, users/roles/departments, skills, MCP server configs, and
// the ephemeral per-turn context.
package types

// Conversation is a single chat thread owned by one user.
type Conversation struct {
	ID          string           `json:"id"`
	OwnerUserID string           `json:"ownerUserID"`
	Title       string           `json:"title,omitempty"`
	CreatedAt   int64            `json:"createdAt"`
	UpdatedAt   int64            `json:"updatedAt"`
	Archived    bool             `json:"archived"`
	Starred     bool             `json:"starred"`
	State       ConversationState `json:"state"`
}

// ConversationState is the structured blob persisted alongside a conversation:
// the current todo list and upload bookkeeping.
type ConversationState struct {
	Todos       []Todo   `json:"todos,omitempty"`
	UploadPaths []string `json:"uploadPaths,omitempty"`
}

// IsDefaultTitle reports whether the conversation still has a placeholder
// title and is eligible for background title generation.
func (c *Conversation) IsDefaultTitle() bool {
	return c.Title == "" || c.Title == "New conversation"
}
