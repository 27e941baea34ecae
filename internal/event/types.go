package event

import "github.com/opencode-ai/agentserver/pkg/types"

// ConversationCreatedData is the data for conversation.created events.
type ConversationCreatedData struct {
	Conversation *types.Conversation `json:"conversation"`
}

// ConversationUpdatedData is the data for conversation.updated events.
type ConversationUpdatedData struct {
	Conversation *types.Conversation `json:"conversation"`
}

// ConversationDeletedData is the data for conversation.deleted events.
type ConversationDeletedData struct {
	ConversationID string `json:"conversationID"`
}

// MessageCreatedData is the data for message.created events.
type MessageCreatedData struct {
	Message *types.Message `json:"message"`
}

// FileEditedData is the data for file.edited events.
type FileEditedData struct {
	ConversationID string `json:"conversationID"`
	File           string `json:"file"`
}

// PermissionRequiredData is the data for permission.required events.
type PermissionRequiredData struct {
	ID             string   `json:"id"`
	SessionID      string   `json:"sessionID"`
	PermissionType string   `json:"permissionType"`
	Pattern        []string `json:"pattern"`
	Title          string   `json:"title"`
}

// PermissionResolvedData is the data for permission.resolved events.
type PermissionResolvedData struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionID"`
	Granted   bool   `json:"granted"`
}

// SandboxStoppedData is the data for sandbox.stopped events.
type SandboxStoppedData struct {
	ConversationID string `json:"conversationID"`
	Reason         string `json:"reason"`
}

// TitleGeneratedData is the data for title.generated events.
type TitleGeneratedData struct {
	ConversationID string `json:"conversationID"`
	Title          string `json:"title"`
}
