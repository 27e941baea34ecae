// Package repository is the relational persistence boundary: conversations,
// messages, users, roles, departments, skills, MCP server configs, and LLM
// model configs are all read and written through this interface. The core
// engine never touches SQL directly.
package repository

import (
	"context"

	"github.com/opencode-ai/agentserver/pkg/types"
)

// Repository is the read/write boundary spec.md §2 names. All methods are
// safe for concurrent use.
type Repository interface {
	// Conversations
	CreateConversation(ctx context.Context, c *types.Conversation) error
	GetConversation(ctx context.Context, id string) (*types.Conversation, error)
	UpdateConversationState(ctx context.Context, id string, state types.ConversationState, updatedAt int64) error
	UpdateConversationTitle(ctx context.Context, id string, title string, updatedAt int64) error
	SetConversationArchived(ctx context.Context, id string, archived bool) error
	SetConversationStarred(ctx context.Context, id string, starred bool) error
	ListConversations(ctx context.Context, ownerUserID string) ([]*types.Conversation, error)

	// Messages (ordered by StepOrder within a conversation). Callers are
	// responsible for the ordering invariant: a model row's StepOrder must
	// be inserted, and visible to ListMessages, before any tool-return row
	// carrying one of its ToolCalls' IDs.
	NextStepOrder(ctx context.Context, conversationID string) (int, error)
	InsertMessage(ctx context.Context, m *types.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]*types.Message, error)

	// Users / Roles / Departments (read-only from the core's perspective)
	GetUser(ctx context.Context, id string) (*types.User, error)
	GetRole(ctx context.Context, id string) (*types.Role, error)
	GetRolesForUser(ctx context.Context, userID string) ([]*types.Role, error)
	GetDepartment(ctx context.Context, id string) (*types.Department, error)

	// Skills (admin CRUD mirror of the on-disk catalog; see internal/skills
	// for the authoritative on-disk discovery)
	UpsertSkill(ctx context.Context, s *types.Skill) error
	GetSkill(ctx context.Context, name string) (*types.Skill, error)
	ListActiveSkills(ctx context.Context) ([]*types.Skill, error)

	// MCP server configs
	UpsertMCPServerConfig(ctx context.Context, cfg *types.MCPServerConfig) error
	DeleteMCPServerConfig(ctx context.Context, name string) error
	ListActiveMCPServerConfigs(ctx context.Context) ([]*types.MCPServerConfig, error)

	// LLM model configs
	ListActiveModelConfigs(ctx context.Context) ([]*types.LLMModelConfig, error)
	GetDefaultSmallModel(ctx context.Context) (*types.LLMModelConfig, error)

	Close() error
}

// WriteNotifier is implemented by a Repository that can notify subscribers
// when permission-relevant rows change, so PermissionResolver's TTL cache can
// be invalidated. Optional: a Repository need not implement it.
type WriteNotifier interface {
	OnPermissionWrite(fn func(userID string))
}
