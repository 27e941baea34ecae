package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/opencode-ai/agentserver/internal/apierr"
	"github.com/opencode-ai/agentserver/pkg/types"
)

// SQLiteRepository implements Repository on top of modernc.org/sqlite.
type SQLiteRepository struct {
	db *sql.DB

	mu         sync.Mutex
	onWriteFns []func(userID string)
}

// OpenSQLite opens (and creates, if necessary) a SQLite database at path and
// applies the schema.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apierr.Wrap(apierr.RepositoryError, "open sqlite", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer, simplest correct policy
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apierr.Wrap(apierr.RepositoryError, "apply schema", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error { return r.db.Close() }

// DB exposes the underlying *sql.DB for callers (migrations, seed scripts,
// tests) that need direct access beyond the Repository interface.
func (r *SQLiteRepository) DB() *sql.DB { return r.db }

// OnPermissionWrite implements WriteNotifier. Multiple subscribers
// (PermissionResolver, MCPRegistry) may register independently.
func (r *SQLiteRepository) OnPermissionWrite(fn func(userID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onWriteFns = append(r.onWriteFns, fn)
}

func (r *SQLiteRepository) notifyPermissionWrite(userID string) {
	r.mu.Lock()
	fns := append([]func(string){}, r.onWriteFns...)
	r.mu.Unlock()
	for _, fn := range fns {
		fn(userID)
	}
}

// --- Conversations ---------------------------------------------------------

func (r *SQLiteRepository) CreateConversation(ctx context.Context, c *types.Conversation) error {
	stateJSON, err := json.Marshal(c.State)
	if err != nil {
		return apierr.Wrap(apierr.ValidationError, "marshal conversation state", err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO conversations
		(id, owner_user_id, title, created_at, updated_at, archived, starred, state_json)
		VALUES (?,?,?,?,?,?,?,?)`,
		c.ID, c.OwnerUserID, c.Title, c.CreatedAt, c.UpdatedAt, boolInt(c.Archived), boolInt(c.Starred), string(stateJSON))
	if err != nil {
		return apierr.Wrap(apierr.RepositoryError, "insert conversation", err)
	}
	return nil
}

func (r *SQLiteRepository) GetConversation(ctx context.Context, id string) (*types.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, owner_user_id, title, created_at, updated_at, archived, starred, state_json
		FROM conversations WHERE id = ?`, id)
	c := &types.Conversation{}
	var archived, starred int
	var stateJSON string
	if err := row.Scan(&c.ID, &c.OwnerUserID, &c.Title, &c.CreatedAt, &c.UpdatedAt, &archived, &starred, &stateJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, apierr.New(apierr.NotFound, "conversation not found: "+id)
		}
		return nil, apierr.Wrap(apierr.RepositoryError, "get conversation", err)
	}
	c.Archived = archived != 0
	c.Starred = starred != 0
	if err := json.Unmarshal([]byte(stateJSON), &c.State); err != nil {
		return nil, apierr.Wrap(apierr.RepositoryError, "unmarshal conversation state", err)
	}
	return c, nil
}

func (r *SQLiteRepository) UpdateConversationState(ctx context.Context, id string, state types.ConversationState, updatedAt int64) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return apierr.Wrap(apierr.ValidationError, "marshal conversation state", err)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE conversations SET state_json = ?, updated_at = ? WHERE id = ?`, string(stateJSON), updatedAt, id)
	if err != nil {
		return apierr.Wrap(apierr.RepositoryError, "update conversation state", err)
	}
	return requireRowsAffected(res, id)
}

func (r *SQLiteRepository) UpdateConversationTitle(ctx context.Context, id string, title string, updatedAt int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`, title, updatedAt, id)
	if err != nil {
		return apierr.Wrap(apierr.RepositoryError, "update conversation title", err)
	}
	return requireRowsAffected(res, id)
}

func (r *SQLiteRepository) SetConversationArchived(ctx context.Context, id string, archived bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE conversations SET archived = ? WHERE id = ?`, boolInt(archived), id)
	if err != nil {
		return apierr.Wrap(apierr.RepositoryError, "set conversation archived", err)
	}
	return requireRowsAffected(res, id)
}

func (r *SQLiteRepository) SetConversationStarred(ctx context.Context, id string, starred bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE conversations SET starred = ? WHERE id = ?`, boolInt(starred), id)
	if err != nil {
		return apierr.Wrap(apierr.RepositoryError, "set conversation starred", err)
	}
	return requireRowsAffected(res, id)
}

func (r *SQLiteRepository) ListConversations(ctx context.Context, ownerUserID string) ([]*types.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, owner_user_id, title, created_at, updated_at, archived, starred, state_json
		FROM conversations WHERE owner_user_id = ? ORDER BY updated_at DESC`, ownerUserID)
	if err != nil {
		return nil, apierr.Wrap(apierr.RepositoryError, "list conversations", err)
	}
	defer rows.Close()

	var out []*types.Conversation
	for rows.Next() {
		c := &types.Conversation{}
		var archived, starred int
		var stateJSON string
		if err := rows.Scan(&c.ID, &c.OwnerUserID, &c.Title, &c.CreatedAt, &c.UpdatedAt, &archived, &starred, &stateJSON); err != nil {
			return nil, apierr.Wrap(apierr.RepositoryError, "scan conversation", err)
		}
		c.Archived = archived != 0
		c.Starred = starred != 0
		_ = json.Unmarshal([]byte(stateJSON), &c.State)
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- Messages ---------------------------------------------------------------

func (r *SQLiteRepository) NextStepOrder(ctx context.Context, conversationID string) (int, error) {
	var max sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT MAX(step_order) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&max)
	if err != nil {
		return 0, apierr.Wrap(apierr.RepositoryError, "next step order", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64) + 1, nil
}

func (r *SQLiteRepository) InsertMessage(ctx context.Context, m *types.Message) error {
	toolCallsJSON, err := json.Marshal(m.ToolCalls)
	if err != nil {
		return apierr.Wrap(apierr.ValidationError, "marshal tool calls", err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO messages
		(id, conversation_id, step_order, role, content, tool_calls_json, tool_name, tool_call_id, tool_return_content, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.ConversationID, m.StepOrder, string(m.Role), m.Content, string(toolCallsJSON),
		m.ToolName, m.ToolCallID, m.ToolReturnContent, m.CreatedAt)
	if err != nil {
		return apierr.Wrap(apierr.RepositoryError, "insert message", err)
	}
	return nil
}

func (r *SQLiteRepository) ListMessages(ctx context.Context, conversationID string) ([]*types.Message, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, conversation_id, step_order, role, content, tool_calls_json,
		tool_name, tool_call_id, tool_return_content, created_at
		FROM messages WHERE conversation_id = ? ORDER BY step_order ASC`, conversationID)
	if err != nil {
		return nil, apierr.Wrap(apierr.RepositoryError, "list messages", err)
	}
	defer rows.Close()

	var out []*types.Message
	for rows.Next() {
		m := &types.Message{}
		var role, toolCallsJSON string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.StepOrder, &role, &m.Content, &toolCallsJSON,
			&m.ToolName, &m.ToolCallID, &m.ToolReturnContent, &m.CreatedAt); err != nil {
			return nil, apierr.Wrap(apierr.RepositoryError, "scan message", err)
		}
		m.Role = types.Role(role)
		_ = json.Unmarshal([]byte(toolCallsJSON), &m.ToolCalls)
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- Users / Roles / Departments -------------------------------------------

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (*types.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, username, is_admin, department_id FROM users WHERE id = ?`, id)
	u := &types.User{}
	var isAdmin int
	if err := row.Scan(&u.ID, &u.Username, &isAdmin, &u.DepartmentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, apierr.New(apierr.NotFound, "user not found: "+id)
		}
		return nil, apierr.Wrap(apierr.RepositoryError, "get user", err)
	}
	u.IsAdmin = isAdmin != 0

	rows, err := r.db.QueryContext(ctx, `SELECT role_id FROM user_roles WHERE user_id = ?`, id)
	if err != nil {
		return nil, apierr.Wrap(apierr.RepositoryError, "get user roles", err)
	}
	defer rows.Close()
	for rows.Next() {
		var roleID string
		if err := rows.Scan(&roleID); err != nil {
			return nil, apierr.Wrap(apierr.RepositoryError, "scan user role", err)
		}
		u.RoleIDs = append(u.RoleIDs, roleID)
	}
	return u, rows.Err()
}

func (r *SQLiteRepository) GetRole(ctx context.Context, id string) (*types.Role, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name FROM roles WHERE id = ?`, id)
	role := &types.Role{}
	if err := row.Scan(&role.ID, &role.Name); err != nil {
		if err == sql.ErrNoRows {
			return nil, apierr.New(apierr.NotFound, "role not found: "+id)
		}
		return nil, apierr.Wrap(apierr.RepositoryError, "get role", err)
	}
	if err := r.fillRoleGrants(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

func (r *SQLiteRepository) fillRoleGrants(ctx context.Context, role *types.Role) error {
	toolRows, err := r.db.QueryContext(ctx, `SELECT tool_name FROM role_tool_permission WHERE role_id = ? AND can_use = 1`, role.ID)
	if err != nil {
		return apierr.Wrap(apierr.RepositoryError, "get role tool grants", err)
	}
	defer toolRows.Close()
	for toolRows.Next() {
		var name string
		if err := toolRows.Scan(&name); err != nil {
			return apierr.Wrap(apierr.RepositoryError, "scan role tool grant", err)
		}
		role.PermittedTools = append(role.PermittedTools, name)
	}
	if err := toolRows.Err(); err != nil {
		return apierr.Wrap(apierr.RepositoryError, "iterate role tool grants", err)
	}

	skillRows, err := r.db.QueryContext(ctx, `SELECT skill_name FROM role_skill_permission WHERE role_id = ? AND can_use = 1`, role.ID)
	if err != nil {
		return apierr.Wrap(apierr.RepositoryError, "get role skill grants", err)
	}
	defer skillRows.Close()
	for skillRows.Next() {
		var name string
		if err := skillRows.Scan(&name); err != nil {
			return apierr.Wrap(apierr.RepositoryError, "scan role skill grant", err)
		}
		role.PermittedSkills = append(role.PermittedSkills, name)
	}
	return skillRows.Err()
}

func (r *SQLiteRepository) GetRolesForUser(ctx context.Context, userID string) ([]*types.Role, error) {
	u, err := r.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out []*types.Role
	for _, roleID := range u.RoleIDs {
		role, err := r.GetRole(ctx, roleID)
		if err != nil {
			continue // a dangling role membership is non-fatal for permission resolution
		}
		out = append(out, role)
	}
	return out, nil
}

func (r *SQLiteRepository) GetDepartment(ctx context.Context, id string) (*types.Department, error) {
	if id == "" {
		return &types.Department{}, nil
	}
	row := r.db.QueryRowContext(ctx, `SELECT id, name FROM departments WHERE id = ?`, id)
	d := &types.Department{}
	if err := row.Scan(&d.ID, &d.Name); err != nil {
		if err == sql.ErrNoRows {
			return &types.Department{}, nil
		}
		return nil, apierr.Wrap(apierr.RepositoryError, "get department", err)
	}

	toolRows, err := r.db.QueryContext(ctx, `SELECT tool_name FROM department_tool_block WHERE department_id = ? AND is_allowed = 0`, id)
	if err != nil {
		return nil, apierr.Wrap(apierr.RepositoryError, "get department tool blocks", err)
	}
	defer toolRows.Close()
	for toolRows.Next() {
		var name string
		if err := toolRows.Scan(&name); err != nil {
			return nil, apierr.Wrap(apierr.RepositoryError, "scan department tool block", err)
		}
		d.BlockedTools = append(d.BlockedTools, name)
	}

	skillRows, err := r.db.QueryContext(ctx, `SELECT skill_name FROM department_skill_block WHERE department_id = ? AND is_allowed = 0`, id)
	if err != nil {
		return nil, apierr.Wrap(apierr.RepositoryError, "get department skill blocks", err)
	}
	defer skillRows.Close()
	for skillRows.Next() {
		var name string
		if err := skillRows.Scan(&name); err != nil {
			return nil, apierr.Wrap(apierr.RepositoryError, "scan department skill block", err)
		}
		d.BlockedSkills = append(d.BlockedSkills, name)
	}
	return d, nil
}

// --- Skills ------------------------------------------------------------------

func (r *SQLiteRepository) UpsertSkill(ctx context.Context, s *types.Skill) error {
	tagsJSON, _ := json.Marshal(s.Tags)
	resourcesJSON, _ := json.Marshal(s.Resources)
	_, err := r.db.ExecContext(ctx, `INSERT INTO skills (name, version, path, description, tags_json, resources_json, is_active)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(name) DO UPDATE SET version=excluded.version, path=excluded.path, description=excluded.description,
			tags_json=excluded.tags_json, resources_json=excluded.resources_json, is_active=excluded.is_active`,
		s.Name, s.Version, s.Path, s.Description, string(tagsJSON), string(resourcesJSON), boolInt(s.IsActive))
	if err != nil {
		return apierr.Wrap(apierr.RepositoryError, "upsert skill", err)
	}
	r.notifyPermissionWrite("")
	return nil
}

func (r *SQLiteRepository) GetSkill(ctx context.Context, name string) (*types.Skill, error) {
	row := r.db.QueryRowContext(ctx, `SELECT name, version, path, description, tags_json, resources_json, is_active FROM skills WHERE name = ?`, name)
	s := &types.Skill{}
	var tagsJSON, resourcesJSON string
	var isActive int
	if err := row.Scan(&s.Name, &s.Version, &s.Path, &s.Description, &tagsJSON, &resourcesJSON, &isActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, apierr.New(apierr.NotFound, "skill not found: "+name)
		}
		return nil, apierr.Wrap(apierr.RepositoryError, "get skill", err)
	}
	_ = json.Unmarshal([]byte(tagsJSON), &s.Tags)
	_ = json.Unmarshal([]byte(resourcesJSON), &s.Resources)
	s.IsActive = isActive != 0
	return s, nil
}

func (r *SQLiteRepository) ListActiveSkills(ctx context.Context) ([]*types.Skill, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, version, path, description, tags_json, resources_json, is_active FROM skills WHERE is_active = 1`)
	if err != nil {
		return nil, apierr.Wrap(apierr.RepositoryError, "list active skills", err)
	}
	defer rows.Close()
	var out []*types.Skill
	for rows.Next() {
		s := &types.Skill{}
		var tagsJSON, resourcesJSON string
		var isActive int
		if err := rows.Scan(&s.Name, &s.Version, &s.Path, &s.Description, &tagsJSON, &resourcesJSON, &isActive); err != nil {
			return nil, apierr.Wrap(apierr.RepositoryError, "scan skill", err)
		}
		_ = json.Unmarshal([]byte(tagsJSON), &s.Tags)
		_ = json.Unmarshal([]byte(resourcesJSON), &s.Resources)
		s.IsActive = isActive != 0
		out = append(out, s)
	}
	return out, rows.Err()
}

// --- MCP server configs -------------------------------------------------------

func (r *SQLiteRepository) UpsertMCPServerConfig(ctx context.Context, cfg *types.MCPServerConfig) error {
	if err := cfg.Validate(); err != nil {
		return apierr.Wrap(apierr.ValidationError, "invalid mcp server config", err)
	}
	argsJSON, _ := json.Marshal(cfg.Args)
	envJSON, _ := json.Marshal(cfg.Env)
	_, err := r.db.ExecContext(ctx, `INSERT INTO mcp_server_configs (name, transport, command, args_json, env_json, url, is_active, timeout)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(name) DO UPDATE SET transport=excluded.transport, command=excluded.command, args_json=excluded.args_json,
			env_json=excluded.env_json, url=excluded.url, is_active=excluded.is_active, timeout=excluded.timeout`,
		cfg.Name, string(cfg.Transport), cfg.Command, string(argsJSON), string(envJSON), cfg.URL, boolInt(cfg.IsActive), cfg.Timeout)
	if err != nil {
		return apierr.Wrap(apierr.RepositoryError, "upsert mcp server config", err)
	}
	r.notifyPermissionWrite("")
	return nil
}

func (r *SQLiteRepository) DeleteMCPServerConfig(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM mcp_server_configs WHERE name = ?`, name)
	if err != nil {
		return apierr.Wrap(apierr.RepositoryError, "delete mcp server config", err)
	}
	r.notifyPermissionWrite("")
	return nil
}

func (r *SQLiteRepository) ListActiveMCPServerConfigs(ctx context.Context) ([]*types.MCPServerConfig, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, transport, command, args_json, env_json, url, is_active, timeout
		FROM mcp_server_configs WHERE is_active = 1 ORDER BY name ASC`)
	if err != nil {
		return nil, apierr.Wrap(apierr.RepositoryError, "list active mcp server configs", err)
	}
	defer rows.Close()
	var out []*types.MCPServerConfig
	for rows.Next() {
		cfg := &types.MCPServerConfig{}
		var transport, argsJSON, envJSON string
		var isActive int
		if err := rows.Scan(&cfg.Name, &transport, &cfg.Command, &argsJSON, &envJSON, &cfg.URL, &isActive, &cfg.Timeout); err != nil {
			return nil, apierr.Wrap(apierr.RepositoryError, "scan mcp server config", err)
		}
		cfg.Transport = types.MCPTransport(transport)
		_ = json.Unmarshal([]byte(argsJSON), &cfg.Args)
		_ = json.Unmarshal([]byte(envJSON), &cfg.Env)
		cfg.IsActive = isActive != 0
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// --- LLM model configs ---------------------------------------------------------

func (r *SQLiteRepository) ListActiveModelConfigs(ctx context.Context) ([]*types.LLMModelConfig, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, provider_id, model_id, name, is_small, is_active, input_price, output_price
		FROM llm_model_configs WHERE is_active = 1`)
	if err != nil {
		return nil, apierr.Wrap(apierr.RepositoryError, "list active model configs", err)
	}
	defer rows.Close()
	var out []*types.LLMModelConfig
	for rows.Next() {
		m := &types.LLMModelConfig{}
		var isSmall, isActive int
		if err := rows.Scan(&m.ID, &m.ProviderID, &m.ModelID, &m.Name, &isSmall, &isActive, &m.InputPrice, &m.OutputPrice); err != nil {
			return nil, apierr.Wrap(apierr.RepositoryError, "scan model config", err)
		}
		m.IsSmall = isSmall != 0
		m.IsActive = isActive != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetDefaultSmallModel(ctx context.Context) (*types.LLMModelConfig, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, provider_id, model_id, name, is_small, is_active, input_price, output_price
		FROM llm_model_configs WHERE is_small = 1 AND is_active = 1 LIMIT 1`)
	m := &types.LLMModelConfig{}
	var isSmall, isActive int
	if err := row.Scan(&m.ID, &m.ProviderID, &m.ModelID, &m.Name, &isSmall, &isActive, &m.InputPrice, &m.OutputPrice); err != nil {
		if err == sql.ErrNoRows {
			return nil, apierr.New(apierr.NotFound, "no small model configured")
		}
		return nil, apierr.Wrap(apierr.RepositoryError, "get default small model", err)
	}
	m.IsSmall = isSmall != 0
	m.IsActive = isActive != 0
	return m, nil
}

// --- helpers -------------------------------------------------------------------

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apierr.Wrap(apierr.RepositoryError, "rows affected", err)
	}
	if n == 0 {
		return apierr.New(apierr.NotFound, "no such row: "+id)
	}
	return nil
}

var _ Repository = (*SQLiteRepository)(nil)
