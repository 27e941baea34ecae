package repository

// schema is applied with CREATE TABLE IF NOT EXISTS on every startup; there is
// no migration framework (grounded: no pack repo exercises one against a
// SQLite target — see DESIGN.md).
const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	owner_user_id TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	archived INTEGER NOT NULL DEFAULT 0,
	starred INTEGER NOT NULL DEFAULT 0,
	state_json TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	step_order INTEGER NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	tool_calls_json TEXT NOT NULL DEFAULT '[]',
	tool_name TEXT NOT NULL DEFAULT '',
	tool_call_id TEXT NOT NULL DEFAULT '',
	tool_return_content TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	UNIQUE(conversation_id, step_order)
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, step_order);

CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL,
	is_admin INTEGER NOT NULL DEFAULT 0,
	department_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS roles (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS user_roles (
	user_id TEXT NOT NULL,
	role_id TEXT NOT NULL,
	PRIMARY KEY(user_id, role_id)
);

CREATE TABLE IF NOT EXISTS role_tool_permission (
	role_id TEXT NOT NULL,
	tool_name TEXT NOT NULL,
	can_use INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY(role_id, tool_name)
);

CREATE TABLE IF NOT EXISTS role_skill_permission (
	role_id TEXT NOT NULL,
	skill_name TEXT NOT NULL,
	can_use INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY(role_id, skill_name)
);

CREATE TABLE IF NOT EXISTS departments (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS department_tool_block (
	department_id TEXT NOT NULL,
	tool_name TEXT NOT NULL,
	is_allowed INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY(department_id, tool_name)
);

CREATE TABLE IF NOT EXISTS department_skill_block (
	department_id TEXT NOT NULL,
	skill_name TEXT NOT NULL,
	is_allowed INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY(department_id, skill_name)
);

CREATE TABLE IF NOT EXISTS skills (
	name TEXT PRIMARY KEY,
	version TEXT NOT NULL DEFAULT '',
	path TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	tags_json TEXT NOT NULL DEFAULT '[]',
	resources_json TEXT NOT NULL DEFAULT '[]',
	is_active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS mcp_server_configs (
	name TEXT PRIMARY KEY,
	transport TEXT NOT NULL,
	command TEXT NOT NULL DEFAULT '',
	args_json TEXT NOT NULL DEFAULT '[]',
	env_json TEXT NOT NULL DEFAULT '{}',
	url TEXT NOT NULL DEFAULT '',
	is_active INTEGER NOT NULL DEFAULT 1,
	timeout INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS llm_model_configs (
	id TEXT PRIMARY KEY,
	provider_id TEXT NOT NULL,
	model_id TEXT NOT NULL,
	name TEXT NOT NULL,
	is_small INTEGER NOT NULL DEFAULT 0,
	is_active INTEGER NOT NULL DEFAULT 1,
	input_price REAL NOT NULL DEFAULT 0,
	output_price REAL NOT NULL DEFAULT 0
);
`
