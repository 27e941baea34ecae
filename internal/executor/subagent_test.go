package executor

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/agentserver/internal/agent"
	"github.com/opencode-ai/agentserver/internal/provider"
	"github.com/opencode-ai/agentserver/internal/sandbox"
	"github.com/opencode-ai/agentserver/internal/tool"
	"github.com/opencode-ai/agentserver/internal/toolrouter"
	"github.com/opencode-ai/agentserver/pkg/types"
)

// mockProvider mirrors internal/provider's own test double: CreateCompletion
// cannot return a usable *CompletionStream here either, since constructing
// one needs a real eino stream reader. Tests below stay within what's
// reachable without driving the completion loop.
type mockProvider struct {
	id     string
	models []types.Model
}

func (m *mockProvider) ID() string                          { return m.id }
func (m *mockProvider) Name() string                        { return m.id }
func (m *mockProvider) Models() []types.Model                { return m.models }
func (m *mockProvider) ChatModel() model.ToolCallingChatModel { return nil }
func (m *mockProvider) CreateCompletion(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionStream, error) {
	return nil, nil
}

type fakeSandboxLookup struct {
	sb  *sandbox.Sandbox
	err error
}

func (f *fakeSandboxLookup) Acquire(ctx context.Context, userID, conversationID string, cfg sandbox.ImageConfig) (*sandbox.Sandbox, error) {
	return f.sb, f.err
}

func newTestExecutor(t *testing.T) (*SubagentExecutor, *provider.Registry) {
	t.Helper()
	reg := provider.NewRegistry(nil)
	reg.Register(&mockProvider{id: "anthropic", models: []types.Model{
		{ID: "claude-sonnet-4-20250514", ProviderID: "anthropic"},
		{ID: "claude-haiku", ProviderID: "anthropic"},
	}})

	agents := agent.NewRegistry()
	builtins := tool.NewRegistry()

	exec := NewSubagentExecutor(reg, agents, builtins, nil, &fakeSandboxLookup{})
	return exec, reg
}

func TestExecuteSubtask_UnknownAgent(t *testing.T) {
	exec, _ := newTestExecutor(t)

	_, err := exec.ExecuteSubtask(context.Background(), "conv-1", "nonexistent", "do a thing", tool.TaskOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent not found")
}

func TestExecuteSubtask_RejectsPrimaryAgent(t *testing.T) {
	exec, _ := newTestExecutor(t)

	_, err := exec.ExecuteSubtask(context.Background(), "conv-1", "build", "do a thing", tool.TaskOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be used as subagent")
}

func TestResolveModel_DefaultsWhenHintEmpty(t *testing.T) {
	exec, _ := newTestExecutor(t)

	resolved, err := exec.resolveModel("")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", resolved.ProviderID)
}

func TestResolveModel_ParsesProviderSlashModelHint(t *testing.T) {
	exec, _ := newTestExecutor(t)

	resolved, err := exec.resolveModel("anthropic/claude-haiku")
	require.NoError(t, err)
	assert.Equal(t, "claude-haiku", resolved.ID)
}

func TestResolveModel_BareModelHintUsesDefaultProvider(t *testing.T) {
	exec, _ := newTestExecutor(t)

	resolved, err := exec.resolveModel("claude-haiku")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", resolved.ProviderID)
	assert.Equal(t, "claude-haiku", resolved.ID)
}

func TestFilterByAgent_DropsDisabledTools(t *testing.T) {
	planAgent, err := agent.NewRegistry().Get("plan")
	require.NoError(t, err)

	defs := []toolrouter.Definition{{Name: "edit_file"}, {Name: "read_file"}}
	filtered := filterByAgent(defs, planAgent)

	names := make([]string, len(filtered))
	for i, d := range filtered {
		names[i] = d.Name
	}
	assert.NotContains(t, names, "edit_file")
	assert.Contains(t, names, "read_file")
}
