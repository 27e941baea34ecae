package mcpregistry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/opencode-ai/agentserver/internal/repository"
	"github.com/opencode-ai/agentserver/pkg/types"
)

const defaultMCPTimeout = 5 * time.Second

// Registry holds the cached ConfigSnapshot and constructs fresh per-turn
// Toolsets from it. The snapshot is read-copy-update: CurrentConfig returns
// a pointer readers may hold onto; InvalidateCache swaps the pointer rather
// than mutating the existing snapshot.
type Registry struct {
	repo repository.Repository

	snapshot atomic.Pointer[ConfigSnapshot]
}

// NewRegistry builds a Registry over repo. If repo implements
// repository.WriteNotifier, the registry subscribes to invalidate its cache
// on mcp_server_configs writes.
func NewRegistry(repo repository.Repository) *Registry {
	r := &Registry{repo: repo}
	if wn, ok := repo.(repository.WriteNotifier); ok {
		wn.OnPermissionWrite(func(string) { r.InvalidateCache() })
	}
	return r
}

// InvalidateCache discards the cached snapshot; the next CurrentConfig call
// reloads from the repository.
func (r *Registry) InvalidateCache() {
	r.snapshot.Store(nil)
}

// CurrentConfig returns the cached snapshot, loading it from the repository
// if none is cached.
func (r *Registry) CurrentConfig(ctx context.Context) (*ConfigSnapshot, error) {
	if snap := r.snapshot.Load(); snap != nil {
		return snap, nil
	}

	configs, err := r.repo.ListActiveMCPServerConfigs(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]types.MCPServerConfig, len(configs))
	for _, c := range configs {
		byName[c.Name] = *c
	}

	snap := &ConfigSnapshot{Hash: contentHash(configs), Configs: byName}
	r.snapshot.Store(snap)
	return snap, nil
}

// Toolset is a fresh per-turn set of connected MCP clients. It must be
// closed when the turn finishes to release its connections.
type Toolset struct {
	tools   []Tool
	clients map[string]*connectedClient // keyed by sanitized server name prefix
}

type connectedClient struct {
	session  *sdkmcp.ClientSession
	toolName map[string]string // sanitized tool name -> original tool name
}

// Tools returns every tool exposed by this toolset, with names prefixed by
// their owning server (sanitized) so they can't collide with built-ins.
func (t *Toolset) Tools() []Tool { return t.tools }

// Call invokes a prefixed tool name against the server that owns it.
func (t *Toolset) Call(ctx context.Context, prefixedName string, args json.RawMessage) (string, error) {
	for prefix, client := range t.clients {
		if !strings.HasPrefix(prefixedName, prefix) {
			continue
		}
		original, ok := client.toolName[prefixedName]
		if !ok {
			continue
		}

		var argsMap map[string]any
		if len(args) > 0 {
			if err := json.Unmarshal(args, &argsMap); err != nil {
				return "", fmt.Errorf("parse mcp tool args: %w", err)
			}
		}

		result, err := client.session.CallTool(ctx, &sdkmcp.CallToolParams{Name: original, Arguments: argsMap})
		if err != nil {
			return "", err
		}
		var out strings.Builder
		for _, content := range result.Content {
			if text, ok := content.(*sdkmcp.TextContent); ok {
				out.WriteString(text.Text)
			}
		}
		if result.IsError {
			return "", fmt.Errorf("mcp tool error: %s", out.String())
		}
		return out.String(), nil
	}
	return "", fmt.Errorf("no mcp server owns tool: %s", prefixedName)
}

// Close disconnects every client session in the toolset.
func (t *Toolset) Close() {
	for _, c := range t.clients {
		if c.session != nil {
			c.session.Close()
		}
	}
}

// BuildToolset constructs a fresh MCP client toolset for this turn, limited
// to servers whose tools intersect allowedToolNames (unprefixed MCP tool
// names granted by the PermissionResolver). Returns nil, nil when no server
// is active — callers proceed with built-in tools only.
//
// Connections are never reused across turns: a fresh client is dialed and
// torn down per call, trading connection-setup latency for immunity to
// stale-connection accumulation from a long-lived shared client.
func (r *Registry) BuildToolset(ctx context.Context, allowedToolNames map[string]bool) (*Toolset, error) {
	snap, err := r.CurrentConfig(ctx)
	if err != nil {
		return nil, err
	}
	if len(snap.Configs) == 0 {
		return nil, nil
	}

	toolset := &Toolset{clients: make(map[string]*connectedClient)}

	for name, cfg := range snap.Configs {
		if !cfg.IsActive {
			continue
		}
		client, tools, err := connectAndList(ctx, name, cfg)
		if err != nil {
			log.Warn().Err(err).Str("server", name).Msg("mcp server connect failed, skipping for this turn")
			continue
		}

		prefix := sanitizeToolName(name) + "_"
		owned := &connectedClient{session: client, toolName: make(map[string]string)}
		for _, tool := range tools {
			sanitized := prefix + sanitizeToolName(tool.Name)
			if len(allowedToolNames) > 0 && !allowedToolNames[tool.Name] && !allowedToolNames[sanitized] {
				continue
			}
			owned.toolName[sanitized] = tool.Name
			toolset.tools = append(toolset.tools, Tool{Name: sanitized, Description: tool.Description, InputSchema: tool.InputSchema})
		}

		if len(owned.toolName) == 0 {
			client.Close()
			continue
		}
		toolset.clients[prefix] = owned
	}

	if len(toolset.tools) == 0 {
		toolset.Close()
		return nil, nil
	}
	return toolset, nil
}

func connectAndList(ctx context.Context, name string, cfg types.MCPServerConfig) (*sdkmcp.ClientSession, []Tool, error) {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout == 0 {
		timeout = defaultMCPTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var transport sdkmcp.Transport
	switch cfg.Transport {
	case types.MCPTransportHTTP, types.MCPTransportSSE:
		transport = &sdkmcp.SSEClientTransport{Endpoint: cfg.URL, HTTPClient: &http.Client{Timeout: timeout}}
	case types.MCPTransportStdio:
		cmd := exec.Command(cfg.Command, cfg.Args...)
		cmd.Env = os.Environ()
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		transport = &sdkmcp.CommandTransport{Command: cmd}
	default:
		return nil, nil, fmt.Errorf("unknown mcp transport: %s", cfg.Transport)
	}

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "agentserver", Version: "1.0.0"}, nil)
	session, err := client.Connect(dialCtx, transport, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to mcp server %s: %w", name, err)
	}

	result, err := session.ListTools(ctx, nil)
	if err != nil {
		session.Close()
		return nil, nil, fmt.Errorf("list tools on mcp server %s: %w", name, err)
	}

	tools := make([]Tool, len(result.Tools))
	for i, t := range result.Tools {
		tools[i] = fromSDKTool(t)
	}
	return session, tools, nil
}

// contentHash produces a stable hash of the sorted config dict, so unrelated
// map iteration order never changes the hash.
func contentHash(configs []*types.MCPServerConfig) string {
	sorted := make([]*types.MCPServerConfig, len(configs))
	copy(sorted, configs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	data, _ := json.Marshal(sorted)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
