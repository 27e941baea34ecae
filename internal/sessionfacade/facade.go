// Package sessionfacade implements Facade.StartTurn, the single entrypoint
// that turns one user message into a fully orchestrated, persisted,
// permission-filtered conversational turn.
package sessionfacade

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/opencode-ai/agentserver/internal/historystore"
	"github.com/opencode-ai/agentserver/internal/mcpregistry"
	"github.com/opencode-ai/agentserver/internal/permission"
	"github.com/opencode-ai/agentserver/internal/provider"
	"github.com/opencode-ai/agentserver/internal/repository"
	"github.com/opencode-ai/agentserver/internal/sandbox"
	"github.com/opencode-ai/agentserver/internal/skills"
	"github.com/opencode-ai/agentserver/internal/titlegen"
	"github.com/opencode-ai/agentserver/internal/tool"
	"github.com/opencode-ai/agentserver/internal/toolrouter"
	"github.com/opencode-ai/agentserver/internal/turnengine"
	"github.com/opencode-ai/agentserver/pkg/types"
)

// ErrNotOwner is returned by StartTurn when the caller does not own the
// conversation.
var ErrNotOwner = fmt.Errorf("sessionfacade: caller does not own conversation")

// StartTurnRequest carries everything a turn needs from its caller.
type StartTurnRequest struct {
	User           types.User
	ConversationID string
	Message        string

	// RequestedTools/RequestedSkills restrict this turn's toolset further
	// than the caller's full permission grant (e.g. a client that only
	// wants read-only tools active); nil means "everything permitted".
	RequestedTools  []string
	RequestedSkills []string

	// Image configures the sandbox container this turn should run in.
	Image sandbox.ImageConfig
}

// SandboxSource narrows internal/sandbox.Manager to what StartTurn needs,
// the same way internal/titlegen narrows internal/provider.Registry — a
// seam for tests to substitute a fake that never talks to Docker.
type SandboxSource interface {
	Acquire(ctx context.Context, userID, conversationID string, cfg sandbox.ImageConfig) (*sandbox.Sandbox, error)
	ScheduleStop(conversationID string)
}

// Facade orchestrates one conversation's turns end to end: permission
// resolution, sandbox lifecycle, tool routing, the agentic provider loop,
// and background title generation. One Facade serves every conversation;
// per-conversation serialization is handled internally (queueMu) on top of
// turnengine.Engine's own per-conversation row-ordering lock, since a
// second concurrent request for the same conversation should wait its
// turn rather than race Engine.Run's lock acquisition order.
type Facade struct {
	repo        repository.Repository
	permissions *permission.Resolver
	sandboxes   SandboxSource
	registry    *provider.Registry
	history     *historystore.Store
	engine      *turnengine.Engine
	titles      *titlegen.Generator
	builtins    *tool.Registry
	mcp         *mcpregistry.Registry

	queueMu sync.Mutex
	queues  map[string]*sync.Mutex
}

// New builds a Facade wiring every collaborator a turn needs.
func New(
	repo repository.Repository,
	registry *provider.Registry,
	sandboxes SandboxSource,
	builtins *tool.Registry,
	mcp *mcpregistry.Registry,
) *Facade {
	history := historystore.New(repo)
	return &Facade{
		repo:        repo,
		permissions: permission.NewResolver(repo),
		sandboxes:   sandboxes,
		registry:    registry,
		history:     history,
		engine:      turnengine.New(history),
		titles:      titlegen.New(registry, repo),
		builtins:    builtins,
		mcp:         mcp,
		queues:      make(map[string]*sync.Mutex),
	}
}

func (f *Facade) queueFor(conversationID string) *sync.Mutex {
	f.queueMu.Lock()
	defer f.queueMu.Unlock()
	q, ok := f.queues[conversationID]
	if !ok {
		q = &sync.Mutex{}
		f.queues[conversationID] = q
	}
	return q
}

// StartTurn runs the nine-step turn algorithm:
//  1. load and authorize the conversation
//  2. resolve the caller's permitted tools/skills, intersected with what
//     the request asked for
//  3. load the permitted skill catalogue
//  4. acquire the conversation's sandbox and discover its workspace files
//  5. assemble the turn's ephemeral TurnContext
//  6. build the turn's toolset (built-ins plus any permitted MCP tools)
//  7. construct the system prompt and drive the agentic provider loop
//     through turnengine.Engine
//  8. forward client-visible frames via emit
//  9. schedule background title generation and sandbox teardown
//
// ctx is the caller's own request context, not context.Background(): a
// client disconnect must cancel the turn, per spec's cancellation
// requirement, rather than let it run unattended server-side.
func (f *Facade) StartTurn(ctx context.Context, req StartTurnRequest, emit turnengine.Emit) (string, error) {
	queue := f.queueFor(req.ConversationID)
	queue.Lock()
	defer queue.Unlock()

	// Step 1: load + authorize.
	conv, err := f.repo.GetConversation(ctx, req.ConversationID)
	if err != nil {
		return "", err
	}
	if conv == nil {
		return "", fmt.Errorf("sessionfacade: conversation %s not found", req.ConversationID)
	}
	if !req.User.IsAdmin && conv.OwnerUserID != req.User.ID {
		return "", ErrNotOwner
	}

	// Step 2: resolve permissions, intersected with the request's ask.
	permittedTools, err := f.permissions.ResolveTools(ctx, req.User.ID)
	if err != nil {
		return "", err
	}
	if req.RequestedTools != nil {
		narrowed := make(map[string]bool)
		for _, name := range permission.Intersect(req.RequestedTools, permittedTools) {
			narrowed[name] = true
		}
		permittedTools = narrowed
	}
	permittedSkills, err := f.permissions.ResolveSkills(ctx, req.User.ID)
	if err != nil {
		return "", err
	}
	allowedSkillNames := permission.Intersect(req.RequestedSkills, permittedSkills)
	if req.RequestedSkills == nil {
		allowedSkillNames = namesOf(permittedSkills)
	}

	// Step 3: load the permitted skill catalogue.
	catalog, err := skills.Load(ctx, f.repo, permittedSkills)
	if err != nil {
		return "", err
	}

	// Step 4: acquire sandbox, discover files.
	imageCfg := req.Image
	imageCfg.AllowedSkills = allowedSkillNames
	sb, err := f.sandboxes.Acquire(ctx, req.User.ID, req.ConversationID, imageCfg)
	if err != nil {
		return "", err
	}
	files, err := sb.DiscoverFiles(ctx)
	if err != nil {
		return "", err
	}

	// Step 5: assemble the turn's ephemeral context.
	histMsgs, err := f.history.ReadHistory(ctx, req.ConversationID)
	if err != nil {
		return "", err
	}
	turnCtx := &types.TurnContext{
		User:            req.User,
		ConversationID:  req.ConversationID,
		PermittedTools:  permittedTools,
		PermittedSkills: permittedSkills,
		History:         histMsgs,
		Todos:           conv.State.Todos,
	}

	// Step 6: build this turn's toolset.
	var mcpToolset *mcpregistry.Toolset
	if f.mcp != nil {
		mcpToolset, err = f.mcp.BuildToolset(ctx, permittedTools)
		if err != nil {
			return "", err
		}
		if mcpToolset != nil {
			defer mcpToolset.Close()
		}
	}
	router := toolrouter.New(f.builtins, mcpToolset)
	defs := router.Definitions()
	defs = router.PrepareTools(ctx, defs, permittedTools)

	toolCtx := &tool.Context{
		ConversationID: req.ConversationID,
		Sandbox:        sb,
		Repo:           f.repo,
		Skills:         catalog,
		Todos:          turnCtx,
	}

	// Step 7: system prompt + agentic provider loop.
	model, err := f.registry.DefaultModel()
	if err != nil {
		return "", err
	}
	prov, err := f.registry.Get(model.ProviderID)
	if err != nil {
		return "", err
	}

	step, err := f.history.NextStepOrder(ctx, req.ConversationID)
	if err != nil {
		return "", err
	}
	if err := f.history.PersistUser(ctx, req.ConversationID, step, req.Message); err != nil {
		return "", err
	}

	systemPrompt := f.buildSystemPrompt(files, conv.State.Todos, catalog, imageCfg)
	messages := append([]*schema.Message{{Role: schema.System, Content: systemPrompt}}, historyToMessages(turnCtx.History)...)
	messages = append(messages, &schema.Message{Role: schema.User, Content: req.Message})

	stream := newAgenticStream(ctx, prov, model.ID, router, toolCtx, defs, messages)

	finalText, err := f.engine.Run(ctx, req.ConversationID, stream, turnCtx.GetTodos(), emit)

	// Step 9: background title generation and sandbox teardown, regardless
	// of turn outcome (a cancelled turn still leaves a sandbox worth
	// reaping and, if it produced any text before cancellation, still
	// nothing worth titling since finalText is empty in that case).
	if err == nil && finalText != "" {
		go f.titles.Run(context.Background(), req.ConversationID, req.Message, finalText)
	}
	f.sandboxes.ScheduleStop(req.ConversationID)

	return finalText, err
}

// buildSystemPrompt assembles the dynamic per-turn system prompt: workspace
// summary, current todos, a filesystem tool primer, sandbox capability
// notes, and the permitted skill catalogue.
func (f *Facade) buildSystemPrompt(files []string, todos []types.Todo, catalog *skills.Catalog, img sandbox.ImageConfig) string {
	var b strings.Builder
	b.WriteString("You are an autonomous coding and task assistant operating inside a sandboxed workspace.\n\n")

	b.WriteString("Workspace files:\n")
	if len(files) == 0 {
		b.WriteString("(empty)\n")
	} else {
		sorted := append([]string(nil), files...)
		sort.Strings(sorted)
		for _, name := range sorted {
			b.WriteString("- " + name + "\n")
		}
	}

	if len(todos) > 0 {
		b.WriteString("\nCurrent todos:\n")
		for _, t := range todos {
			b.WriteString(fmt.Sprintf("- [%s] %s\n", t.Status, t.Content))
		}
	}

	b.WriteString("\nEnvironment:\n")
	fmt.Fprintf(&b, "- image: %s\n", img.Image)
	if img.DisableNetwork {
		b.WriteString("- network access is disabled in this sandbox\n")
	}

	if catalog != nil {
		names := catalog.Names()
		if len(names) > 0 {
			b.WriteString("\nAvailable skills:\n")
			for _, n := range names {
				b.WriteString("- " + n + "\n")
			}
		}
	}

	return b.String()
}

// historyToMessages reconstructs stored history into eino messages.
// Delegates to provider.HistoryToEinoMessages so there's exactly one place
// that maps HistoryMessageKind onto schema.Message shapes.
func historyToMessages(history []types.HistoryMessage) []*schema.Message {
	return provider.HistoryToEinoMessages(history)
}

// namesOf returns the keys of a permitted-set map, used when a request
// doesn't restrict skills further than what the caller is permitted.
func namesOf(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k, ok := range set {
		if ok {
			out = append(out, k)
		}
	}
	return out
}
