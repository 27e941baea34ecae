package permission

import (
	"context"
	"sync"
	"time"

	"github.com/opencode-ai/agentserver/internal/repository"
)

// resolveKind distinguishes the two catalogs a Resolver narrows.
type resolveKind string

const (
	kindTool  resolveKind = "tool"
	kindSkill resolveKind = "skill"
)

const resolveCacheTTL = 5 * time.Minute

type cacheKey struct {
	userID string
	kind   resolveKind
}

type cacheEntry struct {
	permitted map[string]bool
	expiresAt time.Time
}

// Resolver computes the set of tools and skills a user may invoke by
// unioning the grants of every role the user holds, then subtracting
// whatever the user's department blocks. Results are cached for
// resolveCacheTTL and invalidated early if the backing repository reports a
// permission-relevant write.
type Resolver struct {
	repo repository.Repository

	mu    sync.Mutex
	cache map[cacheKey]cacheEntry
}

// NewResolver builds a Resolver over repo. If repo also implements
// repository.WriteNotifier, the resolver subscribes to invalidate its cache
// on writes to skills or MCP server configs.
func NewResolver(repo repository.Repository) *Resolver {
	r := &Resolver{repo: repo, cache: make(map[cacheKey]cacheEntry)}
	if wn, ok := repo.(repository.WriteNotifier); ok {
		wn.OnPermissionWrite(r.Invalidate)
	}
	return r
}

// Invalidate drops cached entries for userID, or the whole cache if userID
// is empty (used when a global grant, like a skill or MCP config, changes).
func (r *Resolver) Invalidate(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if userID == "" {
		r.cache = make(map[cacheKey]cacheEntry)
		return
	}
	delete(r.cache, cacheKey{userID: userID, kind: kindTool})
	delete(r.cache, cacheKey{userID: userID, kind: kindSkill})
}

// ResolveTools returns the set of tool names userID may invoke.
func (r *Resolver) ResolveTools(ctx context.Context, userID string) (map[string]bool, error) {
	return r.resolve(ctx, userID, kindTool)
}

// ResolveSkills returns the set of skill names userID may invoke.
func (r *Resolver) ResolveSkills(ctx context.Context, userID string) (map[string]bool, error) {
	return r.resolve(ctx, userID, kindSkill)
}

func (r *Resolver) resolve(ctx context.Context, userID string, kind resolveKind) (map[string]bool, error) {
	key := cacheKey{userID: userID, kind: kind}

	r.mu.Lock()
	if entry, ok := r.cache[key]; ok && time.Now().Before(entry.expiresAt) {
		r.mu.Unlock()
		return entry.permitted, nil
	}
	r.mu.Unlock()

	user, err := r.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	roles, err := r.repo.GetRolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	dept, err := r.repo.GetDepartment(ctx, user.DepartmentID)
	if err != nil {
		return nil, err
	}

	permitted := make(map[string]bool)
	if user.IsAdmin {
		permitted = r.allKnown(ctx, kind)
	} else {
		for _, role := range roles {
			grants := role.PermittedTools
			if kind == kindSkill {
				grants = role.PermittedSkills
			}
			for _, name := range grants {
				permitted[name] = true
			}
		}
	}

	blocked := dept.BlockedTools
	if kind == kindSkill {
		blocked = dept.BlockedSkills
	}
	for _, name := range blocked {
		delete(permitted, name)
	}

	r.mu.Lock()
	r.cache[key] = cacheEntry{permitted: permitted, expiresAt: time.Now().Add(resolveCacheTTL)}
	r.mu.Unlock()

	return permitted, nil
}

// allKnown returns every registered name of the given kind, used to grant an
// admin user everything regardless of role grants.
func (r *Resolver) allKnown(ctx context.Context, kind resolveKind) map[string]bool {
	out := make(map[string]bool)
	if kind == kindSkill {
		skills, err := r.repo.ListActiveSkills(ctx)
		if err != nil {
			return out
		}
		for _, s := range skills {
			out[s.Name] = true
		}
		return out
	}
	// Admins get every built-in tool name plus every active MCP server's
	// tools; the exact MCP tool names aren't known here (that's
	// mcpregistry's job), so admins are granted by the caller bypassing
	// the permitted-set check entirely. ResolveTools still returns the
	// built-in set for logging/display purposes.
	for _, name := range builtinToolNames {
		out[name] = true
	}
	return out
}

// builtinToolNames lists the built-in tool names PrepareTools can filter
// against; kept here (rather than importing internal/tool) to avoid an
// import cycle, since internal/tool depends on internal/permission for
// bash-pattern checks.
var builtinToolNames = []string{
	"read_todos", "write_todos",
	"ls", "read_file", "write_file", "edit_file", "glob", "grep", "execute",
	"list_skills", "load_skill", "read_skill_resource", "execute_skill_script",
	"task",
}

// Intersect returns the subset of requested present in permitted.
func Intersect(requested []string, permitted map[string]bool) []string {
	var out []string
	for _, name := range requested {
		if permitted[name] {
			out = append(out, name)
		}
	}
	return out
}
