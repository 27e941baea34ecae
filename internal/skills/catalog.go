// Package skills resolves the skill catalog exposed to one turn: the
// active skills a user's permitted set admits, read once per turn from the
// repository and held in memory for the list_skills/load_skill tools.
package skills

import (
	"context"
	"fmt"

	"github.com/opencode-ai/agentserver/internal/repository"
	"github.com/opencode-ai/agentserver/pkg/types"
)

// Catalog implements tool.SkillCatalog over a fixed, pre-resolved set of
// skills for one turn. It never touches the sandbox: skill bodies and
// resources are read through Context.Sandbox, per spec's progressive-
// disclosure design, not through this catalog.
type Catalog struct {
	skills map[string]types.Skill
	order  []string
}

// Load reads every active skill from repo and keeps the ones permitted admits.
// A nil permitted set is treated as "all active skills admitted" (used for
// admin users, who bypass filtering).
func Load(ctx context.Context, repo repository.Repository, permitted map[string]bool) (*Catalog, error) {
	all, err := repo.ListActiveSkills(ctx)
	if err != nil {
		return nil, fmt.Errorf("load skill catalog: %w", err)
	}

	c := &Catalog{skills: make(map[string]types.Skill)}
	for _, s := range all {
		if permitted != nil && !permitted[s.Name] {
			continue
		}
		c.skills[s.Name] = *s
		c.order = append(c.order, s.Name)
	}
	return c, nil
}

// Names returns the permitted skill names, for mounting into the sandbox's
// /workspace/skills directory.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.order...)
}

// List returns metadata for every skill this turn admits, in load order.
func (c *Catalog) List(ctx context.Context) ([]types.Skill, error) {
	out := make([]types.Skill, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.skills[name])
	}
	return out, nil
}

// Get resolves one skill by name, erroring if it isn't in this turn's
// permitted set.
func (c *Catalog) Get(ctx context.Context, name string) (types.Skill, error) {
	s, ok := c.skills[name]
	if !ok {
		return types.Skill{}, fmt.Errorf("skill not permitted or not found: %s", name)
	}
	return s, nil
}
