package permission

import (
	"context"
	"testing"

	"github.com/opencode-ai/agentserver/internal/repository"
)

func newTestRepo(t *testing.T) *repository.SQLiteRepository {
	t.Helper()
	repo, err := repository.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedEngineerWithBlockedExecute(t *testing.T, repo *repository.SQLiteRepository) {
	t.Helper()
	ctx := context.Background()
	stmts := []string{
		`INSERT INTO departments (id, name) VALUES ('dept-1','Engineering')`,
		`INSERT INTO department_tool_block (department_id, tool_name, is_allowed) VALUES ('dept-1','execute',0)`,
		`INSERT INTO roles (id, name) VALUES ('role-1','engineer')`,
		`INSERT INTO role_tool_permission (role_id, tool_name, can_use) VALUES ('role-1','read_file',1)`,
		`INSERT INTO role_tool_permission (role_id, tool_name, can_use) VALUES ('role-1','execute',1)`,
		`INSERT INTO users (id, username, is_admin, department_id) VALUES ('user-1','alice',0,'dept-1')`,
		`INSERT INTO user_roles (user_id, role_id) VALUES ('user-1','role-1')`,
	}
	for _, stmt := range stmts {
		if _, err := repo.DB().ExecContext(ctx, stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestResolverDepartmentBlockOverridesRoleGrant(t *testing.T) {
	repo := newTestRepo(t)
	seedEngineerWithBlockedExecute(t, repo)

	r := NewResolver(repo)
	permitted, err := r.ResolveTools(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("resolve tools: %v", err)
	}
	if !permitted["read_file"] {
		t.Fatal("expected read_file to be permitted via role grant")
	}
	if permitted["execute"] {
		t.Fatal("expected execute to be blocked by department, despite role grant")
	}
}

func TestResolverCachesUntilInvalidated(t *testing.T) {
	repo := newTestRepo(t)
	seedEngineerWithBlockedExecute(t, repo)

	r := NewResolver(repo)
	ctx := context.Background()
	if _, err := r.ResolveTools(ctx, "user-1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// Grant a brand new tool without invalidating; cached result must not see it.
	if _, err := repo.DB().ExecContext(ctx, `INSERT INTO role_tool_permission (role_id, tool_name, can_use) VALUES ('role-1','glob',1)`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	permitted, err := r.ResolveTools(ctx, "user-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if permitted["glob"] {
		t.Fatal("expected stale cache to not yet see the new grant")
	}

	r.Invalidate("user-1")
	permitted, err = r.ResolveTools(ctx, "user-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !permitted["glob"] {
		t.Fatal("expected fresh resolve to see the new grant after invalidation")
	}
}

func TestIntersect(t *testing.T) {
	permitted := map[string]bool{"read_file": true, "ls": true}
	got := Intersect([]string{"read_file", "execute", "ls"}, permitted)
	if len(got) != 2 {
		t.Fatalf("expected 2 permitted tools, got %v", got)
	}
}
