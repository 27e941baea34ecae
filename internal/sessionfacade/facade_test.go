package sessionfacade

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/opencode-ai/agentserver/internal/repository"
	"github.com/opencode-ai/agentserver/internal/sandbox"
	"github.com/opencode-ai/agentserver/internal/skills"
	"github.com/opencode-ai/agentserver/internal/turnengine"
	"github.com/opencode-ai/agentserver/pkg/types"
)

func noopEmit(turnengine.ClientEvent) {}

func newTestRepo(t *testing.T) *repository.SQLiteRepository {
	t.Helper()
	repo, err := repository.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedConversation(t *testing.T, repo *repository.SQLiteRepository, id, owner string) {
	t.Helper()
	conv := &types.Conversation{
		ID:          id,
		OwnerUserID: owner,
		CreatedAt:   time.Now().UnixMilli(),
		UpdatedAt:   time.Now().UnixMilli(),
	}
	if err := repo.CreateConversation(context.Background(), conv); err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
}

func TestStartTurn_RejectsNonOwner(t *testing.T) {
	repo := newTestRepo(t)
	seedConversation(t, repo, "conv-1", "owner-user")

	f := New(repo, nil, nil, nil, nil)

	_, err := f.StartTurn(context.Background(), StartTurnRequest{
		User:           types.User{ID: "someone-else"},
		ConversationID: "conv-1",
		Message:        "hello",
	}, noopEmit)

	if err == nil {
		t.Fatal("expected ErrNotOwner, got nil")
	}
}

func TestStartTurn_ConversationNotFound(t *testing.T) {
	repo := newTestRepo(t)
	f := New(repo, nil, nil, nil, nil)

	_, err := f.StartTurn(context.Background(), StartTurnRequest{
		User:           types.User{ID: "user-1"},
		ConversationID: "missing",
		Message:        "hello",
	}, noopEmit)

	if err == nil {
		t.Fatal("expected an error for a missing conversation")
	}
}

func TestQueueFor_ReturnsSameMutexForSameConversation(t *testing.T) {
	repo := newTestRepo(t)
	f := New(repo, nil, nil, nil, nil)

	a := f.queueFor("conv-1")
	b := f.queueFor("conv-1")
	c := f.queueFor("conv-2")

	if a != b {
		t.Error("queueFor should return the same mutex for the same conversation id")
	}
	if a == c {
		t.Error("queueFor should return distinct mutexes for distinct conversation ids")
	}
}

func TestBuildSystemPrompt_IncludesFilesTodosAndSkills(t *testing.T) {
	repo := newTestRepo(t)
	f := New(repo, nil, nil, nil, nil)

	catalog, err := skills.Load(context.Background(), repo, nil)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	prompt := f.buildSystemPrompt(
		[]string{"main.go", "README.md"},
		[]types.Todo{{Content: "write tests", Status: types.TodoInProgress}},
		catalog,
		sandbox.ImageConfig{Image: "agentserver/sandbox:latest", DisableNetwork: true},
	)

	for _, want := range []string{"main.go", "README.md", "write tests", "agentserver/sandbox:latest", "network access is disabled"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("system prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestNamesOf_ReturnsOnlyTrueEntries(t *testing.T) {
	set := map[string]bool{"a": true, "b": false, "c": true}
	got := namesOf(set)

	if len(got) != 2 {
		t.Fatalf("namesOf returned %d names, want 2: %v", len(got), got)
	}
	for _, n := range got {
		if n != "a" && n != "c" {
			t.Errorf("unexpected name %q", n)
		}
	}
}
