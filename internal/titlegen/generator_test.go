package titlegen

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/opencode-ai/agentserver/internal/repository"
	"github.com/opencode-ai/agentserver/pkg/types"
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

func seedConversation(t *testing.T, repo *repository.SQLiteRepository, title string) string {
	t.Helper()
	conv := &types.Conversation{
		ID:          "conv-1",
		OwnerUserID: "user-1",
		Title:       title,
		CreatedAt:   time.Now().UnixMilli(),
		UpdatedAt:   time.Now().UnixMilli(),
	}
	if err := repo.CreateConversation(context.Background(), conv); err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	return conv.ID
}

func TestRun_GeneratesAndStoresTitle(t *testing.T) {
	repo := newTestRepo(t)
	convID := seedConversation(t, repo, "")

	gen := newWithCompleter(repo, func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
		return "调试生产环境报错", nil
	})

	gen.Run(context.Background(), convID, "why is prod throwing 500s", "checked the logs, found a nil deref")

	conv, err := repo.GetConversation(context.Background(), convID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if conv.Title != "调试生产环境报错" {
		t.Errorf("Title = %q, want generated title", conv.Title)
	}
}

func TestRun_SkipsWhenTitleAlreadySet(t *testing.T) {
	repo := newTestRepo(t)
	convID := seedConversation(t, repo, "Already named")

	called := false
	gen := newWithCompleter(repo, func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
		called = true
		return "should not be used", nil
	})

	gen.Run(context.Background(), convID, "hello", "hi")

	if called {
		t.Error("Run should not call the model when the conversation already has a non-default title")
	}
	conv, _ := repo.GetConversation(context.Background(), convID)
	if conv.Title != "Already named" {
		t.Errorf("Title = %q, should be unchanged", conv.Title)
	}
}

func TestRun_SkipsWhenTitleWonRaceBeforeWrite(t *testing.T) {
	repo := newTestRepo(t)
	convID := seedConversation(t, repo, "")

	gen := newWithCompleter(repo, func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
		// Simulate a concurrently scheduled run winning the race between
		// this run's pre-check and its write.
		if err := repo.UpdateConversationTitle(ctx, convID, "Winner wrote this", time.Now().UnixMilli()); err != nil {
			t.Fatalf("seeding race winner: %v", err)
		}
		return "Loser title", nil
	})

	gen.Run(context.Background(), convID, "hello", "hi")

	conv, _ := repo.GetConversation(context.Background(), convID)
	if conv.Title != "Winner wrote this" {
		t.Errorf("Title = %q, the earlier writer should win, not be overwritten", conv.Title)
	}
}

func TestRun_NoOpOnCompletionError(t *testing.T) {
	repo := newTestRepo(t)
	convID := seedConversation(t, repo, "")

	gen := newWithCompleter(repo, func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
		return "", errors.New("provider unavailable")
	})

	gen.Run(context.Background(), convID, "hello", "hi")

	conv, _ := repo.GetConversation(context.Background(), convID)
	if conv.Title != "" {
		t.Errorf("Title = %q, want still empty after a completion error", conv.Title)
	}
}

func TestRun_TruncatesPromptSnippetsAndTitle(t *testing.T) {
	repo := newTestRepo(t)
	convID := seedConversation(t, repo, "")

	var capturedPrompt string
	gen := newWithCompleter(repo, func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
		capturedPrompt = userPrompt
		return strings.Repeat("标", 40), nil // far longer than 15 runes
	})

	longUser := strings.Repeat("a", 500)
	longAssistant := strings.Repeat("b", 500)
	gen.Run(context.Background(), convID, longUser, longAssistant)

	if strings.Count(capturedPrompt, "a") > maxUserChars {
		t.Error("user message snippet was not truncated to maxUserChars")
	}
	if strings.Count(capturedPrompt, "b") > maxAssistantChars {
		t.Error("assistant snippet was not truncated to maxAssistantChars")
	}

	conv, _ := repo.GetConversation(context.Background(), convID)
	if got := []rune(conv.Title); len(got) != maxTitleChars {
		t.Errorf("stored title has %d runes, want exactly %d after truncation", len(got), maxTitleChars)
	}
}

func TestCleanTitle_StripsQuotesAndPunctuation(t *testing.T) {
	got := cleanTitle(`"调试生产环境报错。"` + "\nextra line ignored")
	want := "调试生产环境报错"
	if got != want {
		t.Errorf("cleanTitle = %q, want %q", got, want)
	}
}
