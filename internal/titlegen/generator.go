// Package titlegen generates short conversation titles in the background
// after a turn completes, replacing a conversation's default placeholder
// title.
package titlegen

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/opencode-ai/agentserver/internal/event"
	"github.com/opencode-ai/agentserver/internal/provider"
	"github.com/opencode-ai/agentserver/internal/repository"
)

const titleSystemPrompt = `You are a title generator. You output ONLY a conversation title in Chinese, nothing else.

Rules:
- At most 15 characters, in Chinese
- No punctuation, no quotes, no explanations
- Capture what the user actually asked for
- Always output something meaningful`

const (
	maxUserChars      = 200
	maxAssistantChars = 300
	maxTitleChars     = 15
)

// complete resolves the default small-ish model and drains its completion
// into a single string. Extracted from Run so tests can substitute a fake
// that doesn't need a real eino stream reader.
type complete func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

// Generator runs TitleGenerator.Run as spec'd: small model, idempotent,
// detached from the request that triggered it.
type Generator struct {
	repo     repository.Repository
	complete complete
}

// New builds a Generator. repo must be a handle independent of any single
// request's lifetime — a background task that outlives the HTTP request
// that scheduled it must not read from a context-scoped connection the
// request handler may have already torn down. Since internal/repository
// wraps a long-lived *sql.DB connection pool rather than a per-request
// session object, the same Repository instance used elsewhere already
// satisfies this; Generator takes it as a plain dependency rather than a
// factory.
func New(registry *provider.Registry, repo repository.Repository) *Generator {
	return &Generator{repo: repo, complete: registryComplete(registry)}
}

// newWithCompleter builds a Generator around a fake completer, for tests
// that want to exercise Run's idempotency/truncation logic without a real
// provider or eino stream reader.
func newWithCompleter(repo repository.Repository, fn complete) *Generator {
	return &Generator{repo: repo, complete: fn}
}

// registryComplete builds the production complete func: resolve the
// default model through the registry, issue a completion, drain the
// stream into a string.
func registryComplete(registry *provider.Registry) complete {
	return func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
		model, err := registry.DefaultModel()
		if err != nil {
			return "", err
		}
		prov, err := registry.Get(model.ProviderID)
		if err != nil {
			return "", err
		}

		stream, err := prov.CreateCompletion(ctx, &provider.CompletionRequest{
			Model: model.ID,
			Messages: []*schema.Message{
				{Role: schema.System, Content: systemPrompt},
				{Role: schema.User, Content: userPrompt},
			},
			MaxTokens: 64,
		})
		if err != nil {
			return "", err
		}
		defer stream.Close()

		var sb strings.Builder
		for {
			msg, err := stream.Recv()
			if err == io.EOF {
				break
			}
			if err != nil {
				return "", err
			}
			sb.WriteString(msg.Content)
		}
		return sb.String(), nil
	}
}

// Run generates and stores a title for conversationID from the first turn's
// user message and assistant response. Safe to call concurrently for the
// same conversation: it re-checks whether a title is still needed both
// before calling the model (cheap early exit) and immediately before the
// write (closes the race where two turns schedule this concurrently).
func (g *Generator) Run(ctx context.Context, conversationID, userMessage, assistantText string) {
	conv, err := g.repo.GetConversation(ctx, conversationID)
	if err != nil || conv == nil || !conv.IsDefaultTitle() {
		return
	}

	userSnippet := truncateRunes(userMessage, maxUserChars)
	assistantSnippet := truncateRunes(assistantText, maxAssistantChars)
	userPrompt := "User message:\n" + userSnippet + "\n\nAssistant response:\n" + assistantSnippet

	raw, err := g.complete(ctx, titleSystemPrompt, userPrompt)
	if err != nil {
		return
	}

	title := cleanTitle(raw)
	if title == "" {
		return
	}

	// Re-check under a fresh read to close the race two concurrently
	// scheduled runs would otherwise hit (spec scenario: first turn's task
	// already wrote a title by the time this one reaches the write).
	conv, err = g.repo.GetConversation(ctx, conversationID)
	if err != nil || conv == nil || !conv.IsDefaultTitle() {
		return
	}

	if err := g.repo.UpdateConversationTitle(ctx, conversationID, title, time.Now().UnixMilli()); err != nil {
		return
	}

	conv.Title = title
	event.PublishSync(event.Event{
		Type: event.ConversationUpdated,
		Data: event.ConversationUpdatedData{Conversation: conv},
	})
}

// cleanTitle takes the model's raw output and trims it to a single,
// punctuation-free line of at most maxTitleChars runes.
func cleanTitle(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			raw = line
			break
		}
	}
	raw = strings.Trim(raw, `"'「」『』.,，。!！`)
	return truncateRunes(raw, maxTitleChars)
}

// truncateRunes truncates s to at most n runes, which matters here because
// Chinese titles and multi-byte input make a byte-length truncation cut
// mid-character.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
