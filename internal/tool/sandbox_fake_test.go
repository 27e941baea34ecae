package tool

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/opencode-ai/agentserver/internal/sandbox"
	"github.com/opencode-ai/agentserver/pkg/types"
)

// fakeSkillCatalog is a minimal in-memory SkillCatalog for tests.
type fakeSkillCatalog struct {
	skills map[string]types.Skill
}

func newFakeSkillCatalog(skills ...types.Skill) *fakeSkillCatalog {
	c := &fakeSkillCatalog{skills: make(map[string]types.Skill)}
	for _, s := range skills {
		c.skills[s.Name] = s
	}
	return c
}

func (c *fakeSkillCatalog) List(ctx context.Context) ([]types.Skill, error) {
	var out []types.Skill
	names := make([]string, 0, len(c.skills))
	for name := range c.skills {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, c.skills[name])
	}
	return out, nil
}

func (c *fakeSkillCatalog) Get(ctx context.Context, name string) (types.Skill, error) {
	s, ok := c.skills[name]
	if !ok {
		return types.Skill{}, fmt.Errorf("skill not found: %s", name)
	}
	return s, nil
}

// fakeTodoAccessor is a minimal in-memory TodoAccessor for tests.
type fakeTodoAccessor struct {
	todos []types.Todo
}

func (a *fakeTodoAccessor) GetTodos() []types.Todo { return a.todos }

func (a *fakeTodoAccessor) SetTodos(todos []types.Todo) error {
	if err := types.ValidateTodos(todos); err != nil {
		return err
	}
	a.todos = todos
	return nil
}

// fakeRuntime is a minimal in-memory stand-in for sandbox.ContainerRuntime,
// just enough to drive the shell commands the tool package's rewritten
// built-ins issue through a real *sandbox.Sandbox.
type fakeRuntime struct {
	files map[string]string
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{files: make(map[string]string)}
}

func (f *fakeRuntime) EnsureContainer(ctx context.Context, spec sandbox.ContainerSpec) (string, error) {
	return "fake-container", nil
}

func (f *fakeRuntime) CopyToContainer(ctx context.Context, containerID, path string, content io.Reader) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	f.files[path] = string(data)
	return nil
}

func (f *fakeRuntime) CopyFromContainer(ctx context.Context, containerID, path string) (io.ReadCloser, error) {
	data, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", path)
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func (f *fakeRuntime) Stop(ctx context.Context, containerID string) error { return nil }

func (f *fakeRuntime) Exec(ctx context.Context, containerID string, command string) (string, int, bool, error) {
	switch {
	case strings.HasPrefix(command, "cat -- "):
		path := unquoteArg(strings.TrimPrefix(command, "cat -- "))
		data, ok := f.files[path]
		if !ok {
			return "cat: " + path + ": No such file or directory", 1, false, nil
		}
		return data, 0, false, nil

	case strings.HasPrefix(command, "test -f "):
		path := unquoteArg(strings.SplitN(strings.TrimPrefix(command, "test -f "), " && ", 2)[0])
		if _, ok := f.files[path]; ok {
			return "yes", 0, false, nil
		}
		return "no", 0, false, nil

	case strings.HasPrefix(command, "ls -1a -- "):
		dir := unquoteArg(strings.TrimPrefix(command, "ls -1a -- "))
		var names []string
		seen := map[string]bool{}
		prefix := strings.TrimSuffix(dir, "/") + "/"
		for path := range f.files {
			if !strings.HasPrefix(path, prefix) {
				continue
			}
			rest := strings.TrimPrefix(path, prefix)
			name := strings.SplitN(rest, "/", 2)[0]
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		sort.Strings(names)
		return strings.Join(names, "\n") + "\n", 0, false, nil

	case strings.HasPrefix(command, "cd ") && strings.Contains(command, "find . -type f"):
		base := unquoteArg(strings.TrimPrefix(strings.SplitN(command, " && ", 2)[0], "cd "))
		var out []string
		prefix := strings.TrimSuffix(base, "/") + "/"
		for path := range f.files {
			if strings.HasPrefix(path, prefix) {
				out = append(out, "./"+strings.TrimPrefix(path, prefix))
			}
		}
		sort.Strings(out)
		return strings.Join(out, "\n") + "\n", 0, false, nil

	case strings.HasPrefix(command, "grep -rn"), strings.HasPrefix(command, "grep -rl"), strings.HasPrefix(command, "grep -rc"):
		return f.fakeGrep(command), 0, false, nil

	case strings.HasPrefix(command, "find /workspace/uploads"):
		var out []string
		for path := range f.files {
			if strings.HasPrefix(path, "/workspace/uploads") || strings.HasPrefix(path, "/workspace/intermediate") || strings.HasPrefix(path, "/workspace/skills") {
				out = append(out, path)
			}
		}
		sort.Strings(out)
		return strings.Join(out, "\n") + "\n", 0, false, nil

	default:
		// Treat anything else (execute tool / skill scripts) as a recorded
		// echo command for assertions in execute-tool tests.
		return "ran: " + command, 0, false, nil
	}
}

func (f *fakeRuntime) fakeGrep(command string) string {
	// command shape: grep -r{n,l,c} -- 'pattern' [--include='glob'] path
	mode := command[6] // 'n', 'l', or 'c'
	markerIdx := strings.Index(command, "-- ")
	rest := command[markerIdx+len("-- "):]
	quote := rest[0]
	end := strings.IndexByte(rest[1:], byte(quote))
	pattern := rest[1 : end+1]

	counts := make(map[string]int)
	var order []string
	for path, content := range f.files {
		for _, line := range strings.Split(content, "\n") {
			if strings.Contains(line, pattern) {
				if counts[path] == 0 {
					order = append(order, path)
				}
				counts[path]++
			}
		}
	}
	sort.Strings(order)

	switch mode {
	case 'l':
		return strings.Join(order, "\n")
	case 'c':
		var lines []string
		for _, path := range order {
			lines = append(lines, fmt.Sprintf("%s:%d", path, counts[path]))
		}
		return strings.Join(lines, "\n")
	default:
		var matches []string
		for _, path := range order {
			for i, line := range strings.Split(f.files[path], "\n") {
				if strings.Contains(line, pattern) {
					matches = append(matches, fmt.Sprintf("%s:%d:%s", path, i+1, line))
				}
			}
		}
		return strings.Join(matches, "\n")
	}
}

func unquoteArg(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, " && echo yes || echo no")
	s = strings.TrimPrefix(s, "'")
	s = strings.TrimSuffix(s, "'")
	return strings.ReplaceAll(s, `'\''`, "'")
}

func newFakeSandbox() *sandbox.Sandbox {
	return sandbox.New(newFakeRuntime(), sandbox.ContainerSpec{
		Name:       "test",
		Image:      "test-image",
		WorkingDir: sandbox.WorkspaceRoot,
	})
}

func testContext() *Context {
	return &Context{
		ConversationID: "test-conversation",
		CallID:         "test-call",
		Sandbox:        newFakeSandbox(),
		AbortCh:        make(chan struct{}),
	}
}
