package sandbox

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	DefaultExecTimeout = 120 * time.Second
	MaxExecTimeout     = 600 * time.Second
	MaxOutputBytes     = 30000
)

// WriteResult describes the outcome of Write.
type WriteResult struct {
	BytesWritten int
	Created      bool
}

// EditResult describes the outcome of Edit.
type EditResult struct {
	Replacements int
	Diff         string
}

// Sandbox binds one conversation to one isolated container. All Execute
// calls are serialized through execMu so concurrent tool calls from the
// same turn queue rather than racing inside the container's shell.
type Sandbox struct {
	runtime ContainerRuntime
	spec    ContainerSpec

	execMu      sync.Mutex
	containerID string
	idMu        sync.Mutex
}

// New constructs a Sandbox bound to spec. The container is created lazily
// on first use via EnsureContainer.
func New(runtime ContainerRuntime, spec ContainerSpec) *Sandbox {
	return &Sandbox{runtime: runtime, spec: spec}
}

func (s *Sandbox) ensure(ctx context.Context) (string, error) {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	if s.containerID != "" {
		return s.containerID, nil
	}
	id, err := s.runtime.EnsureContainer(ctx, s.spec)
	if err != nil {
		return "", err
	}
	s.containerID = id
	return id, nil
}

// Execute runs command inside the container, enforcing timeout and output
// truncation. If the runtime reports the container missing, the sandbox
// recreates it once and retries transparently.
func (s *Sandbox) Execute(ctx context.Context, command string, timeout time.Duration) (ExecResult, error) {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	if timeout > MaxExecTimeout {
		timeout = MaxExecTimeout
	}

	result, err := s.executeOnce(ctx, command, timeout)
	if err == nil || !isContainerMissing(err) {
		return result, err
	}

	s.idMu.Lock()
	s.containerID = ""
	s.idMu.Unlock()
	return s.executeOnce(ctx, command, timeout)
}

func (s *Sandbox) executeOnce(ctx context.Context, command string, timeout time.Duration) (ExecResult, error) {
	id, err := s.ensure(ctx)
	if err != nil {
		return ExecResult{}, err
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	output, exitCode, timedOut, err := s.runtime.Exec(execCtx, id, command)
	if err != nil {
		return ExecResult{}, err
	}

	truncated := false
	if len(output) > MaxOutputBytes {
		output = output[:MaxOutputBytes] + "\n\n(Output truncated)"
		truncated = true
	}
	if timedOut {
		output += fmt.Sprintf("\n\n(Command timed out after %v)", timeout)
	}

	return ExecResult{Output: output, ExitCode: exitCode, TimedOut: timedOut, Truncated: truncated}, nil
}

func isContainerMissing(err error) bool {
	return err != nil && strings.Contains(err.Error(), "No such container")
}

// Read returns path's contents as numbered lines, optionally windowed by
// offset/limit (both zero-based; limit of 0 means "to end of file").
func (s *Sandbox) Read(ctx context.Context, path string, offset, limit int) (string, error) {
	result, err := s.Execute(ctx, fmt.Sprintf("cat -- %s", shellQuote(path)), DefaultExecTimeout)
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("read %s: %s", path, result.Output)
	}

	lines := strings.Split(result.Output, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if offset > len(lines) {
		offset = len(lines)
	}
	end := len(lines)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	var out strings.Builder
	for i := offset; i < end; i++ {
		fmt.Fprintf(&out, "%6d\t%s\n", i+1, lines[i])
	}
	return out.String(), nil
}

// ReadRaw returns path's contents verbatim, with no line-number annotation.
// Used where the caller needs the file as-is (skill bodies, resources)
// rather than the display-oriented format Read produces for the model.
func (s *Sandbox) ReadRaw(ctx context.Context, path string) (string, error) {
	result, err := s.Execute(ctx, fmt.Sprintf("cat -- %s", shellQuote(path)), DefaultExecTimeout)
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("read %s: %s", path, result.Output)
	}
	return result.Output, nil
}

// Write overwrites path's contents.
func (s *Sandbox) Write(ctx context.Context, path string, content string) (WriteResult, error) {
	id, err := s.ensure(ctx)
	if err != nil {
		return WriteResult{}, err
	}
	existed, _ := s.Execute(ctx, fmt.Sprintf("test -f %s && echo yes || echo no", shellQuote(path)), DefaultExecTimeout)

	if err := s.runtime.CopyToContainer(ctx, id, path, bytes.NewReader([]byte(content))); err != nil {
		return WriteResult{}, err
	}
	return WriteResult{BytesWritten: len(content), Created: strings.TrimSpace(existed.Output) != "yes"}, nil
}

// Edit replaces old with new in path. It fails unless old occurs exactly
// once, unless replaceAll is set, in which case every occurrence is
// replaced.
func (s *Sandbox) Edit(ctx context.Context, path string, old, replacement string, replaceAll bool) (EditResult, error) {
	result, err := s.Execute(ctx, fmt.Sprintf("cat -- %s", shellQuote(path)), DefaultExecTimeout)
	if err != nil {
		return EditResult{}, err
	}
	if result.ExitCode != 0 {
		return EditResult{}, fmt.Errorf("read %s: %s", path, result.Output)
	}
	original := result.Output

	count := strings.Count(original, old)
	if count == 0 {
		return EditResult{}, fmt.Errorf("old string not found in %s", path)
	}
	if !replaceAll && count > 1 {
		return EditResult{}, fmt.Errorf("old string is not unique in %s: found %d occurrences", path, count)
	}

	var updated string
	if replaceAll {
		updated = strings.ReplaceAll(original, old, replacement)
	} else {
		updated = strings.Replace(original, old, replacement, 1)
	}

	if _, err := s.Write(ctx, path, updated); err != nil {
		return EditResult{}, err
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(original, updated, false)
	return EditResult{Replacements: count, Diff: dmp.DiffPrettyText(diffs)}, nil
}

// Glob lists files under base matching pattern.
func (s *Sandbox) Glob(ctx context.Context, pattern, base string) ([]string, error) {
	if base == "" {
		base = "."
	}
	result, err := s.Execute(ctx, fmt.Sprintf("cd %s && find . -type f 2>/dev/null", shellQuote(base)), DefaultExecTimeout)
	if err != nil {
		return nil, err
	}

	var matches []string
	scanner := bufio.NewScanner(strings.NewReader(result.Output))
	for scanner.Scan() {
		rel := strings.TrimPrefix(scanner.Text(), "./")
		ok, err := doublestar.Match(pattern, rel)
		if err == nil && ok {
			matches = append(matches, rel)
		}
	}
	sort.Strings(matches)
	return matches, nil
}

// GrepOutputMode selects what Grep reports: matching lines, owning file
// names, or per-file match counts.
type GrepOutputMode string

const (
	GrepOutputContent   GrepOutputMode = "content"
	GrepOutputFilesOnly GrepOutputMode = "files_with_matches"
	GrepOutputCount     GrepOutputMode = "count"
)

// Grep searches path (or the whole workspace) for pattern, optionally
// restricted to files matching glob, reporting results per mode.
func (s *Sandbox) Grep(ctx context.Context, pattern, path, glob string, mode GrepOutputMode) (string, error) {
	cmd := "grep -r"
	switch mode {
	case GrepOutputFilesOnly:
		cmd += "l"
	case GrepOutputCount:
		cmd += "c"
	default:
		cmd += "n"
	}
	cmd += " -- " + shellQuote(pattern)
	if glob != "" {
		cmd += " --include=" + shellQuote(glob)
	}
	if path != "" {
		cmd += " " + shellQuote(path)
	} else {
		cmd += " ."
	}
	result, err := s.Execute(ctx, cmd, DefaultExecTimeout)
	if err != nil {
		return "", err
	}
	return result.Output, nil
}

// Ls lists the immediate entries of path.
func (s *Sandbox) Ls(ctx context.Context, path string) ([]string, error) {
	if path == "" {
		path = "."
	}
	result, err := s.Execute(ctx, fmt.Sprintf("ls -1a -- %s", shellQuote(path)), DefaultExecTimeout)
	if err != nil {
		return nil, err
	}
	var entries []string
	for _, line := range strings.Split(result.Output, "\n") {
		if line == "" || line == "." || line == ".." {
			continue
		}
		entries = append(entries, line)
	}
	return entries, nil
}

// DiscoverFiles lists the contents of /workspace/{uploads,intermediate,skills},
// excluding SKILL.md noise from the skills subtree.
func (s *Sandbox) DiscoverFiles(ctx context.Context) ([]string, error) {
	result, err := s.Execute(ctx,
		"find /workspace/uploads /workspace/intermediate /workspace/skills -type f 2>/dev/null",
		DefaultExecTimeout)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(result.Output, "\n") {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/workspace/skills") && strings.HasSuffix(line, "/SKILL.md") {
			continue
		}
		files = append(files, line)
	}
	return files, nil
}

// Stop stops (but does not remove) the sandbox's container.
func (s *Sandbox) Stop(ctx context.Context) error {
	s.idMu.Lock()
	id := s.containerID
	s.idMu.Unlock()
	if id == "" {
		return nil
	}
	return s.runtime.Stop(ctx, id)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
