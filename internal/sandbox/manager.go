package sandbox

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"
)

// ImageConfig describes the container image and skill access a sandbox
// should be started with.
type ImageConfig struct {
	Image          string
	BaseDir        string // host directory holding uploads/intermediate/skills
	AllowedSkills  []string
	DisableNetwork bool
}

const stopGracePeriod = 2 * time.Minute

// Manager owns one Sandbox per conversation, serializing first-creation so
// two concurrent Acquire calls for the same conversation never race to
// start two containers.
type Manager struct {
	runtime ContainerRuntime

	mu         sync.Mutex
	sandboxes  map[string]*Sandbox
	stopTimers map[string]*time.Timer
}

// NewManager constructs a Manager driving runtime.
func NewManager(runtime ContainerRuntime) *Manager {
	return &Manager{
		runtime:    runtime,
		sandboxes:  make(map[string]*Sandbox),
		stopTimers: make(map[string]*time.Timer),
	}
}

// Acquire returns the Sandbox for conversationID, creating it on first use.
// A pending ScheduleStop timer for conversationID is cancelled, since the
// conversation is active again.
func (m *Manager) Acquire(ctx context.Context, userID, conversationID string, cfg ImageConfig) (*Sandbox, error) {
	m.mu.Lock()
	if t, ok := m.stopTimers[conversationID]; ok {
		t.Stop()
		delete(m.stopTimers, conversationID)
	}
	sb, ok := m.sandboxes[conversationID]
	if !ok {
		sb = New(m.runtime, buildContainerSpec(userID, conversationID, cfg))
		m.sandboxes[conversationID] = sb
	}
	m.mu.Unlock()

	// ensure is serialized per Sandbox, so concurrent callers that found
	// the same entry wait for the one container start instead of racing.
	if _, err := sb.ensure(ctx); err != nil {
		m.mu.Lock()
		if m.sandboxes[conversationID] == sb {
			delete(m.sandboxes, conversationID)
		}
		m.mu.Unlock()
		return nil, fmt.Errorf("acquire sandbox for conversation %s: %w", conversationID, err)
	}
	return sb, nil
}

// ScheduleStop arranges for conversationID's sandbox to be stopped after a
// grace period, unless Acquire is called again first. Calling it again
// before the grace period elapses resets the timer rather than stacking.
func (m *Manager) ScheduleStop(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sb, ok := m.sandboxes[conversationID]
	if !ok {
		return
	}
	if t, ok := m.stopTimers[conversationID]; ok {
		t.Stop()
	}
	m.stopTimers[conversationID] = time.AfterFunc(stopGracePeriod, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = sb.Stop(ctx)

		m.mu.Lock()
		delete(m.sandboxes, conversationID)
		delete(m.stopTimers, conversationID)
		m.mu.Unlock()
	})
}

func buildContainerSpec(userID, conversationID string, cfg ImageConfig) ContainerSpec {
	mounts := []Mount{
		{
			HostPath:      filepath.Join(cfg.BaseDir, "uploads"),
			ContainerPath: "/workspace/uploads",
		},
		{
			HostPath:      filepath.Join(cfg.BaseDir, "intermediate"),
			ContainerPath: "/workspace/intermediate",
		},
	}
	for _, skill := range cfg.AllowedSkills {
		mounts = append(mounts, Mount{
			HostPath:      filepath.Join(cfg.BaseDir, "skills", skill),
			ContainerPath: filepath.Join("/workspace/skills", skill),
			ReadOnly:      true,
		})
	}

	return ContainerSpec{
		Name:       fmt.Sprintf("agentserver-%s-%s", userID, conversationID),
		Image:      cfg.Image,
		WorkingDir: "/workspace",
		Mounts:     mounts,
		DisableNet: cfg.DisableNetwork,
	}
}
