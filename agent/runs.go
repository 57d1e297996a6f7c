package agent

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// RunManager tracks in-flight turns so the caller can cancel one by id.
type RunManager struct {
	mu   sync.Mutex
	runs map[string]context.CancelFunc
}

func NewRunManager() *RunManager {
	return &RunManager{runs: make(map[string]context.CancelFunc)}
}

// Begin registers a run and returns its id plus a derived context that Abort
// cancels. id may be empty, in which case one is assigned.
func (m *RunManager) Begin(ctx context.Context, id string) (string, context.Context, context.CancelFunc) {
	if id == "" {
		id = uuid.NewString()
	}
	runCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.runs[id] = cancel
	m.mu.Unlock()

	return id, runCtx, func() {
		cancel()
		m.mu.Lock()
		delete(m.runs, id)
		m.mu.Unlock()
	}
}

// Abort cancels the run with the given id. Unknown ids are a no-op; the run
// may have already finished.
func (m *RunManager) Abort(id string) bool {
	m.mu.Lock()
	cancel, ok := m.runs[id]
	m.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Active returns the number of in-flight runs.
func (m *RunManager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}
