// Package execution contains the agent execution core: the per-agent
// mutual-exclusion guard and the orchestrator that drives decision cycles.
package execution

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Guard is the per-agent mutual-exclusion registry. It is the single
// authority for whether an execution is in flight; the durable ACTIVE status
// on the agent row is advisory for observers and never consulted as a lock.
type Guard struct {
	mu      sync.Mutex
	holders map[string]string // agent id -> holder token
	log     zerolog.Logger
}

// NewGuard creates a new execution guard
func NewGuard(log zerolog.Logger) *Guard {
	return &Guard{
		holders: make(map[string]string),
		log:     log.With().Str("component", "guard").Logger(),
	}
}

// TryAcquire attempts to take the guard for an agent without blocking.
// Returns the holder token and true on success, or "" and false when an
// execution is already in flight for the agent.
func (g *Guard) TryAcquire(agentID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, held := g.holders[agentID]; held {
		return "", false
	}

	token := uuid.New().String()
	g.holders[agentID] = token

	g.log.Debug().Str("agent_id", agentID).Msg("Guard acquired")
	return token, true
}

// Release frees the guard for an agent if token matches the current holder.
// A stale token (a reaper already force-released and someone else re-acquired)
// is a no-op, so a late finalizer can never unlock another holder's execution.
func (g *Guard) Release(agentID, token string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.holders[agentID] != token {
		return
	}

	delete(g.holders, agentID)
	g.log.Debug().Str("agent_id", agentID).Msg("Guard released")
}

// ForceRelease frees the guard for an agent regardless of holder. Used by the
// stuck-session reaper and by stop, where the original holder is presumed
// dead or abandoned. Returns true if a guard was actually held.
func (g *Guard) ForceRelease(agentID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, held := g.holders[agentID]; !held {
		return false
	}

	delete(g.holders, agentID)
	g.log.Debug().Str("agent_id", agentID).Msg("Guard force-released")
	return true
}

// Held reports whether an execution is in flight for the agent
func (g *Guard) Held(agentID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, held := g.holders[agentID]
	return held
}

// InFlight returns the number of executions currently holding a guard
func (g *Guard) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.holders)
}
