package chat

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/windward-labs/tripsmith/pkg/repository"
	"golang.org/x/sync/singleflight"
)

// UserContext bundles the per-user handles a turn needs: the bound memory
// gate, the conversation agent, and the history store. One instance per
// active user for the process lifetime, evicted only on an explicit reset.
type UserContext struct {
	UserID       string
	Orchestrator *Orchestrator
	History      repository.HistoryStore
	Memories     repository.MemoryStore
}

// ContextRegistry caches UserContexts with race-safe lazy construction: at
// most one construction runs per user id no matter how many callers arrive
// concurrently, and every caller observes the same instance.
type ContextRegistry struct {
	mu       sync.RWMutex
	contexts map[string]*UserContext
	group    singleflight.Group
	build    func(userID string) (*UserContext, error)
}

func NewContextRegistry(build func(userID string) (*UserContext, error)) *ContextRegistry {
	return &ContextRegistry{
		contexts: make(map[string]*UserContext),
		build:    build,
	}
}

// Get returns the cached context for the user, constructing it on first use
func (r *ContextRegistry) Get(ctx context.Context, userID string) (*UserContext, error) {
	r.mu.RLock()
	uc, ok := r.contexts[userID]
	r.mu.RUnlock()
	if ok {
		return uc, nil
	}

	v, err, _ := r.group.Do(userID, func() (any, error) {
		r.mu.RLock()
		uc, ok := r.contexts[userID]
		r.mu.RUnlock()
		if ok {
			return uc, nil
		}

		uc, err := r.build(userID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to build user context", goerr.V("user_id", userID))
		}

		r.mu.Lock()
		r.contexts[userID] = uc
		r.mu.Unlock()
		return uc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*UserContext), nil
}

// Evict drops the cached context so the next Get rebuilds it. Used after a
// memory reset.
func (r *ContextRegistry) Evict(userID string) {
	r.mu.Lock()
	delete(r.contexts, userID)
	r.mu.Unlock()
}
