package routing

import (
	"errors"
	"sync"
)

var ErrRegistryFrozen = errors.New("routing: registry is frozen")

// Registry accumulates controller declarations until the first compile pass
// consumes and freezes them. It is an ordinary value wired at the
// composition root, not package state.
type Registry struct {
	mu          sync.Mutex
	controllers []*Controller
	seen        map[*Controller]struct{}
	frozen      bool
}

func NewRegistry() *Registry {
	return &Registry{seen: make(map[*Controller]struct{})}
}

// Register adds controllers in order. Registering the same controller again
// is a no-op, so wiring code can be re-entered safely. After the registry
// has been read for compilation further registration is an error.
func (r *Registry) Register(controllers ...*Controller) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrRegistryFrozen
	}

	for _, c := range controllers {
		if c == nil {
			continue
		}
		if _, ok := r.seen[c]; ok {
			continue
		}
		r.seen[c] = struct{}{}
		r.controllers = append(r.controllers, c)
	}
	return nil
}

// Controllers returns the declaration-ordered set and freezes the registry.
func (r *Registry) Controllers() []*Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frozen = true
	out := make([]*Controller, len(r.controllers))
	copy(out, r.controllers)
	return out
}
