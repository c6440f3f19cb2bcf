package realm

import (
	"cmp"
	"errors"
	"slices"
	"sync"

	"github.com/roach88/realmbind/internal/engine"
)

// realmRegistry tracks every open realm of the process.
type realmRegistry struct {
	mu     sync.Mutex
	realms map[*Realm]struct{}
}

var registry = &realmRegistry{realms: make(map[*Realm]struct{})}

func (g *realmRegistry) insert(r *Realm) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.realms[r] = struct{}{}
}

func (g *realmRegistry) remove(r *Realm) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.realms, r)
}

// take empties the registry and returns what it held.
func (g *realmRegistry) take() []*Realm {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Realm, 0, len(g.realms))
	for r := range g.realms {
		out = append(out, r)
	}
	clear(g.realms)
	return out
}

func (g *realmRegistry) list() []*Realm {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Realm, 0, len(g.realms))
	for r := range g.realms {
		out = append(out, r)
	}
	return out
}

// Realms returns the open realms ordered by path, then id.
func Realms() []*Realm {
	out := registry.list()
	slices.SortFunc(out, func(a, b *Realm) int {
		return cmp.Or(cmp.Compare(a.path, b.path), cmp.Compare(a.ID(), b.ID()))
	})
	return out
}

// ClearTestState invalidates every open realm and resets every engine they
// used, plus the default engine. Intended for test isolation.
func ClearTestState() error {
	open := registry.take()

	engines := []engine.Proxy{engine.Default()}
	for _, r := range open {
		r.invalidate()
		if !slices.Contains(engines, r.engine) {
			engines = append(engines, r.engine)
		}
	}

	var errs []error
	for _, e := range engines {
		if err := e.ClearTestState(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return &Error{Kind: ErrState, Op: "clear test state", Err: err}
	}
	return nil
}
