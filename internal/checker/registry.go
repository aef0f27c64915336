package checker

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// Mode selects which subset of registered checkers a run probes, and the
// total wall-clock budget for the run.
type Mode string

const (
	// ModeEmergency runs only the filesystem checker as a minimal smoke test.
	ModeEmergency Mode = "emergency"

	// ModeQuick runs filesystem, integration, and the database checker when
	// it is configured.
	ModeQuick Mode = "quick"

	// ModeFull runs every registered checker.
	ModeFull Mode = "full"
)

// ParseMode validates a mode string from the CLI.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeEmergency, ModeQuick, ModeFull:
		return Mode(s), nil
	}
	return "", eris.Errorf("checker: unknown mode %q (want emergency, quick, or full)", s)
}

// Budget returns the total wall-clock budget for one run in this mode.
func (m Mode) Budget() time.Duration {
	switch m {
	case ModeEmergency:
		return 10 * time.Second
	case ModeFull:
		return 3 * time.Minute
	default:
		return 30 * time.Second
	}
}

var quickSources = []Source{SourceFilesystem, SourceIntegration, SourceDatabase}

// Registry holds the set of known checkers. New sources are added by
// registering an implementation of the Checker contract; the aggregator
// never dispatches on concrete checker types.
type Registry struct {
	mu       sync.RWMutex
	checkers map[Source]Checker
	order    []Source
}

// NewRegistry creates an empty checker registry.
func NewRegistry() *Registry {
	return &Registry{checkers: make(map[Source]Checker)}
}

// Register adds a checker. Registering the same source twice is an error.
func (r *Registry) Register(c Checker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := c.Name()
	if _, exists := r.checkers[name]; exists {
		return eris.Errorf("checker: %q already registered", name)
	}
	r.checkers[name] = c
	r.order = append(r.order, name)
	return nil
}

// Get returns a registered checker by source.
func (r *Registry) Get(source Source) (Checker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.checkers[source]
	return c, ok
}

// Len returns the number of registered checkers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.checkers)
}

// List returns all registered checkers in registration order.
func (r *Registry) List() []Checker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Checker, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.checkers[name])
	}
	return out
}

// ForMode returns the checkers to run for the given mode, in registration
// order. Emergency is the filesystem smoke test; quick is a small fixed
// subset; full is everything registered.
func (r *Registry) ForMode(mode Mode) []Checker {
	switch mode {
	case ModeEmergency:
		if c, ok := r.Get(SourceFilesystem); ok {
			return []Checker{c}
		}
		return nil
	case ModeQuick:
		var out []Checker
		for _, s := range quickSources {
			if c, ok := r.Get(s); ok {
				out = append(out, c)
			}
		}
		return out
	default:
		return r.List()
	}
}
