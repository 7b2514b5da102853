// Package registry holds the descriptors and runtime state of every known tool server.
// The map of servers is guarded by one lock and each entry by its own, so work on one server
// never waits on another.
package registry

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/mozilla-ai/mcporch/internal/domain"
	"github.com/mozilla-ai/mcporch/internal/errors"
)

// allowedTransitions is the lifecycle state machine.
var allowedTransitions = map[domain.ServerStatus][]domain.ServerStatus{
	domain.StatusStopped:   {domain.StatusStarting},
	domain.StatusStarting:  {domain.StatusRunning, domain.StatusFailed},
	domain.StatusRunning:   {domain.StatusStopping, domain.StatusUnhealthy},
	domain.StatusUnhealthy: {domain.StatusRunning, domain.StatusStopping},
	domain.StatusFailed:    {domain.StatusStarting, domain.StatusStopping},
	domain.StatusStopping:  {domain.StatusStopped},
}

// MutateFunc changes the runtime state of an entry in place.
// The descriptor is a copy and changes to it are ignored.
type MutateFunc func(desc domain.ServerDescriptor, state *domain.ServerState) error

// Registry is the in-memory store of servers.
// NewRegistry should be used to create instances of Registry.
type Registry struct {
	logger hclog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu      sync.RWMutex
	desc    domain.ServerDescriptor
	state   domain.ServerState
	removed bool
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger hclog.Logger) (*Registry, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &Registry{
		logger:  logger.Named("registry"),
		now:     func() time.Time { return time.Now().UTC() },
		entries: make(map[string]*entry),
	}, nil
}

// CanTransition reports whether the state machine permits moving from one status to another.
func CanTransition(from, to domain.ServerStatus) bool {
	return slices.Contains(allowedTransitions[from], to)
}

// Register adds a new server in the stopped state.
func (r *Registry) Register(desc domain.ServerDescriptor) error {
	name := strings.TrimSpace(desc.Name)
	if name == "" {
		return fmt.Errorf("%w: server name cannot be empty", errors.ErrBadRequest)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %s", errors.ErrDuplicateServer, name)
	}

	r.entries[name] = r.newEntry(desc)
	r.logger.Debug("Registered server", "server", name)

	return nil
}

// Update replaces the descriptor of a stopped server.
func (r *Registry) Update(name string, desc domain.ServerDescriptor) error {
	if desc.Name != name {
		return fmt.Errorf("%w: descriptor name '%s' does not match '%s'", errors.ErrBadRequest, desc.Name, name)
	}

	e, err := r.lookup(name)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return fmt.Errorf("%w: %s", errors.ErrServerNotFound, name)
	}
	if e.state.Status != domain.StatusStopped {
		return fmt.Errorf(
			"%w: server '%s' must be stopped to update (status: %s)",
			errors.ErrInvalidTransition,
			name,
			e.state.Status,
		)
	}

	e.desc = desc.Clone()
	e.state.UpdatedAt = r.now()

	return nil
}

// Remove deletes a stopped server.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrServerNotFound, name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Status != domain.StatusStopped {
		return fmt.Errorf(
			"%w: server '%s' must be stopped to remove (status: %s)",
			errors.ErrInvalidTransition,
			name,
			e.state.Status,
		)
	}

	e.removed = true
	delete(r.entries, name)
	r.logger.Debug("Removed server", "server", name)

	return nil
}

// Replace swaps the whole set of servers for descs.
// Every existing server must be stopped.
func (r *Registry) Replace(descs []domain.ServerDescriptor) error {
	next := make(map[string]*entry, len(descs))
	for _, d := range descs {
		if _, exists := next[d.Name]; exists {
			return fmt.Errorf("%w: %s", errors.ErrDuplicateServer, d.Name)
		}
		next[d.Name] = r.newEntry(d)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for name, e := range r.entries {
		e.mu.Lock()
		status := e.state.Status
		e.mu.Unlock()
		if status != domain.StatusStopped {
			return fmt.Errorf(
				"%w: server '%s' must be stopped to replace (status: %s)",
				errors.ErrInvalidTransition,
				name,
				status,
			)
		}
	}

	for _, e := range r.entries {
		e.mu.Lock()
		e.removed = true
		e.mu.Unlock()
	}
	r.entries = next

	return nil
}

// Get returns a snapshot of one server.
func (r *Registry) Get(name string) (domain.ServerSnapshot, error) {
	e, err := r.lookup(name)
	if err != nil {
		return domain.ServerSnapshot{}, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.removed {
		return domain.ServerSnapshot{}, fmt.Errorf("%w: %s", errors.ErrServerNotFound, name)
	}

	return e.snapshot(), nil
}

// List returns snapshots of every server ordered by name.
func (r *Registry) List() []domain.ServerSnapshot {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]domain.ServerSnapshot, 0, len(entries))
	for _, e := range entries {
		e.mu.RLock()
		if !e.removed {
			out = append(out, e.snapshot())
		}
		e.mu.RUnlock()
	}

	slices.SortFunc(out, func(a, b domain.ServerSnapshot) int {
		return strings.Compare(a.Descriptor.Name, b.Descriptor.Name)
	})

	return out
}

// Names returns the sorted names of every server.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}

// Transition moves a server to status to, provided its current status is one of from and the move is permitted.
// Entering starting increments the epoch and resets cached health. A non-nil cause is recorded as the last error;
// reaching running clears it.
func (r *Registry) Transition(
	name string,
	to domain.ServerStatus,
	cause error,
	from ...domain.ServerStatus,
) (domain.ServerSnapshot, error) {
	return r.Mutate(name, func(_ domain.ServerDescriptor, state *domain.ServerState) error {
		current := state.Status
		if !slices.Contains(from, current) || !CanTransition(current, to) {
			return fmt.Errorf(
				"%w: server '%s' cannot move from %s to %s",
				errors.ErrInvalidTransition,
				name,
				current,
				to,
			)
		}

		state.Status = to

		switch to {
		case domain.StatusStarting:
			state.Epoch++
			state.Health = domain.ServerHealth{Name: name, Status: domain.HealthStatusUnknown}
		case domain.StatusRunning:
			state.LastError = ""
		}

		if cause != nil {
			state.LastError = cause.Error()
		}

		r.logger.Debug("Server status changed", "server", name, "from", current, "to", to)

		return nil
	})
}

// Mutate applies fn to the server's runtime state under the entry lock.
// If fn returns an error the state is left unchanged.
func (r *Registry) Mutate(name string, fn MutateFunc) (domain.ServerSnapshot, error) {
	e, err := r.lookup(name)
	if err != nil {
		return domain.ServerSnapshot{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return domain.ServerSnapshot{}, fmt.Errorf("%w: %s", errors.ErrServerNotFound, name)
	}

	next := e.state.Clone()
	if err := fn(e.desc.Clone(), &next); err != nil {
		return domain.ServerSnapshot{}, err
	}

	next.UpdatedAt = r.now()
	e.state = next

	return e.snapshot(), nil
}

func (r *Registry) lookup(name string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrServerNotFound, name)
	}

	return e, nil
}

func (r *Registry) newEntry(desc domain.ServerDescriptor) *entry {
	return &entry{
		desc: desc.Clone(),
		state: domain.ServerState{
			Status:    domain.StatusStopped,
			Health:    domain.ServerHealth{Name: desc.Name, Status: domain.HealthStatusUnknown},
			UpdatedAt: r.now(),
		},
	}
}

// snapshot must be called with the entry lock held.
func (e *entry) snapshot() domain.ServerSnapshot {
	return domain.ServerSnapshot{
		Descriptor: e.desc.Clone(),
		State:      e.state.Clone(),
	}
}
