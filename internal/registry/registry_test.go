package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-ai/mcporch/internal/domain"
	mcperrors "github.com/mozilla-ai/mcporch/internal/errors"
)

func newTestRegistry(t *testing.T, names ...string) *Registry {
	t.Helper()

	r, err := NewRegistry(hclog.NewNullLogger())
	require.NoError(t, err)

	for _, n := range names {
		require.NoError(t, r.Register(testDescriptor(n)))
	}

	return r
}

func testDescriptor(name string) domain.ServerDescriptor {
	return domain.ServerDescriptor{
		Name:      name,
		Transport: domain.TransportHTTP,
		Host:      "localhost",
		Port:      8004,
		Enabled:   true,
		Args:      []string{"a"},
	}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, "calc")

	snap, err := r.Get("calc")
	require.NoError(t, err)
	require.Equal(t, "calc", snap.Descriptor.Name)
	require.Equal(t, domain.StatusStopped, snap.State.Status)
	require.Equal(t, domain.HealthStatusUnknown, snap.State.Health.Status)
	require.Zero(t, snap.State.Epoch)

	err = r.Register(testDescriptor("calc"))
	require.ErrorIs(t, err, mcperrors.ErrDuplicateServer)

	_, err = r.Get("ghost")
	require.ErrorIs(t, err, mcperrors.ErrServerNotFound)

	err = r.Register(domain.ServerDescriptor{Name: " "})
	require.ErrorIs(t, err, mcperrors.ErrBadRequest)
}

func TestRegistry_SnapshotsAreCopies(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, "calc")

	snap, err := r.Get("calc")
	require.NoError(t, err)
	snap.Descriptor.Args[0] = "mutated"
	snap.State.Status = domain.StatusRunning

	again, err := r.Get("calc")
	require.NoError(t, err)
	require.Equal(t, "a", again.Descriptor.Args[0])
	require.Equal(t, domain.StatusStopped, again.State.Status)
}

func TestRegistry_ListSorted(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, "weather", "calculator", "memory")

	list := r.List()
	require.Len(t, list, 3)
	require.Equal(t, "calculator", list[0].Descriptor.Name)
	require.Equal(t, "memory", list[1].Descriptor.Name)
	require.Equal(t, "weather", list[2].Descriptor.Name)

	require.Equal(t, []string{"calculator", "memory", "weather"}, r.Names())
}

func TestRegistry_UpdateRequiresStopped(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, "calc")

	updated := testDescriptor("calc")
	updated.Port = 9000
	require.NoError(t, r.Update("calc", updated))

	snap, err := r.Get("calc")
	require.NoError(t, err)
	require.Equal(t, 9000, snap.Descriptor.Port)

	_, err = r.Transition("calc", domain.StatusStarting, nil, domain.StatusStopped)
	require.NoError(t, err)

	err = r.Update("calc", updated)
	require.ErrorIs(t, err, mcperrors.ErrInvalidTransition)

	err = r.Update("ghost", testDescriptor("ghost"))
	require.ErrorIs(t, err, mcperrors.ErrServerNotFound)

	err = r.Update("calc", testDescriptor("other"))
	require.ErrorIs(t, err, mcperrors.ErrBadRequest)
}

func TestRegistry_RemoveRequiresStopped(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, "calc")

	_, err := r.Transition("calc", domain.StatusStarting, nil, domain.StatusStopped)
	require.NoError(t, err)
	require.ErrorIs(t, r.Remove("calc"), mcperrors.ErrInvalidTransition)

	_, err = r.Transition("calc", domain.StatusFailed, errors.New("boom"), domain.StatusStarting)
	require.NoError(t, err)
	_, err = r.Transition("calc", domain.StatusStopping, nil, domain.StatusFailed)
	require.NoError(t, err)
	_, err = r.Transition("calc", domain.StatusStopped, nil, domain.StatusStopping)
	require.NoError(t, err)

	require.NoError(t, r.Remove("calc"))
	_, err = r.Get("calc")
	require.ErrorIs(t, err, mcperrors.ErrServerNotFound)
	require.ErrorIs(t, r.Remove("calc"), mcperrors.ErrServerNotFound)
}

func TestRegistry_TransitionStateMachine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from domain.ServerStatus
		to   domain.ServerStatus
		ok   bool
	}{
		{domain.StatusStopped, domain.StatusStarting, true},
		{domain.StatusStopped, domain.StatusRunning, false},
		{domain.StatusStarting, domain.StatusRunning, true},
		{domain.StatusStarting, domain.StatusFailed, true},
		{domain.StatusStarting, domain.StatusStopped, false},
		{domain.StatusRunning, domain.StatusStopping, true},
		{domain.StatusRunning, domain.StatusUnhealthy, true},
		{domain.StatusRunning, domain.StatusStarting, false},
		{domain.StatusUnhealthy, domain.StatusRunning, true},
		{domain.StatusUnhealthy, domain.StatusStopping, true},
		{domain.StatusFailed, domain.StatusStarting, true},
		{domain.StatusFailed, domain.StatusStopping, true},
		{domain.StatusFailed, domain.StatusRunning, false},
		{domain.StatusStopping, domain.StatusStopped, true},
		{domain.StatusStopping, domain.StatusRunning, false},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("%s to %s", tc.from, tc.to), func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.ok, CanTransition(tc.from, tc.to))
		})
	}
}

func TestRegistry_TransitionEpochAndErrors(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, "calc")

	snap, err := r.Transition("calc", domain.StatusStarting, nil, domain.StatusStopped, domain.StatusFailed)
	require.NoError(t, err)
	require.Equal(t, uint64(1), snap.State.Epoch)

	snap, err = r.Transition("calc", domain.StatusFailed, errors.New("connection refused"), domain.StatusStarting)
	require.NoError(t, err)
	require.Equal(t, "connection refused", snap.State.LastError)

	snap, err = r.Transition("calc", domain.StatusStarting, nil, domain.StatusStopped, domain.StatusFailed)
	require.NoError(t, err)
	require.Equal(t, uint64(2), snap.State.Epoch)

	snap, err = r.Transition("calc", domain.StatusRunning, nil, domain.StatusStarting)
	require.NoError(t, err)
	require.Empty(t, snap.State.LastError)

	// Current status not among the expected ones.
	_, err = r.Transition("calc", domain.StatusStopping, nil, domain.StatusUnhealthy)
	require.ErrorIs(t, err, mcperrors.ErrInvalidTransition)
}

func TestRegistry_MutateErrorLeavesStateUnchanged(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, "calc")

	_, err := r.Mutate("calc", func(_ domain.ServerDescriptor, s *domain.ServerState) error {
		s.Status = domain.StatusRunning
		return errors.New("nope")
	})
	require.EqualError(t, err, "nope")

	snap, err := r.Get("calc")
	require.NoError(t, err)
	require.Equal(t, domain.StatusStopped, snap.State.Status)
}

func TestRegistry_ConcurrentTransitionsExactlyOneWins(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, "calc")

	const n = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Transition("calc", domain.StatusStarting, nil, domain.StatusStopped); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins)
}

func TestRegistry_Replace(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, "old")

	require.NoError(t, r.Replace([]domain.ServerDescriptor{testDescriptor("a"), testDescriptor("b")}))
	require.Equal(t, []string{"a", "b"}, r.Names())

	_, err := r.Transition("a", domain.StatusStarting, nil, domain.StatusStopped)
	require.NoError(t, err)
	require.ErrorIs(t, r.Replace(nil), mcperrors.ErrInvalidTransition)

	require.ErrorIs(
		t,
		r.Replace([]domain.ServerDescriptor{testDescriptor("x"), testDescriptor("x")}),
		mcperrors.ErrDuplicateServer,
	)
}
