package domain

import "time"

// ServerState is the mutable runtime state the registry keeps alongside each descriptor.
type ServerState struct {
	Status ServerStatus

	// Epoch increases every time a start is attempted.
	// Results computed against an older epoch are discarded.
	Epoch uint64

	Health    ServerHealth
	LastError string
	UpdatedAt time.Time
}

// ServerSnapshot is a consistent, copied view of a registry entry.
type ServerSnapshot struct {
	Descriptor ServerDescriptor
	State      ServerState
}

// Clone returns a deep copy of the state.
func (s ServerState) Clone() ServerState {
	c := s
	c.Health = s.Health.Clone()
	return c
}
