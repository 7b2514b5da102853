package domain

import "time"

const (
	HealthStatusOK          HealthStatus = "ok"
	HealthStatusTimeout     HealthStatus = "timeout"
	HealthStatusUnreachable HealthStatus = "unreachable"
	HealthStatusUnknown     HealthStatus = "unknown"
)

// HealthStatus represents the result of the most recent probe of a tool server.
type HealthStatus string

// ServerHealth tracks the cached health state for a tool server.
type ServerHealth struct {
	Name                string
	Status              HealthStatus
	Latency             *time.Duration
	LastChecked         *time.Time
	LastSuccessful      *time.Time
	ConsecutiveFailures int
	LastError           string
}

// Stale reports whether the cached reading is older than maxAge (or was never taken) at the given time.
func (h ServerHealth) Stale(now time.Time, maxAge time.Duration) bool {
	if h.LastChecked == nil {
		return true
	}
	if maxAge <= 0 {
		return false
	}
	return now.Sub(*h.LastChecked) > maxAge
}

// Clone returns a copy that shares no pointers with the receiver.
func (h ServerHealth) Clone() ServerHealth {
	c := h
	if h.Latency != nil {
		l := *h.Latency
		c.Latency = &l
	}
	if h.LastChecked != nil {
		t := *h.LastChecked
		c.LastChecked = &t
	}
	if h.LastSuccessful != nil {
		t := *h.LastSuccessful
		c.LastSuccessful = &t
	}
	return c
}
