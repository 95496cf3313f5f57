package domain

import "fmt"

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPreparing Status = "PREPARING"
	StatusReady     Status = "READY"
	StatusServed    Status = "SERVED"
	StatusCompleted Status = "COMPLETED"
)

// transitions maps a status to the set of statuses reachable from it.
// The kitchen may fast-track PENDING straight to READY; nothing else
// skips forward and nothing moves backward.
var transitions = map[Status]map[Status]bool{
	StatusPending:   {StatusPreparing: true, StatusReady: true},
	StatusPreparing: {StatusReady: true},
	StatusReady:     {StatusServed: true},
	StatusServed:    {StatusCompleted: true},
	StatusCompleted: {},
}

// CanAdvanceTo reports whether next is directly reachable from s.
func (s Status) CanAdvanceTo(next Status) bool {
	return transitions[s][next]
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, v)
	}
	return s, nil
}
