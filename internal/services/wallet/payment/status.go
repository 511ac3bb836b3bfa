package payment

import "time"

// Status is the lifecycle state of a payment request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	// StatusExpired is never stored. It is derived on read.
	StatusExpired Status = "expired"
)

var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusCancelled},
	StatusApproved: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Effective returns the status a reader observes at now.
func Effective(stored Status, expiresAt, now time.Time) Status {
	if (stored == StatusPending || stored == StatusApproved) && !now.Before(expiresAt) {
		return StatusExpired
	}
	return stored
}
