package models

import "fmt"

// JobState is the lifecycle state of a job. These values are stored
// verbatim in the record store and the database, so they must not be
// renamed without a migration.
type JobState string

const (
	StatePending        JobState = "pending"
	StateStarted        JobState = "started"
	StateRetryScheduled JobState = "retry_scheduled"
	StateSuccess        JobState = "success"
	StateFailed         JobState = "failed"

	// StateUnknown is reported for status queries on ids the store has
	// never seen (or whose records have expired). It is never persisted.
	StateUnknown JobState = "unknown"
)

func (s JobState) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}

var transitions = map[JobState][]JobState{
	StatePending:        {StateStarted},
	StateStarted:        {StateSuccess, StateFailed, StateRetryScheduled},
	StateRetryScheduled: {StateStarted, StateFailed},
}

// CanTransition reports whether from -> to is a legal state change.
// Terminal states have no outgoing edges.
func CanTransition(from, to JobState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition mutates the record's state or rejects the change. This is
// the only place a record's state field is written.
func (r *Record) Transition(to JobState) error {
	if !CanTransition(r.State, to) {
		return fmt.Errorf("invalid job state transition %s -> %s", r.State, to)
	}
	r.State = to
	return nil
}
