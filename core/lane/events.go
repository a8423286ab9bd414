package lane

import "time"

// EventKind identifies a lane transition.
type EventKind string

const (
	EventEntered EventKind = "entered"
	EventExited  EventKind = "exited"
)

// Event is published after a successful enter or exit.
type Event struct {
	Kind  EventKind
	Entry Entry
	// Occupancy is the number of open entries after the transition, or -1
	// when it could not be read.
	Occupancy int
	Time      time.Time
}
