package pipeline

import "time"

// State is a pipeline lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StateRendering  State = "rendering"
	StateAssembling State = "assembling"
	StateCleaningUp State = "cleaning_up"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

var allowedTransitions = map[State][]State{
	StateIdle:       {StateLoading, StateFailed},
	StateLoading:    {StateRendering, StateFailed},
	StateRendering:  {StateAssembling, StateCleaningUp, StateFailed},
	StateAssembling: {StateCleaningUp, StateFailed},
	StateCleaningUp: {StateDone, StateFailed},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to State) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition is published to observers on every state change.
type Transition struct {
	RunID     string
	ProjectID string
	From      State
	To        State
	At        time.Time
	// Err is set when To is StateFailed, or when cleanup follows a failure.
	Err error
}

// Observer receives transitions synchronously, in order.
type Observer func(Transition)
