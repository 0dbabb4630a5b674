package dispatch

import "fmt"

// State is a step of one dispatch.
type State int

const (
	StateIdle State = iota
	StateResolvingRequiredDisconnects
	StateExpandingTemplate
	StateMaterializing
	StateInvoking
	StateDone
	StateAborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateResolvingRequiredDisconnects:
		return "ResolvingRequiredDisconnects"
	case StateExpandingTemplate:
		return "ExpandingTemplate"
	case StateMaterializing:
		return "Materializing"
	case StateInvoking:
		return "Invoking"
	case StateDone:
		return "Done"
	case StateAborted:
		return "Aborted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether the dispatch has finished.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}
