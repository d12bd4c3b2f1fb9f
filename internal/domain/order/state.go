package order

import "fmt"

// state implements the state pattern for order lifecycle transitions.
// Pending may move to cancelled or completed; both are terminal.
type state interface {
	status() Status
	cancel(o *Order) (state, error)
	complete(o *Order) (state, error)
}

func stateFor(s Status) (state, error) {
	switch s {
	case StatusPending:
		return pendingState{}, nil
	case StatusCancelled:
		return cancelledState{}, nil
	case StatusCompleted:
		return completedState{}, nil
	default:
		return nil, fmt.Errorf("order: unknown status %q", s)
	}
}

type pendingState struct{}

func (pendingState) status() Status { return StatusPending }

func (pendingState) cancel(*Order) (state, error) {
	return cancelledState{}, nil
}

func (pendingState) complete(*Order) (state, error) {
	return completedState{}, nil
}

type cancelledState struct{}

func (cancelledState) status() Status { return StatusCancelled }

func (cancelledState) cancel(*Order) (state, error) {
	return nil, ErrInvalidState
}

func (cancelledState) complete(*Order) (state, error) {
	return nil, ErrInvalidState
}

type completedState struct{}

func (completedState) status() Status { return StatusCompleted }

func (completedState) cancel(*Order) (state, error) {
	return nil, ErrInvalidState
}

func (completedState) complete(*Order) (state, error) {
	return nil, ErrInvalidState
}
