package lifecycle

import "fmt"

// Machine tracks a destination's current state and validates transitions.
type Machine struct {
	currentState State
	transitions  map[State]map[Trigger]State
}

// destinationTransitions is the full transition table. Forward movement is
// one-directional; only RESET moves a destination backward.
var destinationTransitions = map[State]map[Trigger]State{
	StatePending: {
		TriggerMarkSent: StateSent,
		TriggerFail:     StateFailed,
		TriggerReset:    StatePending,
	},
	StateSent: {
		TriggerConfirm: StateConfirmed,
		TriggerFail:    StateFailed,
		TriggerReset:   StatePending,
	},
	StateConfirmed: {
		TriggerReset: StatePending,
	},
	StateFailed: {
		TriggerReset: StatePending,
	},
}

// NewMachine creates a destination machine positioned at initialState.
func NewMachine(initialState State) (*Machine, error) {
	if !initialState.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, initialState)
	}
	return &Machine{
		currentState: initialState,
		transitions:  destinationTransitions,
	}, nil
}

// State returns the current state.
func (m *Machine) State() State {
	return m.currentState
}

// CanFire returns true if the trigger is permitted in the current state.
func (m *Machine) CanFire(trigger Trigger) bool {
	_, ok := m.transitions[m.currentState][trigger]
	return ok
}

// Fire attempts to execute the trigger, transitioning to the new state if
// allowed.
func (m *Machine) Fire(trigger Trigger) error {
	next, ok := m.transitions[m.currentState][trigger]
	if !ok {
		return fmt.Errorf("%w: cannot fire trigger %s from state %s", ErrInvalidTransition, trigger, m.currentState)
	}
	m.currentState = next
	return nil
}

// PermittedTriggers returns all triggers that can be fired in the current
// state.
func (m *Machine) PermittedTriggers() []Trigger {
	perms := m.transitions[m.currentState]
	triggers := make([]Trigger, 0, len(perms))
	for trigger := range perms {
		triggers = append(triggers, trigger)
	}
	return triggers
}
