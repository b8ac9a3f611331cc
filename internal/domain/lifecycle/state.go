package lifecycle

// State represents a submission destination's delivery state.
type State string

const (
	StatePending   State = "PENDING"
	StateSent      State = "SENT"
	StateConfirmed State = "CONFIRMED"
	StateFailed    State = "FAILED"
)

var validStates = map[State]bool{
	StatePending:   true,
	StateSent:      true,
	StateConfirmed: true,
	StateFailed:    true,
}

// deliveredStates are the states counting toward request completion.
var deliveredStates = map[State]bool{
	StateSent:      true,
	StateConfirmed: true,
}

// IsDelivered returns true if the state counts toward completion of the
// owning request.
func (s State) IsDelivered() bool {
	return deliveredStates[s]
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid destination state.
func (s State) IsValid() bool {
	return validStates[s]
}
