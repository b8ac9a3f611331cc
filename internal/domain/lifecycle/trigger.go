package lifecycle

// Trigger represents an event that can move a destination between states.
type Trigger string

const (
	// TriggerMarkSent records a successful dispatch (automated for EMAIL,
	// manual for DOWNLOAD and PORTAL).
	TriggerMarkSent Trigger = "MARK_SENT"

	// TriggerConfirm records manual confirmation of institutional receipt.
	TriggerConfirm Trigger = "CONFIRM"

	// TriggerFail records a dispatch error. Failure is terminal until a
	// human resubmits or resets.
	TriggerFail Trigger = "FAIL"

	// TriggerReset returns any state to PENDING, clearing delivery stamps.
	TriggerReset Trigger = "RESET"
)

// String returns the string representation of the trigger.
func (t Trigger) String() string {
	return string(t)
}
