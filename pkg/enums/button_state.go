package enums

// ButtonState is the lifecycle of the payment button for one checkout attempt.
type ButtonState string

const (
	ButtonIdle             ButtonState = "IDLE"
	ButtonCreating         ButtonState = "CREATING"
	ButtonAwaitingApproval ButtonState = "AWAITING_APPROVAL"
	ButtonCapturing        ButtonState = "CAPTURING"
	ButtonDone             ButtonState = "DONE"
	ButtonFailed           ButtonState = "FAILED"
	ButtonCancelled        ButtonState = "CANCELLED"
)

// String implements fmt.Stringer.
func (s ButtonState) String() string {
	return string(s)
}

// IsTerminal reports whether the button has finished its attempt.
func (s ButtonState) IsTerminal() bool {
	switch s {
	case ButtonDone, ButtonFailed, ButtonCancelled:
		return true
	}
	return false
}

// IsBusy reports whether a backend call is in flight.
func (s ButtonState) IsBusy() bool {
	return s == ButtonCreating || s == ButtonCapturing
}
