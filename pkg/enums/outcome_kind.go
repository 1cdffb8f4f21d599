package enums

import "fmt"

// OutcomeKind classifies the buyer-facing result of one checkout attempt.
type OutcomeKind string

const (
	OutcomeSuccess   OutcomeKind = "SUCCESS"
	OutcomeCancelled OutcomeKind = "CANCELLED"
	OutcomeError     OutcomeKind = "ERROR"
	// OutcomeTimeout means the payment state is unknown; it is never a failure.
	OutcomeTimeout OutcomeKind = "TIMEOUT"
)

var validOutcomeKinds = []OutcomeKind{
	OutcomeSuccess,
	OutcomeCancelled,
	OutcomeError,
	OutcomeTimeout,
}

// String implements fmt.Stringer.
func (k OutcomeKind) String() string {
	return string(k)
}

// IsValid reports whether the outcome kind is recognized.
func (k OutcomeKind) IsValid() bool {
	for _, candidate := range validOutcomeKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseOutcomeKind converts a raw string into an OutcomeKind.
func ParseOutcomeKind(value string) (OutcomeKind, error) {
	for _, candidate := range validOutcomeKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outcome kind %q", value)
}
