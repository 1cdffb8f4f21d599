package button

import (
	"github.com/thieenjdev03/ecom-client-sub002/internal/gateway"
	"github.com/thieenjdev03/ecom-client-sub002/internal/payment"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/enums"
)

// event is one input to the button state machine.
type event interface {
	name() string
}

type (
	activated      struct{ money payment.Money }
	orderCreated   struct{ orderID string }
	creationFailed struct{ code string }
	approved       struct{ orderID string }
	captured       struct{ result *gateway.CaptureResult }
	dismissed      struct{}
	widgetFailed   struct{ code string }
)

// captureFailed keeps the backend's answer when there was one.
type captureFailed struct {
	code   string
	result *gateway.CaptureResult
}

func (activated) name() string      { return "activated" }
func (orderCreated) name() string   { return "order_created" }
func (creationFailed) name() string { return "creation_failed" }
func (approved) name() string       { return "approved" }
func (captured) name() string       { return "captured" }
func (captureFailed) name() string  { return "capture_failed" }
func (dismissed) name() string      { return "dismissed" }
func (widgetFailed) name() string   { return "widget_failed" }

// transition is the complete state table. Anything not listed is rejected
// and leaves the state unchanged.
func transition(state enums.ButtonState, ev event) (enums.ButtonState, bool) {
	switch state {
	case enums.ButtonIdle:
		switch ev.(type) {
		case activated:
			return enums.ButtonCreating, true
		case widgetFailed:
			return enums.ButtonFailed, true
		}
	case enums.ButtonCreating:
		switch ev.(type) {
		case orderCreated:
			return enums.ButtonAwaitingApproval, true
		case creationFailed:
			return enums.ButtonFailed, true
		}
	case enums.ButtonAwaitingApproval:
		switch ev.(type) {
		case approved:
			return enums.ButtonCapturing, true
		case dismissed:
			return enums.ButtonCancelled, true
		case widgetFailed:
			return enums.ButtonFailed, true
		}
	case enums.ButtonCapturing:
		switch ev.(type) {
		case captured:
			return enums.ButtonDone, true
		case captureFailed:
			return enums.ButtonFailed, true
		}
	}
	return state, false
}
