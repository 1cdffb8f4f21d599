package payment

import (
	"encoding/json"
	"time"

	"github.com/thieenjdev03/ecom-client-sub002/internal/errorcatalog"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/enums"
)

// Outcome is the buyer-facing result of one checkout attempt.
type Outcome struct {
	Kind      enums.OutcomeKind         `json:"kind"`
	ErrorCode string                    `json:"error_code,omitempty"`
	Notice    *errorcatalog.Description `json:"notice,omitempty"`
	OrderID   string                    `json:"order_id,omitempty"`
	AttemptID string                    `json:"attempt_id,omitempty"`
	Status    enums.OrderStatus         `json:"status,omitempty"`
	// Raw is the provider payload for downstream consumers. Never render it.
	Raw json.RawMessage `json:"-"`
}

func Success(orderID string, status enums.OrderStatus, raw json.RawMessage) Outcome {
	return Outcome{Kind: enums.OutcomeSuccess, OrderID: orderID, Status: status, Raw: raw}
}

func Cancelled(orderID string) Outcome {
	return Outcome{
		Kind:    enums.OutcomeCancelled,
		OrderID: orderID,
		Notice:  describe(errorcatalog.CodePaymentCancelled),
	}
}

// Failure carries an opaque error code; its notice always comes from the catalog.
func Failure(orderID, code string) Outcome {
	if code == "" {
		code = errorcatalog.CodeNoErrorDetails
	}
	return Outcome{
		Kind:      enums.OutcomeError,
		ErrorCode: code,
		OrderID:   orderID,
		Notice:    describe(code),
	}
}

// Pending reports an order whose final status is not yet known.
func Pending(orderID string, last enums.OrderStatus) Outcome {
	return Outcome{
		Kind:    enums.OutcomeTimeout,
		OrderID: orderID,
		Status:  last,
		Notice:  describe(errorcatalog.CodePaymentPending),
	}
}

func describe(code string) *errorcatalog.Description {
	d := errorcatalog.Describe(code)
	return &d
}

// PollAttempt is one status observation. It is never persisted.
type PollAttempt struct {
	Number    int               `json:"attempt"`
	Status    enums.OrderStatus `json:"status,omitempty"`
	Err       error             `json:"-"`
	Timestamp time.Time         `json:"timestamp"`
}
