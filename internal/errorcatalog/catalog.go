// Package errorcatalog turns opaque provider and network error codes into
// buyer-facing text. It is the only source of messages shown to a buyer.
package errorcatalog

import (
	"strings"

	"github.com/thieenjdev03/ecom-client-sub002/pkg/enums"
)

// Codes produced by this module. Provider codes pass through unchanged.
const (
	CodePaymentCancelled   = "PAYMENT_CANCELLED"
	CodeNetworkError       = "NETWORK_ERROR"
	CodeNoErrorDetails     = "NO_ERROR_DETAILS"
	CodeBackendRejected    = "BACKEND_REJECTED"
	CodeAuthRequired       = "AUTH_REQUIRED"
	CodeCaptureFailed      = "CAPTURE_FAILED"
	CodePaymentFailed      = "PAYMENT_FAILED"
	CodeOrderCancelled     = "ORDER_CANCELLED"
	CodePaymentPending     = "PAYMENT_PENDING"
	CodeInstrumentDeclined = "INSTRUMENT_DECLINED"
	CodeInvalidAmount      = "INVALID_AMOUNT"
	CodeAmountMismatch     = "AMOUNT_MISMATCH"
	CodeCheckoutInProgress = "CHECKOUT_IN_PROGRESS"
	CodeWidgetUnavailable  = "WIDGET_UNAVAILABLE"
)

const genericMessage = "Something went wrong with your payment. Please try again or contact support."

// Description is the buyer-facing rendering of an error code.
type Description struct {
	Message  string         `json:"message"`
	Severity enums.Severity `json:"severity"`
}

var descriptions = map[string]Description{
	CodePaymentCancelled: {
		Message:  "Payment was cancelled. Your cart is still saved.",
		Severity: enums.SeverityWarning,
	},
	CodeNetworkError: {
		Message:  "We couldn't reach the payment service. Check your connection and try again.",
		Severity: enums.SeverityError,
	},
	CodeNoErrorDetails: {
		Message:  "The payment could not be completed, but no details were provided. Please try again.",
		Severity: enums.SeverityInfo,
	},
	CodeBackendRejected: {
		Message:  "The payment could not be started. Please review your order and try again.",
		Severity: enums.SeverityError,
	},
	CodeAuthRequired: {
		Message:  "Please sign in again to continue with your payment.",
		Severity: enums.SeverityWarning,
	},
	CodeCaptureFailed: {
		Message:  "We couldn't complete your payment. Please try again or use another payment method.",
		Severity: enums.SeverityError,
	},
	CodePaymentFailed: {
		Message:  "Your payment was not successful. Please try another payment method.",
		Severity: enums.SeverityError,
	},
	CodeOrderCancelled: {
		Message:  "This payment was cancelled before it completed. You have not been charged.",
		Severity: enums.SeverityWarning,
	},
	CodePaymentPending: {
		Message:  "Your payment is still being confirmed. We'll update your order as soon as it clears.",
		Severity: enums.SeverityInfo,
	},
	CodeInstrumentDeclined: {
		Message:  "Your payment method was declined. Please choose a different one.",
		Severity: enums.SeverityError,
	},
	CodeInvalidAmount: {
		Message:  "The order total is not valid for payment.",
		Severity: enums.SeverityError,
	},
	CodeAmountMismatch: {
		Message:  "Your cart changed while paying. Please review the total and try again.",
		Severity: enums.SeverityWarning,
	},
	CodeCheckoutInProgress: {
		Message:  "A payment is already in progress. Please finish or cancel it first.",
		Severity: enums.SeverityWarning,
	},
	CodeWidgetUnavailable: {
		Message:  "The payment window could not be opened. Please refresh and try again.",
		Severity: enums.SeverityError,
	},
}

// Describe returns the message and severity configured for code. Unknown
// codes yield a generic message with ERROR severity and never echo the code.
func Describe(code string) Description {
	if d, ok := descriptions[strings.TrimSpace(code)]; ok {
		return d
	}
	return Description{Message: genericMessage, Severity: enums.SeverityError}
}

// Known reports whether code has a dedicated entry.
func Known(code string) bool {
	_, ok := descriptions[strings.TrimSpace(code)]
	return ok
}
