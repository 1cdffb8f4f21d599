package enums

import "fmt"

// OrderStatus is the provider-scoped lifecycle of a payment order.
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusApproved  OrderStatus = "APPROVED"
	OrderStatusCaptured  OrderStatus = "CAPTURED"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusFailed    OrderStatus = "FAILED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusCreated,
	OrderStatusApproved,
	OrderStatusCaptured,
	OrderStatusPaid,
	OrderStatusFailed,
	OrderStatusCancelled,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches a known order status.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are expected.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusPaid, OrderStatusFailed, OrderStatusCancelled:
		return true
	}
	return false
}

// Rank orders the non-terminal statuses; all terminal statuses share the top rank.
// Unknown statuses rank below CREATED.
func (s OrderStatus) Rank() int {
	switch s {
	case OrderStatusCreated:
		return 1
	case OrderStatusApproved:
		return 2
	case OrderStatusCaptured:
		return 3
	case OrderStatusPaid, OrderStatusFailed, OrderStatusCancelled:
		return 4
	}
	return 0
}

// ParseOrderStatus converts the raw string to OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
