package gateway

import (
	"strings"

	"github.com/thieenjdev03/ecom-client-sub002/pkg/enums"
)

// statusAliases maps provider vocabulary onto the order lifecycle.
var statusAliases = map[string]enums.OrderStatus{
	"COMPLETED":             enums.OrderStatusPaid,
	"VOIDED":                enums.OrderStatusCancelled,
	"DECLINED":              enums.OrderStatusFailed,
	"DENIED":                enums.OrderStatusFailed,
	"PAYER_ACTION_REQUIRED": enums.OrderStatusApproved,
	"PENDING":               enums.OrderStatusApproved,
	"SAVED":                 enums.OrderStatusCreated,
}

// normalizeStatus maps a raw backend status to an OrderStatus. Unrecognized
// values are returned upper-cased as-is; they are non-terminal.
func normalizeStatus(raw string) enums.OrderStatus {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if status, err := enums.ParseOrderStatus(value); err == nil {
		return status
	}
	if status, ok := statusAliases[value]; ok {
		return status
	}
	return enums.OrderStatus(value)
}
