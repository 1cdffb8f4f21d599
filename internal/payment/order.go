package payment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/thieenjdev03/ecom-client-sub002/pkg/enums"
)

var (
	ErrInvalidAmount   = errors.New("amount must be positive and fit the currency's minor units")
	ErrInvalidCurrency = errors.New("unsupported currency")
	ErrStatusRegressed = errors.New("order status cannot move backwards")
	ErrOrderFinished   = errors.New("order already reached a terminal status")
)

// Money is an amount fixed to one ISO-4217 currency.
type Money struct {
	Amount   decimal.Decimal
	Currency enums.Currency
}

// ParseMoney validates a decimal string and currency code pair.
func ParseMoney(amount, currency string) (Money, error) {
	cur, err := enums.ParseCurrency(currency)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %s", ErrInvalidCurrency, err)
	}
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %s", ErrInvalidAmount, err)
	}
	m := Money{Amount: value, Currency: cur}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// Validate rejects non-positive amounts and amounts finer than the currency allows.
func (m Money) Validate() error {
	if !m.Currency.IsValid() {
		return ErrInvalidCurrency
	}
	if !m.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !m.Amount.Equal(m.Amount.Truncate(m.Currency.MinorUnits())) {
		return ErrInvalidAmount
	}
	return nil
}

// String renders the amount with exactly the currency's minor units.
func (m Money) String() string {
	return m.Amount.StringFixed(m.Currency.MinorUnits())
}

// Order is one provider-scoped payment transaction. The ID and money are
// fixed at creation; only the status moves, and only forwards.
type Order struct {
	ID     string
	Money  Money
	Status enums.OrderStatus
}

// NewOrder records a freshly created provider order.
func NewOrder(id string, money Money) *Order {
	return &Order{ID: id, Money: money, Status: enums.OrderStatusCreated}
}

// Advance applies an observed status. Re-observing the current status is a no-op.
// Unknown statuses are ignored so that provider-specific intermediate states
// never move the order.
func (o *Order) Advance(status enums.OrderStatus) error {
	if status == o.Status || !status.IsValid() {
		return nil
	}
	if o.Status.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrOrderFinished, o.Status, status)
	}
	if status.Rank() < o.Status.Rank() {
		return fmt.Errorf("%w: %s -> %s", ErrStatusRegressed, o.Status, status)
	}
	o.Status = status
	return nil
}
