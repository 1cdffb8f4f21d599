package checkout

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidCart    = errors.New("invalid cart")
	ErrInvalidContact = errors.New("invalid contact")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// Line is one cart entry. UnitPrice is in the checkout currency.
type Line struct {
	SKU       string          `json:"sku" validate:"required,max=64"`
	Name      string          `json:"name" validate:"required,max=200"`
	Quantity  int             `json:"quantity" validate:"gt=0,lte=999"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type Cart struct {
	Lines []Line `json:"lines" validate:"required,min=1,dive"`
}

// Total sums quantity times unit price over every line.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Lines {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

func (c Cart) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidCart, fieldErrors(err))
	}
	for i, line := range c.Lines {
		if !line.UnitPrice.IsPositive() {
			return fmt.Errorf("%w: lines[%d].unit_price must be positive", ErrInvalidCart, i)
		}
	}
	return nil
}

// Contact is the buyer's details. They are forwarded, never logged.
type Contact struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"omitempty,max=120"`
	Phone string `json:"phone" validate:"omitempty,e164"`
}

func (c Contact) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidContact, fieldErrors(err))
	}
	return nil
}

func fieldErrors(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
