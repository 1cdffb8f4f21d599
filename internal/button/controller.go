// Package button drives the provider's payment button through one checkout
// attempt: create the order, wait for the buyer, capture on approval.
package button

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/thieenjdev03/ecom-client-sub002/internal/errorcatalog"
	"github.com/thieenjdev03/ecom-client-sub002/internal/gateway"
	"github.com/thieenjdev03/ecom-client-sub002/internal/payment"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/enums"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/logger"
)

var (
	// ErrBusy rejects widget events while a backend call is in flight.
	ErrBusy              = errors.New("payment button is busy")
	ErrInvalidTransition = errors.New("event not allowed in current button state")
	ErrOrderMismatch     = errors.New("approval does not match the created order")
	ErrEmptyCapture      = errors.New("capture returned no result")
)

// Gateway is the part of the order backend the button calls.
type Gateway interface {
	CreateOrder(ctx context.Context, money payment.Money) (string, error)
	CaptureOrder(ctx context.Context, orderID string) (*gateway.CaptureResult, error)
}

type Params struct {
	Gateway Gateway
	Logger  *logger.Logger
	// OnTransition observes every accepted state change. It runs under the
	// controller lock and must not call back into the controller.
	OnTransition func(from, to enums.ButtonState)
}

// Controller is single-use: one controller per checkout attempt.
type Controller struct {
	gateway      Gateway
	logger       *logger.Logger
	onTransition func(from, to enums.ButtonState)

	mu      sync.Mutex
	state   enums.ButtonState
	orderID string
	capture *gateway.CaptureResult
	outcome payment.Outcome
	done    chan struct{}
}

func New(params Params) (*Controller, error) {
	if params.Gateway == nil {
		return nil, errors.New("gateway required")
	}
	return &Controller{
		gateway:      params.Gateway,
		logger:       params.Logger,
		onTransition: params.OnTransition,
		state:        enums.ButtonIdle,
		done:         make(chan struct{}),
	}, nil
}

// Activate handles the buyer pressing the button. It creates the provider
// order and returns its id for the widget. A second activation while the
// order is being created returns ErrBusy without another backend call.
func (c *Controller) Activate(ctx context.Context, money payment.Money) (string, error) {
	if err := c.fire(ctx, activated{money: money}); err != nil {
		return "", err
	}

	orderID, err := c.gateway.CreateOrder(ctx, money)
	if err != nil {
		_ = c.fire(ctx, creationFailed{code: failureCode(err)})
		return "", err
	}
	if err := c.fire(ctx, orderCreated{orderID: orderID}); err != nil {
		return "", err
	}
	return orderID, nil
}

// Approve relays the widget's approval and captures the order exactly once.
// The capture is not tied to ctx cancellation: once forwarded it runs to
// completion so the backend's answer is never lost.
func (c *Controller) Approve(ctx context.Context, orderID string) error {
	if err := c.fire(ctx, approved{orderID: orderID}); err != nil {
		return err
	}

	result, err := c.gateway.CaptureOrder(context.WithoutCancel(ctx), c.OrderID())
	if err != nil {
		_ = c.fire(ctx, captureFailed{code: failureCode(err)})
		return err
	}
	if result == nil {
		_ = c.fire(ctx, captureFailed{code: errorcatalog.CodeNoErrorDetails})
		return ErrEmptyCapture
	}
	switch result.Status {
	case enums.OrderStatusFailed:
		return c.fire(ctx, captureFailed{code: errorcatalog.CodeCaptureFailed, result: result})
	case enums.OrderStatusCancelled:
		return c.fire(ctx, captureFailed{code: errorcatalog.CodeOrderCancelled, result: result})
	}
	return c.fire(ctx, captured{result: result})
}

// Cancel relays the buyer dismissing the widget. It never calls the backend.
func (c *Controller) Cancel(ctx context.Context) error {
	return c.fire(ctx, dismissed{})
}

// Fail relays the widget's error callback with the provider's opaque code.
func (c *Controller) Fail(ctx context.Context, code string) error {
	return c.fire(ctx, widgetFailed{code: code})
}

func (c *Controller) State() enums.ButtonState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) OrderID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orderID
}

// Capture is the backend's capture answer, nil until one arrived. A FAILED
// or CANCELLED answer is kept as well.
func (c *Controller) Capture() *gateway.CaptureResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capture
}

// Done is closed once the controller reaches DONE, FAILED or CANCELLED.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Outcome returns the terminal outcome; ok is false before it exists.
func (c *Controller) Outcome() (payment.Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome, c.state.IsTerminal()
}

func (c *Controller) fire(ctx context.Context, ev event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	from := c.state
	if a, ok := ev.(approved); ok && from == enums.ButtonAwaitingApproval && a.orderID != "" && a.orderID != c.orderID {
		return fmt.Errorf("%w: got %s, created %s", ErrOrderMismatch, a.orderID, c.orderID)
	}
	to, ok := transition(from, ev)
	if !ok {
		c.logRejected(ctx, from, ev)
		if from.IsBusy() {
			return ErrBusy
		}
		return fmt.Errorf("%w: %s in %s", ErrInvalidTransition, ev.name(), from)
	}

	switch e := ev.(type) {
	case orderCreated:
		c.orderID = e.orderID
	case captured:
		c.capture = e.result
	case captureFailed:
		if e.result != nil {
			c.capture = e.result
		}
	}
	c.state = to

	switch to {
	case enums.ButtonDone:
		c.outcome = payment.Success(c.orderID, c.capture.Status, c.capture.Raw)
	case enums.ButtonCancelled:
		c.outcome = payment.Cancelled(c.orderID)
	case enums.ButtonFailed:
		c.outcome = payment.Failure(c.orderID, eventCode(ev))
	}
	if to.IsTerminal() {
		close(c.done)
	}

	c.logTransition(ctx, from, to, ev)
	if c.onTransition != nil {
		c.onTransition(from, to)
	}
	return nil
}

func (c *Controller) logTransition(ctx context.Context, from, to enums.ButtonState, ev event) {
	if c.logger == nil {
		return
	}
	fields := map[string]any{"from": from, "to": to, "event": ev.name()}
	if a, ok := ev.(activated); ok {
		fields["amount"] = a.money.String()
		fields["currency"] = a.money.Currency
	}
	if c.orderID != "" {
		fields["order_id"] = c.orderID
	}
	if code := eventCode(ev); code != "" {
		fields["error_code"] = code
	}
	c.logger.Info(c.logger.WithFields(ctx, fields), "button.transition")
}

func (c *Controller) logRejected(ctx context.Context, state enums.ButtonState, ev event) {
	if c.logger == nil {
		return
	}
	ctx = c.logger.WithFields(ctx, map[string]any{"state": state, "event": ev.name()})
	c.logger.Debug(ctx, "button.event_ignored")
}

func eventCode(ev event) string {
	switch e := ev.(type) {
	case creationFailed:
		return e.code
	case captureFailed:
		return e.code
	case widgetFailed:
		if e.code == "" {
			return errorcatalog.CodeNoErrorDetails
		}
		return e.code
	}
	return ""
}

// failureCode maps a returned error onto a catalog code.
func failureCode(err error) string {
	if errors.Is(err, payment.ErrInvalidAmount) || errors.Is(err, payment.ErrInvalidCurrency) {
		return errorcatalog.CodeInvalidAmount
	}
	return gateway.ErrorCode(err)
}
