// Package checkout composes the payment button, the order gateway and the
// status poller into one entry point that yields exactly one outcome per
// checkout attempt.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/thieenjdev03/ecom-client-sub002/internal/button"
	"github.com/thieenjdev03/ecom-client-sub002/internal/errorcatalog"
	"github.com/thieenjdev03/ecom-client-sub002/internal/gateway"
	"github.com/thieenjdev03/ecom-client-sub002/internal/payment"
	"github.com/thieenjdev03/ecom-client-sub002/internal/poller"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/enums"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/logger"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/metrics"
)

var (
	ErrCheckoutInFlight = errors.New("a checkout attempt is already in flight")
	ErrAmountMismatch   = errors.New("amount does not match the cart total")
	ErrNoOrder          = errors.New("no order to recheck")
)

type Params struct {
	Gateway button.Gateway
	Poller  *poller.Poller
	Widget  Widget
	Logger  *logger.Logger
	Metrics *metrics.CheckoutMetrics
	// PollOptions override the poller defaults for every confirmation run.
	PollOptions []poller.Option
}

// Session is one buyer's checkout. It runs at most one attempt at a time.
type Session struct {
	id       string
	gateway  button.Gateway
	poller   *poller.Poller
	widget   Widget
	logger   *logger.Logger
	metrics  *metrics.CheckoutMetrics
	pollOpts []poller.Option

	mu      sync.Mutex
	active  *attempt
	cart    *Cart
	contact *Contact
	order   *payment.Order
	raw     json.RawMessage
	state   enums.ButtonState
	outcome *payment.Outcome
}

type attempt struct {
	id     string
	cancel context.CancelFunc
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	SessionID   string            `json:"session_id"`
	State       enums.ButtonState `json:"state"`
	InFlight    bool              `json:"in_flight"`
	OrderID     string            `json:"order_id,omitempty"`
	OrderStatus enums.OrderStatus `json:"order_status,omitempty"`
	Outcome     *payment.Outcome  `json:"outcome,omitempty"`
}

func NewSession(params Params) (*Session, error) {
	if params.Gateway == nil {
		return nil, errors.New("gateway required")
	}
	if params.Poller == nil {
		return nil, errors.New("poller required")
	}
	if params.Widget == nil {
		return nil, errors.New("widget required")
	}
	return &Session{
		id:       uuid.NewString(),
		gateway:  params.Gateway,
		poller:   params.Poller,
		widget:   params.Widget,
		logger:   params.Logger,
		metrics:  params.Metrics,
		pollOpts: slices.Clone(params.PollOptions),
		state:    enums.ButtonIdle,
	}, nil
}

func (s *Session) ID() string {
	return s.id
}

// StartCheckout runs one attempt to completion and returns its outcome.
//
// The error is non-nil only when the invocation itself is refused: invalid
// money, an amount that disagrees with the cart, or another attempt already
// in flight. The returned outcome is an ERROR one in those cases. Every
// other result, failures included, is reported through the outcome alone.
// Cancelling ctx before approval ends the attempt as CANCELLED; once the
// buyer approved, the capture still completes.
func (s *Session) StartCheckout(ctx context.Context, amount, currency string) (payment.Outcome, error) {
	ctx = s.logger.WithSessionID(ctx, s.id)

	money, err := payment.ParseMoney(amount, currency)
	if err != nil {
		return s.reject(ctx, errorcatalog.CodeInvalidAmount, err)
	}

	ctx, att, err := s.begin(ctx, func() error {
		if s.cart == nil {
			return nil
		}
		if total := s.cart.Total(); !total.Equal(money.Amount) {
			return fmt.Errorf("%w: cart %s, requested %s", ErrAmountMismatch, total.StringFixed(money.Currency.MinorUnits()), money)
		}
		return nil
	})
	if err != nil {
		code := errorcatalog.CodeCheckoutInProgress
		if errors.Is(err, ErrAmountMismatch) {
			code = errorcatalog.CodeAmountMismatch
		}
		return s.reject(ctx, code, err)
	}
	defer s.end(att)

	s.reset()
	outcome := s.run(ctx, money)
	outcome.AttemptID = att.id
	s.finish(ctx, outcome)
	return outcome, nil
}

// Recheck polls the session's order again, typically after a TIMEOUT
// outcome. An empty orderID means the current order. Only a TIMEOUT outcome
// is polled again; any other recorded outcome is returned without calling
// the backend.
func (s *Session) Recheck(ctx context.Context, orderID string) (payment.Outcome, error) {
	ctx = s.logger.WithSessionID(ctx, s.id)

	var (
		order   *payment.Order
		raw     json.RawMessage
		settled *payment.Outcome
	)
	ctx, att, err := s.begin(ctx, func() error {
		if s.order == nil || (orderID != "" && orderID != s.order.ID) {
			return ErrNoOrder
		}
		order, raw = s.order, s.raw
		if s.outcome != nil && s.outcome.Kind != enums.OutcomeTimeout {
			out := *s.outcome
			settled = &out
		}
		return nil
	})
	if errors.Is(err, ErrNoOrder) {
		return payment.Outcome{}, err
	}
	if err != nil {
		return s.reject(ctx, errorcatalog.CodeCheckoutInProgress, err)
	}
	defer s.end(att)

	if settled != nil {
		return *settled, nil
	}
	ctx = s.logger.WithOrderID(ctx, order.ID)
	outcome := s.confirm(ctx, order.ID, raw)
	outcome.AttemptID = att.id
	s.finish(ctx, outcome)
	return outcome, nil
}

// Cancel aborts the attempt in flight, if any. It reports whether there was one.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	att := s.active
	s.mu.Unlock()
	if att == nil {
		return false
	}
	att.cancel()
	return true
}

// SetCart attaches the cart the next attempt must match.
func (s *Session) SetCart(cart Cart) error {
	if err := cart.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return ErrCheckoutInFlight
	}
	s.cart = &cart
	return nil
}

func (s *Session) SetContact(contact Contact) error {
	if err := contact.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return ErrCheckoutInFlight
	}
	s.contact = &contact
	return nil
}

func (s *Session) Contact() (Contact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.contact == nil {
		return Contact{}, false
	}
	return *s.contact, true
}

// Outcome returns the latest attempt's outcome, if it finished.
func (s *Session) Outcome() (payment.Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome == nil {
		return payment.Outcome{}, false
	}
	return *s.outcome, true
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{SessionID: s.id, State: s.state, InFlight: s.active != nil}
	if s.order != nil {
		snap.OrderID = s.order.ID
		snap.OrderStatus = s.order.Status
	}
	if s.outcome != nil {
		out := *s.outcome
		snap.Outcome = &out
	}
	return snap
}

// begin claims the session for a new attempt. check runs under the session
// lock after the in-flight test.
func (s *Session) begin(ctx context.Context, check func() error) (context.Context, *attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return ctx, nil, ErrCheckoutInFlight
	}
	if err := check(); err != nil {
		return ctx, nil, err
	}
	att := &attempt{id: uuid.NewString()}
	ctx, att.cancel = context.WithCancel(ctx)
	s.active = att
	ctx = gateway.WithIdempotencyKey(ctx, att.id)
	return s.logger.WithAttemptID(ctx, att.id), att, nil
}

func (s *Session) end(att *attempt) {
	att.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == att {
		s.active = nil
	}
}

func (s *Session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.raw = nil
	s.outcome = nil
	s.state = enums.ButtonIdle
}

func (s *Session) run(ctx context.Context, money payment.Money) payment.Outcome {
	ctrl, err := button.New(button.Params{Gateway: s.gateway, Logger: s.logger, OnTransition: s.setState})
	if err != nil {
		return payment.Failure("", errorcatalog.CodeNoErrorDetails)
	}

	orderID, err := ctrl.Activate(ctx, money)
	if err != nil {
		outcome, _ := ctrl.Outcome()
		return outcome
	}
	ctx = s.logger.WithOrderID(ctx, orderID)
	s.mu.Lock()
	s.order = payment.NewOrder(orderID, money)
	s.mu.Unlock()

	if err := s.widget.Present(ctx, orderID, ctrl); err != nil {
		s.logger.Error(ctx, "checkout.widget_unavailable", err)
		_ = ctrl.Fail(ctx, errorcatalog.CodeWidgetUnavailable)
	}

	outcome := s.await(ctx, ctrl)
	if outcome.Kind != enums.OutcomeSuccess {
		if capture := ctrl.Capture(); capture != nil {
			s.advance(ctx, capture.Status)
		}
		return outcome
	}
	s.advance(ctx, outcome.Status)
	s.mu.Lock()
	s.raw = outcome.Raw
	s.mu.Unlock()
	if outcome.Status == enums.OrderStatusPaid {
		return outcome
	}
	return s.confirm(ctx, orderID, outcome.Raw)
}

// await blocks until the button settles. A cancelled ctx dismisses the
// widget; a capture already in flight is waited out.
func (s *Session) await(ctx context.Context, ctrl *button.Controller) payment.Outcome {
	select {
	case <-ctrl.Done():
	case <-ctx.Done():
		_ = ctrl.Cancel(context.WithoutCancel(ctx))
		<-ctrl.Done()
	}
	outcome, _ := ctrl.Outcome()
	return outcome
}

// confirm polls a captured order until the backend settles it.
func (s *Session) confirm(ctx context.Context, orderID string, raw json.RawMessage) payment.Outcome {
	opts := append(slices.Clone(s.pollOpts), poller.WithObserver(func(a payment.PollAttempt) {
		if a.Err == nil {
			s.advance(ctx, a.Status)
		}
	}))
	resp, err := s.poller.Start(ctx, orderID, opts...).Wait()
	return s.resolve(orderID, resp, err, raw)
}

func (s *Session) resolve(orderID string, resp *gateway.StatusResponse, err error, raw json.RawMessage) payment.Outcome {
	if err != nil {
		return payment.Pending(orderID, s.orderStatus())
	}
	switch resp.Status {
	case enums.OrderStatusPaid:
		return payment.Success(orderID, resp.Status, raw)
	case enums.OrderStatusFailed:
		return payment.Failure(orderID, errorcatalog.CodePaymentFailed)
	default:
		return payment.Failure(orderID, errorcatalog.CodeOrderCancelled)
	}
}

func (s *Session) advance(ctx context.Context, status enums.OrderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order == nil {
		return
	}
	if err := s.order.Advance(status); err != nil {
		ctx = s.logger.WithFields(ctx, map[string]any{"current": s.order.Status, "observed": status})
		s.logger.Warn(ctx, "checkout.status_ignored")
	}
}

func (s *Session) orderStatus() enums.OrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order == nil {
		return ""
	}
	return s.order.Status
}

func (s *Session) setState(_, to enums.ButtonState) {
	s.mu.Lock()
	s.state = to
	s.mu.Unlock()
}

func (s *Session) reject(ctx context.Context, code string, err error) (payment.Outcome, error) {
	outcome := payment.Failure("", code)
	s.metrics.IncOutcome(string(outcome.Kind))
	ctx = s.logger.WithFields(ctx, map[string]any{"error_code": code, "reason": err.Error()})
	s.logger.Warn(ctx, "checkout.rejected")
	return outcome, err
}

func (s *Session) finish(ctx context.Context, outcome payment.Outcome) {
	s.mu.Lock()
	s.outcome = &outcome
	s.mu.Unlock()

	s.metrics.IncOutcome(string(outcome.Kind))
	fields := map[string]any{"kind": outcome.Kind}
	if outcome.ErrorCode != "" {
		fields["error_code"] = outcome.ErrorCode
	}
	if outcome.Status != "" {
		fields["status"] = outcome.Status
	}
	s.logger.Info(s.logger.WithFields(ctx, fields), "checkout.outcome")
}
