// Package poller observes an order until the backend reports a terminal
// status or the attempt budget runs out. It never changes the order.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thieenjdev03/ecom-client-sub002/internal/gateway"
	"github.com/thieenjdev03/ecom-client-sub002/internal/payment"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/enums"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/logger"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/metrics"
)

const (
	DefaultMaxAttempts = 30
	DefaultInterval    = 2 * time.Second
)

// ErrTimeout matches every *TimeoutError. A timeout means the outcome is
// unknown, not that the payment failed.
var ErrTimeout = errors.New("poll budget exhausted without a terminal status")

// TimeoutError describes an exhausted poll run.
type TimeoutError struct {
	OrderID    string
	Attempts   int
	LastStatus enums.OrderStatus
	LastErr    error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("order %s: no terminal status after %d attempts", e.OrderID, e.Attempts)
	if e.LastStatus != "" {
		msg += fmt.Sprintf(" (last %s)", e.LastStatus)
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// StatusFetcher is the read-only slice of the order gateway the poller needs.
type StatusFetcher interface {
	GetStatus(ctx context.Context, orderID string) (*gateway.StatusResponse, error)
}

type sleepFunc func(ctx context.Context, d time.Duration) error

// Params configures a Poller. Zero budget values fall back to the defaults.
type Params struct {
	Fetcher     StatusFetcher
	MaxAttempts int
	Interval    time.Duration
	Logger      *logger.Logger
	Metrics     *metrics.CheckoutMetrics
}

type Poller struct {
	fetcher  StatusFetcher
	defaults options
	logger   *logger.Logger
	metrics  *metrics.CheckoutMetrics
	sleep    sleepFunc
	now      func() time.Time
}

func New(params Params) (*Poller, error) {
	if params.Fetcher == nil {
		return nil, errors.New("status fetcher required")
	}
	defaults := options{maxAttempts: DefaultMaxAttempts, interval: DefaultInterval}
	if params.MaxAttempts > 0 {
		defaults.maxAttempts = params.MaxAttempts
	}
	if params.Interval > 0 {
		defaults.interval = params.Interval
	}
	return &Poller{
		fetcher:  params.Fetcher,
		defaults: defaults,
		logger:   params.Logger,
		metrics:  params.Metrics,
		sleep:    sleepWithContext,
		now:      time.Now,
	}, nil
}

type options struct {
	maxAttempts int
	interval    time.Duration
	observer    func(payment.PollAttempt)
}

// Option overrides the poll budget for a single run.
type Option func(*options)

func WithMaxAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithObserver receives every attempt as it completes.
func WithObserver(fn func(payment.PollAttempt)) Option {
	return func(o *options) {
		o.observer = fn
	}
}

// Poll checks the order status up to the attempt budget, waiting the interval
// between checks. A PAID, FAILED or CANCELLED status returns at once with the
// response. A failed check consumes an attempt without ending the run. When the
// budget is spent the error is a *TimeoutError. Cancelling ctx stops the run
// before the next check and returns ctx.Err().
func (p *Poller) Poll(ctx context.Context, orderID string, opts ...Option) (*gateway.StatusResponse, error) {
	cfg := p.defaults
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	ctx = p.logger.WithOrderID(ctx, orderID)

	var (
		lastStatus enums.OrderStatus
		lastErr    error
	)
	for attempt := 1; attempt <= cfg.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := p.sleep(ctx, cfg.interval); err != nil {
				p.finish(ctx, "cancelled", attempt-1)
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			p.finish(ctx, "cancelled", attempt-1)
			return nil, err
		}

		resp, err := p.fetcher.GetStatus(ctx, orderID)
		record := payment.PollAttempt{Number: attempt, Err: err, Timestamp: p.now()}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				p.finish(ctx, "cancelled", attempt)
				return nil, ctxErr
			}
			lastErr = err
			p.metrics.IncPollAttempt("error")
			p.observe(cfg, record)
			p.logAttempt(ctx, record)
			continue
		}

		record.Status = resp.Status
		lastStatus = resp.Status
		p.metrics.IncPollAttempt(resp.Status.String())
		p.observe(cfg, record)
		p.logAttempt(ctx, record)

		if resp.Status.IsTerminal() {
			p.finish(ctx, string(resp.Status), attempt)
			return resp, nil
		}
	}

	p.finish(ctx, "timeout", cfg.maxAttempts)
	return nil, &TimeoutError{
		OrderID:    orderID,
		Attempts:   cfg.maxAttempts,
		LastStatus: lastStatus,
		LastErr:    lastErr,
	}
}

func (p *Poller) observe(cfg options, attempt payment.PollAttempt) {
	if cfg.observer != nil {
		cfg.observer(attempt)
	}
}

func (p *Poller) logAttempt(ctx context.Context, attempt payment.PollAttempt) {
	if p.logger == nil {
		return
	}
	fields := map[string]any{"attempt": attempt.Number}
	if attempt.Err != nil {
		fields["error"] = attempt.Err.Error()
		p.logger.Warn(p.logger.WithFields(ctx, fields), "poller.attempt_failed")
		return
	}
	fields["status"] = attempt.Status
	p.logger.Debug(p.logger.WithFields(ctx, fields), "poller.attempt")
}

func (p *Poller) finish(ctx context.Context, result string, attempts int) {
	p.metrics.IncPollRun(result)
	if p.logger == nil {
		return
	}
	ctx = p.logger.WithFields(ctx, map[string]any{"result": result, "attempts": attempts})
	p.logger.Info(ctx, "poller.finished")
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
