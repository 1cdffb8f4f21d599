package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thieenjdev03/ecom-client-sub002/internal/gateway"
	"github.com/thieenjdev03/ecom-client-sub002/internal/payment"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/enums"
)

type step struct {
	status enums.OrderStatus
	err    error
}

// scriptedFetcher replays steps; the last step repeats once the script runs out.
type scriptedFetcher struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (f *scriptedFetcher) GetStatus(_ context.Context, orderID string) (*gateway.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	if idx >= len(f.steps) {
		idx = len(f.steps) - 1
	}
	f.calls++
	s := f.steps[idx]
	if s.err != nil {
		return nil, s.err
	}
	return &gateway.StatusResponse{OrderID: orderID, Status: s.status}, nil
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func statuses(values ...enums.OrderStatus) []step {
	out := make([]step, 0, len(values))
	for _, v := range values {
		out = append(out, step{status: v})
	}
	return out
}

func newTestPoller(t *testing.T, fetcher StatusFetcher) (*Poller, *[]time.Duration) {
	t.Helper()
	p, err := New(Params{Fetcher: fetcher})
	require.NoError(t, err)
	var slept []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return p, &slept
}

var errNetwork = &gateway.GatewayError{Kind: enums.GatewayErrorNetwork, Op: "get_status", Err: errors.New("connection reset")}

func TestPollReturnsPaidAfterThirdCall(t *testing.T) {
	fetcher := &scriptedFetcher{steps: statuses(enums.OrderStatusCreated, enums.OrderStatusCreated, enums.OrderStatusPaid)}
	p, slept := newTestPoller(t, fetcher)

	resp, err := p.Poll(context.Background(), "O1", WithMaxAttempts(5))
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusPaid, resp.Status)
	assert.Equal(t, 3, fetcher.Calls())
	assert.Len(t, *slept, 2)
}

func TestPollTimesOutWithoutExtraCall(t *testing.T) {
	fetcher := &scriptedFetcher{steps: statuses(enums.OrderStatusCreated, enums.OrderStatusApproved, enums.OrderStatusCaptured)}
	p, slept := newTestPoller(t, fetcher)

	resp, err := p.Poll(context.Background(), "O1", WithMaxAttempts(3))
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, errors.Is(err, ErrTimeout))

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 3, timeout.Attempts)
	assert.Equal(t, enums.OrderStatusCaptured, timeout.LastStatus)
	assert.Equal(t, 3, fetcher.Calls(), "a fourth call must never happen")
	assert.Len(t, *slept, 2, "no wait after the final attempt")
}

func TestPollStopsOnFailure(t *testing.T) {
	fetcher := &scriptedFetcher{steps: statuses(enums.OrderStatusCreated, enums.OrderStatusFailed, enums.OrderStatusPaid)}
	p, _ := newTestPoller(t, fetcher)

	resp, err := p.Poll(context.Background(), "O1", WithMaxAttempts(10))
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusFailed, resp.Status)
	assert.Equal(t, 2, fetcher.Calls())
}

func TestPollStopsOnCancelledOrder(t *testing.T) {
	fetcher := &scriptedFetcher{steps: statuses(enums.OrderStatusCancelled)}
	p, slept := newTestPoller(t, fetcher)

	resp, err := p.Poll(context.Background(), "O1")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, resp.Status)
	assert.Equal(t, 1, fetcher.Calls())
	assert.Empty(t, *slept)
}

func TestPollToleratesNetworkErrors(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{{err: errNetwork}, {err: errNetwork}, {status: enums.OrderStatusPaid}}}
	p, _ := newTestPoller(t, fetcher)

	resp, err := p.Poll(context.Background(), "O1", WithMaxAttempts(3))
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, resp.Status)
	assert.Equal(t, 3, fetcher.Calls())
}

func TestPollNetworkErrorsConsumeBudget(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{{err: errNetwork}}}
	p, _ := newTestPoller(t, fetcher)

	_, err := p.Poll(context.Background(), "O1", WithMaxAttempts(4))
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 4, fetcher.Calls())
	assert.Empty(t, timeout.LastStatus)
	assert.ErrorIs(t, timeout.LastErr, errNetwork)
}

func TestPollUsesConfiguredDefaults(t *testing.T) {
	fetcher := &scriptedFetcher{steps: statuses(enums.OrderStatusCreated)}
	p, slept := newTestPoller(t, fetcher)

	_, err := p.Poll(context.Background(), "O1")
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, DefaultMaxAttempts, fetcher.Calls())
	require.Len(t, *slept, DefaultMaxAttempts-1)
	assert.Equal(t, DefaultInterval, (*slept)[0])
}

func TestPollOverridesInterval(t *testing.T) {
	fetcher := &scriptedFetcher{steps: statuses(enums.OrderStatusCreated, enums.OrderStatusPaid)}
	p, err := New(Params{Fetcher: fetcher, MaxAttempts: 2, Interval: time.Second})
	require.NoError(t, err)
	var slept []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	_, err = p.Poll(context.Background(), "O1", WithInterval(250*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, slept)
}

func TestPollReportsAttempts(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{{err: errNetwork}, {status: enums.OrderStatusApproved}, {status: enums.OrderStatusPaid}}}
	p, _ := newTestPoller(t, fetcher)

	var seen []payment.PollAttempt
	_, err := p.Poll(context.Background(), "O1", WithObserver(func(a payment.PollAttempt) {
		seen = append(seen, a)
	}))
	require.NoError(t, err)

	require.Len(t, seen, 3)
	assert.Equal(t, 1, seen[0].Number)
	assert.Error(t, seen[0].Err)
	assert.Equal(t, enums.OrderStatusApproved, seen[1].Status)
	assert.Equal(t, enums.OrderStatusPaid, seen[2].Status)
	assert.False(t, seen[2].Timestamp.IsZero())
}

func TestPollCancelledContextMakesNoCall(t *testing.T) {
	fetcher := &scriptedFetcher{steps: statuses(enums.OrderStatusPaid)}
	p, _ := newTestPoller(t, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Poll(ctx, "O1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, fetcher.Calls())
}

func TestTaskCancelAbortsBeforeNextCheck(t *testing.T) {
	fetcher := &scriptedFetcher{steps: statuses(enums.OrderStatusCreated)}
	p, err := New(Params{Fetcher: fetcher, Interval: time.Hour})
	require.NoError(t, err)

	task := p.Start(context.Background(), "O1")
	require.Eventually(t, func() bool { return fetcher.Calls() == 1 }, time.Second, time.Millisecond)

	task.Cancel()
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task did not stop after cancel")
	}

	resp, err := task.Wait()
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, fetcher.Calls())
	task.Cancel()
}

func TestTaskWaitReturnsResult(t *testing.T) {
	fetcher := &scriptedFetcher{steps: statuses(enums.OrderStatusCreated, enums.OrderStatusPaid)}
	p, err := New(Params{Fetcher: fetcher, Interval: time.Millisecond})
	require.NoError(t, err)

	resp, err := p.Start(context.Background(), "O1").Wait()
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, resp.Status)
}

func TestNewRequiresFetcher(t *testing.T) {
	_, err := New(Params{})
	assert.Error(t, err)
}

func TestSleepWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, sleepWithContext(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.NoError(t, sleepWithContext(context.Background(), time.Millisecond))
}
