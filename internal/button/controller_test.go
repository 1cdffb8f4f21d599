package button

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thieenjdev03/ecom-client-sub002/internal/errorcatalog"
	"github.com/thieenjdev03/ecom-client-sub002/internal/gateway"
	"github.com/thieenjdev03/ecom-client-sub002/internal/payment"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/enums"
)

type fakeGateway struct {
	createFn  func(ctx context.Context, money payment.Money) (string, error)
	captureFn func(ctx context.Context, orderID string) (*gateway.CaptureResult, error)

	creates  atomic.Int32
	captures atomic.Int32
}

func (f *fakeGateway) CreateOrder(ctx context.Context, money payment.Money) (string, error) {
	f.creates.Add(1)
	if f.createFn == nil {
		return "O1", nil
	}
	return f.createFn(ctx, money)
}

func (f *fakeGateway) CaptureOrder(ctx context.Context, orderID string) (*gateway.CaptureResult, error) {
	f.captures.Add(1)
	if f.captureFn == nil {
		return &gateway.CaptureResult{Status: enums.OrderStatusPaid, Raw: []byte(`{"status":"PAID"}`)}, nil
	}
	return f.captureFn(ctx, orderID)
}

func usd(t *testing.T, amount string) payment.Money {
	t.Helper()
	m, err := payment.ParseMoney(amount, "USD")
	require.NoError(t, err)
	return m
}

func newController(t *testing.T, gw Gateway) (*Controller, *[]enums.ButtonState) {
	t.Helper()
	var seen []enums.ButtonState
	c, err := New(Params{Gateway: gw, OnTransition: func(_, to enums.ButtonState) {
		seen = append(seen, to)
	}})
	require.NoError(t, err)
	return c, &seen
}

func TestHappyPathReachesDone(t *testing.T) {
	gw := &fakeGateway{}
	c, seen := newController(t, gw)
	ctx := context.Background()

	orderID, err := c.Activate(ctx, usd(t, "29.99"))
	require.NoError(t, err)
	assert.Equal(t, "O1", orderID)
	assert.Equal(t, enums.ButtonAwaitingApproval, c.State())

	require.NoError(t, c.Approve(ctx, "O1"))
	assert.Equal(t, enums.ButtonDone, c.State())

	outcome, ok := c.Outcome()
	require.True(t, ok)
	assert.Equal(t, enums.OutcomeSuccess, outcome.Kind)
	assert.Equal(t, enums.OrderStatusPaid, outcome.Status)
	assert.JSONEq(t, `{"status":"PAID"}`, string(outcome.Raw))
	assert.Equal(t, []enums.ButtonState{
		enums.ButtonCreating, enums.ButtonAwaitingApproval, enums.ButtonCapturing, enums.ButtonDone,
	}, *seen)

	select {
	case <-c.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}

func TestDoubleActivationCreatesOneOrder(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	gw := &fakeGateway{createFn: func(context.Context, payment.Money) (string, error) {
		close(entered)
		<-release
		return "O1", nil
	}}
	c, _ := newController(t, gw)
	money := usd(t, "10.00")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = c.Activate(context.Background(), money)
	}()
	<-entered
	require.Equal(t, enums.ButtonCreating, c.State())

	_, err := c.Activate(context.Background(), money)
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), gw.creates.Load())
	assert.Equal(t, enums.ButtonAwaitingApproval, c.State())
}

func TestSecondApprovalWhileCapturingIsIgnored(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	gw := &fakeGateway{captureFn: func(context.Context, string) (*gateway.CaptureResult, error) {
		close(entered)
		<-release
		return &gateway.CaptureResult{Status: enums.OrderStatusCaptured}, nil
	}}
	c, _ := newController(t, gw)
	_, err := c.Activate(context.Background(), usd(t, "10.00"))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Approve(context.Background(), "O1") }()
	<-entered

	assert.ErrorIs(t, c.Approve(context.Background(), "O1"), ErrBusy)
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), gw.captures.Load())
}

func TestCancelBeforeApprovalMakesNoBackendCall(t *testing.T) {
	gw := &fakeGateway{}
	c, _ := newController(t, gw)
	_, err := c.Activate(context.Background(), usd(t, "5.00"))
	require.NoError(t, err)
	creates := gw.creates.Load()

	require.NoError(t, c.Cancel(context.Background()))

	outcome, ok := c.Outcome()
	require.True(t, ok)
	assert.Equal(t, enums.OutcomeCancelled, outcome.Kind)
	assert.Empty(t, outcome.ErrorCode)
	assert.Equal(t, creates, gw.creates.Load())
	assert.Zero(t, gw.captures.Load())

	assert.ErrorIs(t, c.Approve(context.Background(), "O1"), ErrInvalidTransition, "approval after cancel is ignored")
	assert.Zero(t, gw.captures.Load())
}

func TestCreateFailureSurfacesCatalogCode(t *testing.T) {
	gw := &fakeGateway{createFn: func(context.Context, payment.Money) (string, error) {
		return "", &gateway.GatewayError{Kind: enums.GatewayErrorNetwork, Op: "create_order", Err: errors.New("timeout")}
	}}
	c, _ := newController(t, gw)

	_, err := c.Activate(context.Background(), usd(t, "29.99"))
	require.Error(t, err)
	assert.Equal(t, enums.ButtonFailed, c.State())

	outcome, ok := c.Outcome()
	require.True(t, ok)
	assert.Equal(t, enums.OutcomeError, outcome.Kind)
	assert.Equal(t, errorcatalog.CodeNetworkError, outcome.ErrorCode)
	assert.Equal(t, errorcatalog.Describe(errorcatalog.CodeNetworkError).Message, outcome.Notice.Message)

	_, err = c.Activate(context.Background(), usd(t, "29.99"))
	assert.ErrorIs(t, err, ErrInvalidTransition, "a failed controller is single-use")
}

func TestInvalidAmountCode(t *testing.T) {
	gw := &fakeGateway{createFn: func(context.Context, payment.Money) (string, error) {
		return "", payment.ErrInvalidAmount
	}}
	c, _ := newController(t, gw)
	_, err := c.Activate(context.Background(), payment.Money{})
	require.Error(t, err)
	outcome, _ := c.Outcome()
	assert.Equal(t, errorcatalog.CodeInvalidAmount, outcome.ErrorCode)
}

func TestCaptureStatuses(t *testing.T) {
	tests := []struct {
		name   string
		result *gateway.CaptureResult
		err    error
		state  enums.ButtonState
		kind   enums.OutcomeKind
		code   string
	}{
		{"captured pending confirmation", &gateway.CaptureResult{Status: enums.OrderStatusCaptured}, nil, enums.ButtonDone, enums.OutcomeSuccess, ""},
		{"declined", &gateway.CaptureResult{Status: enums.OrderStatusFailed}, nil, enums.ButtonFailed, enums.OutcomeError, errorcatalog.CodeCaptureFailed},
		{"voided", &gateway.CaptureResult{Status: enums.OrderStatusCancelled}, nil, enums.ButtonFailed, enums.OutcomeError, errorcatalog.CodeOrderCancelled},
		{"rejected", nil, &gateway.GatewayError{Kind: enums.GatewayErrorBackendRejected, StatusCode: 422, ProviderCode: "INSTRUMENT_DECLINED"}, enums.ButtonFailed, enums.OutcomeError, "INSTRUMENT_DECLINED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{captureFn: func(context.Context, string) (*gateway.CaptureResult, error) {
				return tt.result, tt.err
			}}
			c, _ := newController(t, gw)
			_, err := c.Activate(context.Background(), usd(t, "1.00"))
			require.NoError(t, err)

			err = c.Approve(context.Background(), "")
			if tt.err != nil {
				assert.Error(t, err)
			}
			assert.Equal(t, tt.state, c.State())
			outcome, ok := c.Outcome()
			require.True(t, ok)
			assert.Equal(t, tt.kind, outcome.Kind)
			assert.Equal(t, tt.code, outcome.ErrorCode)
		})
	}
}

func TestEmptyCaptureFailsWithoutPanic(t *testing.T) {
	gw := &fakeGateway{captureFn: func(context.Context, string) (*gateway.CaptureResult, error) {
		return nil, nil
	}}
	c, _ := newController(t, gw)
	_, err := c.Activate(context.Background(), usd(t, "1.00"))
	require.NoError(t, err)

	err = c.Approve(context.Background(), "O1")
	assert.ErrorIs(t, err, ErrEmptyCapture)
	assert.Equal(t, enums.ButtonFailed, c.State())
	assert.Nil(t, c.Capture())
	outcome, ok := c.Outcome()
	require.True(t, ok)
	assert.Equal(t, errorcatalog.CodeNoErrorDetails, outcome.ErrorCode)
}

func TestFailedCaptureIsKept(t *testing.T) {
	gw := &fakeGateway{captureFn: func(context.Context, string) (*gateway.CaptureResult, error) {
		return &gateway.CaptureResult{Status: enums.OrderStatusFailed}, nil
	}}
	c, _ := newController(t, gw)
	_, err := c.Activate(context.Background(), usd(t, "1.00"))
	require.NoError(t, err)

	require.NoError(t, c.Approve(context.Background(), ""))
	capture := c.Capture()
	if capture == nil || capture.Status != enums.OrderStatusFailed {
		t.Fatalf("expected FAILED capture to be kept, got %+v", capture)
	}
}

func TestCaptureIgnoresCallerCancellation(t *testing.T) {
	gw := &fakeGateway{captureFn: func(ctx context.Context, _ string) (*gateway.CaptureResult, error) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &gateway.CaptureResult{Status: enums.OrderStatusPaid}, nil
	}}
	c, _ := newController(t, gw)
	_, err := c.Activate(context.Background(), usd(t, "1.00"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, c.Approve(ctx, "O1"))
	assert.Equal(t, enums.ButtonDone, c.State())
}

func TestApprovalForOtherOrderIsRejected(t *testing.T) {
	gw := &fakeGateway{}
	c, _ := newController(t, gw)
	_, err := c.Activate(context.Background(), usd(t, "1.00"))
	require.NoError(t, err)

	assert.ErrorIs(t, c.Approve(context.Background(), "O-other"), ErrOrderMismatch)
	assert.Equal(t, enums.ButtonAwaitingApproval, c.State())
	assert.Zero(t, gw.captures.Load())
}

func TestWidgetErrorCodes(t *testing.T) {
	c, _ := newController(t, &fakeGateway{})
	require.NoError(t, c.Fail(context.Background(), ""), "widget can fail before activation")
	outcome, _ := c.Outcome()
	assert.Equal(t, errorcatalog.CodeNoErrorDetails, outcome.ErrorCode)
	assert.Equal(t, enums.SeverityInfo, outcome.Notice.Severity)

	c, _ = newController(t, &fakeGateway{})
	_, err := c.Activate(context.Background(), usd(t, "1.00"))
	require.NoError(t, err)
	require.NoError(t, c.Fail(context.Background(), "SOME_PROVIDER_CODE"))
	outcome, _ = c.Outcome()
	assert.Equal(t, "SOME_PROVIDER_CODE", outcome.ErrorCode)
	assert.Equal(t, "O1", outcome.OrderID)
}

func TestCancelWhileCreatingIsBusy(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	gw := &fakeGateway{createFn: func(context.Context, payment.Money) (string, error) {
		close(entered)
		<-release
		return "O1", nil
	}}
	c, _ := newController(t, gw)
	money := usd(t, "1.00")
	go func() { _, _ = c.Activate(context.Background(), money) }()
	<-entered

	assert.ErrorIs(t, c.Cancel(context.Background()), ErrBusy)
	close(release)
	require.Eventually(t, func() bool { return c.State() == enums.ButtonAwaitingApproval }, time.Second, time.Millisecond)
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from enums.ButtonState
		ev   event
		to   enums.ButtonState
		ok   bool
	}{
		{enums.ButtonIdle, activated{}, enums.ButtonCreating, true},
		{enums.ButtonIdle, approved{}, enums.ButtonIdle, false},
		{enums.ButtonIdle, dismissed{}, enums.ButtonIdle, false},
		{enums.ButtonCreating, activated{}, enums.ButtonCreating, false},
		{enums.ButtonCreating, orderCreated{}, enums.ButtonAwaitingApproval, true},
		{enums.ButtonCreating, creationFailed{}, enums.ButtonFailed, true},
		{enums.ButtonAwaitingApproval, approved{}, enums.ButtonCapturing, true},
		{enums.ButtonAwaitingApproval, dismissed{}, enums.ButtonCancelled, true},
		{enums.ButtonCapturing, dismissed{}, enums.ButtonCapturing, false},
		{enums.ButtonCapturing, captured{}, enums.ButtonDone, true},
		{enums.ButtonDone, dismissed{}, enums.ButtonDone, false},
		{enums.ButtonCancelled, approved{}, enums.ButtonCancelled, false},
	}
	for _, tt := range tests {
		to, ok := transition(tt.from, tt.ev)
		if to != tt.to || ok != tt.ok {
			t.Fatalf("%s + %s: expected (%s,%v) got (%s,%v)", tt.from, tt.ev.name(), tt.to, tt.ok, to, ok)
		}
	}
}

func TestNewRequiresGateway(t *testing.T) {
	_, err := New(Params{})
	assert.Error(t, err)
}
