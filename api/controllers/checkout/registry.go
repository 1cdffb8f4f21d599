package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	checkoutsvc "github.com/thieenjdev03/ecom-client-sub002/internal/checkout"
	"github.com/thieenjdev03/ecom-client-sub002/internal/payment"
	pkgerrors "github.com/thieenjdev03/ecom-client-sub002/pkg/errors"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/logger"
)

// SessionFactory builds a session bound to the given widget.
type SessionFactory func(widget checkoutsvc.Widget) (*checkoutsvc.Session, error)

type RegistryParams struct {
	NewSession SessionFactory
	Logger     *logger.Logger
	// TTL bounds how long a session stays addressable after creation.
	TTL time.Duration
	// Wait bounds how long a request blocks on the session before it
	// answers with the current snapshot.
	Wait time.Duration
	// SweepInterval is the cadence of Run. Defaults to a quarter of TTL,
	// capped at a minute.
	SweepInterval time.Duration
}

// Registry is the table of live checkout sessions behind the HTTP surface.
type Registry struct {
	newSession SessionFactory
	logger     *logger.Logger
	ttl        time.Duration
	wait       time.Duration
	sweepEvery time.Duration
	now        func() time.Time

	mu       sync.Mutex
	entries  map[string]*entry
	closed   bool
	stop     chan struct{}
	stopOnce sync.Once
}

type entry struct {
	session *checkoutsvc.Session
	relay   *relayWidget
	created time.Time
	cancel  context.CancelFunc
	done    chan struct{}

	startErr error
}

func NewRegistry(params RegistryParams) (*Registry, error) {
	if params.NewSession == nil {
		return nil, errors.New("session factory required")
	}
	if params.TTL <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	wait := params.Wait
	if wait <= 0 {
		wait = 20 * time.Second
	}
	sweepEvery := params.SweepInterval
	if sweepEvery <= 0 {
		sweepEvery = min(params.TTL/4, time.Minute)
	}
	return &Registry{
		newSession: params.NewSession,
		logger:     params.Logger,
		ttl:        params.TTL,
		wait:       wait,
		sweepEvery: max(sweepEvery, time.Millisecond),
		now:        time.Now,
		entries:    make(map[string]*entry),
		stop:       make(chan struct{}),
	}, nil
}

// Run evicts expired sessions on a fixed cadence until ctx is cancelled or
// the registry is closed.
func (reg *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(reg.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reg.stop:
			return nil
		case <-ticker.C:
			reg.sweep()
		}
	}
}

type startInput struct {
	Money   payment.Money
	Cart    *checkoutsvc.Cart
	Contact *checkoutsvc.Contact
}

// start registers a new session and runs its checkout in the background. It
// returns once the widget has an order to show, the attempt settled, or the
// wait elapsed.
func (reg *Registry) start(ctx context.Context, in startInput) (*entry, error) {
	reg.sweep()

	relay := newRelayWidget()
	session, err := reg.newSession(relay)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create checkout session")
	}
	if in.Cart != nil {
		if err := session.SetCart(*in.Cart); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
		}
	}
	if in.Contact != nil {
		if err := session.SetContact(*in.Contact); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
		}
	}

	// The attempt outlives the request but keeps its values (credential, log fields).
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e := &entry{
		session: session,
		relay:   relay,
		created: reg.now(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	reg.mu.Lock()
	if reg.closed {
		reg.mu.Unlock()
		cancel()
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "checkout is shutting down")
	}
	reg.entries[session.ID()] = e
	reg.mu.Unlock()

	amount := in.Money.String()
	currency := string(in.Money.Currency)
	go func() {
		defer close(e.done)
		defer cancel()
		_, e.startErr = session.StartCheckout(runCtx, amount, currency)
	}()

	timer := time.NewTimer(reg.wait)
	defer timer.Stop()
	select {
	case <-relay.presented:
	case <-e.done:
		if e.startErr != nil {
			reg.remove(session.ID())
			return nil, startError(e.startErr)
		}
	case <-timer.C:
		session.Cancel()
		reg.remove(session.ID())
		return nil, pkgerrors.New(pkgerrors.CodeTimeout, "order creation timed out")
	case <-ctx.Done():
		session.Cancel()
		reg.remove(session.ID())
		return nil, pkgerrors.Wrap(pkgerrors.CodeTimeout, ctx.Err(), "request cancelled")
	}
	return e, nil
}

// get returns a live session entry. An expired one is evicted on the spot.
func (reg *Registry) get(id string) (*entry, error) {
	reg.mu.Lock()
	e, ok := reg.entries[id]
	if ok && reg.expired(e) {
		delete(reg.entries, id)
		reg.mu.Unlock()
		e.evict()
		return nil, errSessionNotFound()
	}
	reg.mu.Unlock()
	if !ok {
		return nil, errSessionNotFound()
	}
	return e, nil
}

// abort cancels the session's attempt and forgets it once it settled.
func (reg *Registry) abort(ctx context.Context, id string) (checkoutsvc.Snapshot, error) {
	e, err := reg.get(id)
	if err != nil {
		return checkoutsvc.Snapshot{}, err
	}
	e.session.Cancel()
	reg.settle(ctx, e)
	reg.remove(id)
	return e.session.Snapshot(), nil
}

// settle waits, bounded by the registry wait, for the attempt to finish.
func (reg *Registry) settle(ctx context.Context, e *entry) {
	timer := time.NewTimer(reg.wait)
	defer timer.Stop()
	select {
	case <-e.done:
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Close aborts every session and waits for their attempts to return.
func (reg *Registry) Close(ctx context.Context) error {
	reg.stopOnce.Do(func() { close(reg.stop) })
	reg.mu.Lock()
	reg.closed = true
	entries := make([]*entry, 0, len(reg.entries))
	for id, e := range reg.entries {
		entries = append(entries, e)
		delete(reg.entries, id)
	}
	reg.mu.Unlock()

	for _, e := range entries {
		e.session.Cancel()
		e.cancel()
	}
	for _, e := range entries {
		select {
		case <-e.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Len is the number of addressable sessions.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.entries)
}

func (reg *Registry) remove(id string) {
	reg.mu.Lock()
	delete(reg.entries, id)
	reg.mu.Unlock()
}

// sweep drops expired sessions, cancelling any that are still running.
func (reg *Registry) sweep() {
	reg.mu.Lock()
	var stale []*entry
	for id, e := range reg.entries {
		if reg.expired(e) {
			stale = append(stale, e)
			delete(reg.entries, id)
		}
	}
	reg.mu.Unlock()

	for _, e := range stale {
		e.evict()
	}
	if len(stale) > 0 {
		reg.logger.Info(reg.logger.WithField(context.Background(), "count", len(stale)), "checkout.sessions_expired")
	}
}

func (e *entry) evict() {
	e.session.Cancel()
	e.cancel()
}

func (reg *Registry) expired(e *entry) bool {
	return reg.now().Sub(e.created) > reg.ttl
}

func startError(err error) error {
	code := pkgerrors.CodeValidation
	switch {
	case errors.Is(err, checkoutsvc.ErrAmountMismatch):
		code = pkgerrors.CodeStateConflict
	case errors.Is(err, checkoutsvc.ErrCheckoutInFlight):
		code = pkgerrors.CodeConflict
	}
	return pkgerrors.Wrap(code, err, err.Error())
}

var errWidgetNotReady = errors.New("checkout widget has no order yet")

func errSessionNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
}

// relayWidget hands the session's callbacks to HTTP handlers: the real
// widget runs in the buyer's browser and reports through the API.
type relayWidget struct {
	mu        sync.Mutex
	cb        checkoutsvc.Callbacks
	presented chan struct{}
	once      sync.Once
}

func newRelayWidget() *relayWidget {
	return &relayWidget{presented: make(chan struct{})}
}

func (w *relayWidget) Present(_ context.Context, _ string, cb checkoutsvc.Callbacks) error {
	w.mu.Lock()
	w.cb = cb
	w.mu.Unlock()
	w.once.Do(func() { close(w.presented) })
	return nil
}

func (w *relayWidget) callbacks() (checkoutsvc.Callbacks, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cb == nil {
		return nil, errWidgetNotReady
	}
	return w.cb, nil
}
