package poller

import (
	"context"
	"sync"

	"github.com/thieenjdev03/ecom-client-sub002/internal/gateway"
)

// Task is a poll run in the background. Cancel stops it before the next
// status check and releases its timer.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	resp *gateway.StatusResponse
	err  error
}

// Start runs Poll on its own goroutine and returns a handle to it.
func (p *Poller) Start(ctx context.Context, orderID string, opts ...Option) *Task {
	ctx, cancel := context.WithCancel(ctx)
	task := &Task{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer cancel()
		defer close(task.done)
		task.resp, task.err = p.Poll(ctx, orderID, opts...)
	}()
	return task
}

// Cancel is safe to call more than once and after the run finished.
func (t *Task) Cancel() {
	t.once.Do(t.cancel)
}

func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the run ends and returns its result.
func (t *Task) Wait() (*gateway.StatusResponse, error) {
	<-t.done
	return t.resp, t.err
}
