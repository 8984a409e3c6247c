package voice

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// taskGroup tracks every goroutine the manager starts so Shutdown can
// cancel and await them. A panicking task is logged, not propagated.
type taskGroup struct {
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

func newTaskGroup(logger *zap.Logger) *taskGroup {
	ctx, cancel := context.WithCancel(context.Background())
	return &taskGroup{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		group:  &errgroup.Group{},
	}
}

// Context is cancelled by Wait.
func (t *taskGroup) Context() context.Context {
	return t.ctx
}

// Go runs fn with ctx, or with the group's context when ctx is nil.
func (t *taskGroup) Go(name string, ctx context.Context, fn func(ctx context.Context)) {
	if ctx == nil {
		ctx = t.ctx
	}
	t.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task %s panicked: %v", name, r)
				t.logger.Error("Voice task panicked", zap.String("task", name), zap.Any("panic", r))
			}
		}()
		fn(ctx)
		return nil
	})
}

// Wait cancels every task and blocks until they return or ctx ends.
func (t *taskGroup) Wait(ctx context.Context) error {
	t.cancel()

	done := make(chan error, 1)
	go func() { done <- t.group.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("waiting for voice tasks: %w", ctx.Err())
	}
}
