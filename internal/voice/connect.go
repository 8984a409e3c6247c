package voice

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// DialFunc starts one connection attempt.
type DialFunc func(ctx context.Context) (Conn, error)

// RetryOptions bounds ConnectWithRetries.
type RetryOptions struct {
	Attempts     int
	Timeout      time.Duration // per attempt, including readiness polling
	PollInterval time.Duration
	Backoff      time.Duration // pause between attempts
}

func (o *RetryOptions) setDefaults() {
	if o.Attempts < 1 {
		o.Attempts = 3
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 250 * time.Millisecond
	}
	if o.Backoff < 0 {
		o.Backoff = 0
	}
}

// ConnectWithRetries dials until a connection reports Ready. A dial that
// returns without error is not trusted: readiness is polled until the
// attempt times out, and a connection that never becomes ready is closed
// before the next attempt so no stale connection lingers. All waiting goes
// through clock.
func ConnectWithRetries(ctx context.Context, clock clockwork.Clock, dial DialFunc, opts RetryOptions) (Conn, error) {
	opts.setDefaults()

	var lastErr error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		conn, err := connectOnce(ctx, clock, dial, opts)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}

		if attempt < opts.Attempts && opts.Backoff > 0 {
			if !sleep(ctx, clock, opts.Backoff) {
				break
			}
		}
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrJoinFailed, ctx.Err())
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrJoinFailed, opts.Attempts, lastErr)
}

func connectOnce(ctx context.Context, clock clockwork.Clock, dial DialFunc, opts RetryOptions) (Conn, error) {
	deadline := clock.NewTimer(opts.Timeout)
	defer deadline.Stop()

	conn, err := dial(ctx)
	if err != nil {
		return nil, err
	}

	for {
		if conn.Ready() {
			return conn, nil
		}

		poll := clock.NewTimer(opts.PollInterval)
		select {
		case <-poll.Chan():
			continue
		case <-deadline.Chan():
			poll.Stop()
		case <-ctx.Done():
			poll.Stop()
		}

		// Timed out or cancelled: drop the half-open connection.
		_ = conn.Close(context.WithoutCancel(ctx))
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrConnectionNotReady
	}
}

func sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	t := clock.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.Chan():
		return true
	case <-ctx.Done():
		return false
	}
}
