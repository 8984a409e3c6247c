package ptt

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
)

const bridgeBuffer = 32

// Controller receives key transitions. *voice.Manager implements it.
type Controller interface {
	HandlePTTPress(ctx context.Context) error
	HandlePTTRelease()
}

// Event is one key transition.
type Event struct {
	Key     string
	Pressed bool
}

// Bridge hands key events from any goroutine to a single consumer, so
// presses and releases reach the controller in the order they happened.
type Bridge struct {
	logger *zap.Logger
	ctrl   Controller
	key    string
	events chan Event

	dropped atomic.Int64
}

// NewBridge creates a Bridge that only acts on key.
func NewBridge(logger *zap.Logger, ctrl Controller, key string) *Bridge {
	return &Bridge{
		logger: logger.Named("ptt"),
		ctrl:   ctrl,
		key:    NormalizeKey(key),
		events: make(chan Event, bridgeBuffer),
	}
}

// Key returns the normalised key the bridge listens for.
func (b *Bridge) Key() string {
	return b.key
}

// Submit queues ev without blocking. It reports false if the event was
// dropped because the consumer is behind.
func (b *Bridge) Submit(ev Event) bool {
	select {
	case b.events <- ev:
		return true
	default:
		n := b.dropped.Add(1)
		b.logger.Warn("PTT event dropped", zap.Bool("pressed", ev.Pressed), zap.Int64("dropped", n))
		return false
	}
}

// Run delivers events until ctx ends. Events for other keys are ignored.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case ev := <-b.events:
			if NormalizeKey(ev.Key) != b.key {
				b.logger.Debug("Ignoring key", zap.String("key", ev.Key))
				continue
			}
			if !ev.Pressed {
				b.ctrl.HandlePTTRelease()
				continue
			}
			if err := b.ctrl.HandlePTTPress(ctx); err != nil {
				b.logger.Warn("Push-to-talk press failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}
