package voice

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Raikerian/go-discord-kiara/pkg/audio"
)

func TestPlayerStartsAtMinBuffer(t *testing.T) {
	out := newFakeConn(1, true)
	p := NewPlayer(zaptest.NewLogger(t), clockwork.NewFakeClock(), out, 40*time.Millisecond, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Enqueue(make([]byte, audio.DiscordFrameBytes))
	assert.False(t, p.IsPlaying())
	assert.Equal(t, 20*time.Millisecond, p.Buffered())

	// A half frame tail is padded to a full frame.
	p.Enqueue(make([]byte, audio.DiscordFrameBytes+audio.DiscordFrameBytes/2))
	assert.Eventually(t, func() bool { return out.sentFrames() == 3 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, p.Buffered())
	assert.Eventually(t, func() bool { return !p.IsPlaying() }, time.Second, 5*time.Millisecond)
}

func TestPlayerIdleFlushStartsShortClip(t *testing.T) {
	clock := clockwork.NewFakeClock()
	out := newFakeConn(1, true)
	p := NewPlayer(zaptest.NewLogger(t), clock, out, time.Second, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Enqueue(make([]byte, audio.DiscordFrameBytes))
	require.Zero(t, out.sentFrames())

	assert.Eventually(t, func() bool {
		clock.Advance(100 * time.Millisecond)
		return out.sentFrames() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPlayerFlush(t *testing.T) {
	p := NewPlayer(zaptest.NewLogger(t), clockwork.NewFakeClock(), newFakeConn(1, true), time.Second, time.Hour)

	p.Enqueue(make([]byte, 100))
	p.Enqueue(nil)
	assert.Equal(t, 100, p.Flush())
	assert.Zero(t, p.Flush())
	assert.False(t, p.IsPlaying())
}
