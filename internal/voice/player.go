package voice

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-kiara/pkg/audio"
	"github.com/Raikerian/go-discord-kiara/pkg/util"
)

// FrameSender plays 20 ms frames of 48 kHz stereo PCM.
type FrameSender interface {
	SendPCM(ctx context.Context, pcm []byte) error
}

// Player is a guild's outbound playback queue. Audio starts playing once
// minBuffer is queued, or once no new audio has arrived for idleFlush.
// The transport paces frames, so Run sends as fast as SendPCM returns.
type Player struct {
	logger    *zap.Logger
	clock     clockwork.Clock
	out       FrameSender
	minBuffer int
	idleFlush time.Duration

	mu      sync.Mutex
	buf     []byte
	playing bool

	signal chan struct{}
}

// NewPlayer creates a Player writing to out.
func NewPlayer(logger *zap.Logger, clock clockwork.Clock, out FrameSender, minBuffer, idleFlush time.Duration) *Player {
	return &Player{
		logger:    logger,
		clock:     clock,
		out:       out,
		minBuffer: audio.BytesFor(audio.DiscordSampleRate, audio.DiscordChannels, int(minBuffer/time.Millisecond)),
		idleFlush: idleFlush,
		signal:    make(chan struct{}, 1),
	}
}

// Enqueue appends 48 kHz stereo PCM.
func (p *Player) Enqueue(pcm []byte) {
	if len(pcm) == 0 {
		return
	}

	p.mu.Lock()
	p.buf = append(p.buf, pcm...)
	if len(p.buf) >= p.minBuffer {
		p.playing = true
	}
	p.mu.Unlock()

	select {
	case p.signal <- struct{}{}:
	default:
	}
}

// Flush drops everything not yet played and returns how many bytes went.
func (p *Player) Flush() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.buf)
	p.buf = nil
	p.playing = false
	return n
}

// Buffered returns how much audio is waiting.
func (p *Player) Buffered() time.Duration {
	p.mu.Lock()
	n := len(p.buf)
	p.mu.Unlock()

	return time.Duration(n) * time.Second / time.Duration(audio.DiscordSampleRate*audio.DiscordChannels*2)
}

// IsPlaying reports whether frames are being sent.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Run plays queued audio until ctx ends.
func (p *Player) Run(ctx context.Context) {
	idle := util.NewDebouncer(p.clock, p.idleFlush)
	defer idle.Stop()

	for {
		if frame, ok := p.nextFrame(); ok {
			if err := p.out.SendPCM(ctx, frame); err != nil {
				if ctx.Err() != nil {
					return
				}
				p.logger.Debug("Failed to send playback frame", zap.Error(err))
			}
			continue
		}

		select {
		case <-p.signal:
			idle.Reset()
		case <-idle.C():
			p.startIfBuffered()
		case <-ctx.Done():
			return
		}
	}
}

func (p *Player) startIfBuffered() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buf) > 0 {
		p.playing = true
	}
}

// nextFrame takes one frame off the buffer while playing. A short tail is
// zero padded. Playback pauses once the buffer drains.
func (p *Player) nextFrame() ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.playing {
		return nil, false
	}
	if len(p.buf) == 0 {
		p.playing = false
		return nil, false
	}

	frame := make([]byte, audio.DiscordFrameBytes)
	n := copy(frame, p.buf)
	p.buf = p.buf[n:]
	if len(p.buf) == 0 {
		p.buf = nil
	}
	return frame, true
}
