package voice

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/diamondburned/arikawa/v3/discord"
)

type fakeConn struct {
	channel discord.ChannelID
	ready   atomic.Bool
	frames  chan InboundFrame

	mu     sync.Mutex
	sent   [][]byte
	closes int
	once   sync.Once
}

func newFakeConn(channel discord.ChannelID, ready bool) *fakeConn {
	c := &fakeConn{channel: channel, frames: make(chan InboundFrame, 16)}
	c.ready.Store(ready)
	return c
}

func (c *fakeConn) ChannelID() discord.ChannelID { return c.channel }
func (c *fakeConn) Ready() bool                  { return c.ready.Load() }
func (c *fakeConn) Frames() <-chan InboundFrame  { return c.frames }

func (c *fakeConn) SendPCM(_ context.Context, pcm []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, pcm)
	return nil
}

func (c *fakeConn) Close(context.Context) error {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	c.once.Do(func() { close(c.frames) })
	return nil
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func (c *fakeConn) sentFrames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

// fakeDialer hands out conns that are ready unless notReady is set or the
// dial is one of the first notReadyDials. onDial runs after each dial with
// the dial count.
type fakeDialer struct {
	mu            sync.Mutex
	notReady      bool
	notReadyDials int
	err           error
	conns         []*fakeConn
	onDial        func(n int)
}

func (d *fakeDialer) Dial(_ context.Context, _ discord.GuildID, channel discord.ChannelID) (Conn, error) {
	d.mu.Lock()
	if d.err != nil {
		d.mu.Unlock()
		return nil, d.err
	}
	c := newFakeConn(channel, !d.notReady && len(d.conns) >= d.notReadyDials)
	d.conns = append(d.conns, c)
	n, hook := len(d.conns), d.onDial
	d.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return c, nil
}

func (d *fakeDialer) dialed() []*fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeConn(nil), d.conns...)
}

type fakeLive struct {
	events chan LiveEvent

	mu     sync.Mutex
	audio  [][]byte
	texts  []string
	closed bool
	once   sync.Once

	onClose func()
}

func newFakeLive() *fakeLive {
	return &fakeLive{events: make(chan LiveEvent, 16)}
}

func (l *fakeLive) Format() LiveFormat {
	return LiveFormat{InputRate: 16000, OutputRate: 24000}
}

func (l *fakeLive) SendAudio(_ context.Context, pcm []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrSessionEnded
	}
	l.audio = append(l.audio, pcm)
	return nil
}

func (l *fakeLive) SendText(_ context.Context, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrSessionEnded
	}
	l.texts = append(l.texts, text)
	return nil
}

func (l *fakeLive) Events() <-chan LiveEvent { return l.events }

func (l *fakeLive) Close(context.Context) error {
	l.mu.Lock()
	l.closed = true
	hook := l.onClose
	l.onClose = nil
	l.mu.Unlock()
	if hook != nil {
		hook()
	}
	l.once.Do(func() { close(l.events) })
	return nil
}

func (l *fakeLive) setOnClose(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onClose = fn
}

func (l *fakeLive) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *fakeLive) audioChunks() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.audio)
}

func (l *fakeLive) sentTexts() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.texts...)
}

// fakeLiveDialer records one fakeLive per user. When gate is set, Dial
// blocks until it is closed.
type fakeLiveDialer struct {
	gate chan struct{}
	err  error

	mu       sync.Mutex
	sessions map[discord.UserID]*fakeLive
	dials    int
}

func newFakeLiveDialer() *fakeLiveDialer {
	return &fakeLiveDialer{sessions: make(map[discord.UserID]*fakeLive)}
}

func (d *fakeLiveDialer) Dial(ctx context.Context, req LiveRequest) (LiveSession, error) {
	d.mu.Lock()
	d.dials++
	gate, err := d.gate, d.err
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	l := newFakeLive()
	d.mu.Lock()
	d.sessions[req.UserID] = l
	d.mu.Unlock()
	return l, nil
}

func (d *fakeLiveDialer) session(user discord.UserID) *fakeLive {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions[user]
}

func (d *fakeLiveDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type fakeStates struct {
	mu       sync.Mutex
	channels map[discord.UserID]discord.ChannelID
}

func newFakeStates() *fakeStates {
	return &fakeStates{channels: make(map[discord.UserID]discord.ChannelID)}
}

func (s *fakeStates) set(user discord.UserID, ch discord.ChannelID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch == 0 {
		delete(s.channels, user)
		return
	}
	s.channels[user] = ch
}

func (s *fakeStates) UserVoiceChannel(_ discord.GuildID, user discord.UserID) (discord.ChannelID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[user]
	return ch, ok
}

var errDialRefused = errors.New("dial refused")
