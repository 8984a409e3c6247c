// Package voice manages guild voice connections and arbitrates who gets
// to talk to the live AI endpoint: one active conversation per guild, with
// everyone else waiting in line.
package voice

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

var errManagerClosed = errors.New("voice manager is shut down")

// Options tunes a Manager.
type Options struct {
	Retry RetryOptions

	// Greeting is sent to the live endpoint as text once a session starts.
	Greeting string

	EndPhrases  []string
	EndGrace    time.Duration
	IdleTimeout time.Duration

	// WakeOnSpeech starts a session when a user starts speaking. It never
	// fires while push-to-talk is enabled.
	WakeOnSpeech bool
	SilenceGap   time.Duration

	PlaybackMinBuffer time.Duration
	PlaybackIdleFlush time.Duration

	PTT PTTState
}

// guildConn is a guild's voice connection and its single session slot.
// Every field is guarded by Manager.mu.
type guildConn struct {
	id      discord.GuildID
	channel discord.ChannelID
	state   ConnectionState

	conn   Conn
	sink   *Sink
	player *Player
	cancel context.CancelFunc

	session *userSession
	waiting []discord.UserID
}

func (g *guildConn) enqueueWaiting(user discord.UserID, front bool) int {
	if i := slices.Index(g.waiting, user); i >= 0 {
		return i + 1
	}
	if front {
		g.waiting = slices.Insert(g.waiting, 0, user)
		return 1
	}
	g.waiting = append(g.waiting, user)
	return len(g.waiting)
}

func (g *guildConn) removeWaiting(user discord.UserID) bool {
	i := slices.Index(g.waiting, user)
	if i < 0 {
		return false
	}
	g.waiting = slices.Delete(g.waiting, i, i+1)
	return true
}

// Manager owns voice connections and conversation sessions. All of its
// mutable state sits behind one mutex; network calls that may take a while
// (joins, live handshakes) run with the lock released.
type Manager struct {
	logger   *zap.Logger
	opts     Options
	dialer   Dialer
	live     LiveDialer
	states   VoiceStates
	clock    clockwork.Clock
	detector *EndPhraseDetector
	tasks    *taskGroup

	mu      sync.Mutex
	guilds  map[discord.GuildID]*guildConn
	ptt     PTTState
	started bool
	closed  bool
}

// NewManager creates a Manager. Call Start to run the idle watchdog.
func NewManager(logger *zap.Logger, opts Options, dialer Dialer, live LiveDialer, states VoiceStates, clock clockwork.Clock) *Manager {
	logger = logger.Named("voice")
	if opts.SilenceGap <= 0 {
		opts.SilenceGap = time.Second
	}
	if opts.PlaybackIdleFlush <= 0 {
		opts.PlaybackIdleFlush = 100 * time.Millisecond
	}

	return &Manager{
		logger:   logger,
		opts:     opts,
		dialer:   dialer,
		live:     live,
		states:   states,
		clock:    clock,
		detector: NewEndPhraseDetector(opts.EndPhrases),
		tasks:    newTaskGroup(logger),
		guilds:   make(map[discord.GuildID]*guildConn),
		ptt:      PTTState{Enabled: opts.PTT.Enabled, GuildID: opts.PTT.GuildID, UserID: opts.PTT.UserID},
	}
}

// Start launches the idle watchdog. Calling it twice does nothing.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started || m.closed || m.opts.IdleTimeout <= 0 {
		return
	}
	m.started = true
	m.tasks.Go("watchdog", nil, m.Run)
}

// Shutdown leaves every guild, then cancels and awaits every goroutine
// the manager started.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	guilds := make([]*guildConn, 0, len(m.guilds))
	for _, gc := range m.guilds {
		guilds = append(guilds, gc)
	}
	m.mu.Unlock()

	for _, gc := range guilds {
		m.teardown(ctx, gc, "shutdown")
	}

	err := m.tasks.Wait(ctx)
	m.logger.Info("Voice manager stopped", zap.Int("guilds_left", len(guilds)))
	return err
}

// JoinChannel connects to channel, moving from another channel in the same
// guild if needed. A join that never becomes ready fails with ErrJoinFailed
// and leaves the guild Disconnected.
func (m *Manager) JoinChannel(ctx context.Context, guild discord.GuildID, channel discord.ChannelID) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errManagerClosed
	}
	if gc := m.guilds[guild]; gc != nil {
		switch {
		case gc.state == Connecting:
			m.mu.Unlock()
			return ErrJoinInProgress
		case gc.channel == channel:
			m.mu.Unlock()
			return nil
		}
		m.mu.Unlock()
		m.teardown(ctx, gc, "moving channel")
		m.mu.Lock()
		if m.guilds[guild] != nil {
			// Someone else started a join while we were leaving.
			m.mu.Unlock()
			return ErrJoinInProgress
		}
	}

	gc := &guildConn{id: guild, channel: channel, state: Connecting}
	m.guilds[guild] = gc
	m.mu.Unlock()

	m.logger.Info("Joining voice channel",
		zap.String("guild_id", guild.String()),
		zap.String("channel_id", channel.String()))

	conn, err := ConnectWithRetries(ctx, m.clock, func(ctx context.Context) (Conn, error) {
		return m.dialer.Dial(ctx, guild, channel)
	}, m.opts.Retry)

	m.mu.Lock()
	if m.guilds[guild] != gc {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close(context.WithoutCancel(ctx))
		}
		joinsTotal.WithLabelValues("aborted").Inc()
		return fmt.Errorf("%w: left during join", ErrJoinFailed)
	}
	if err != nil {
		delete(m.guilds, guild)
		m.mu.Unlock()
		joinsTotal.WithLabelValues("failed").Inc()
		m.logger.Warn("Failed to join voice channel",
			zap.String("guild_id", guild.String()),
			zap.String("channel_id", channel.String()),
			zap.Error(err))
		return err
	}

	guildCtx, cancel := context.WithCancel(m.tasks.Context())
	gc.conn = conn
	gc.state = Connected
	gc.cancel = cancel
	gc.sink = NewSink(m.logger.With(zap.String("guild_id", guild.String())), m.clock, m.opts.SilenceGap)
	gc.player = NewPlayer(m.logger.With(zap.String("guild_id", guild.String())), m.clock, conn,
		m.opts.PlaybackMinBuffer, m.opts.PlaybackIdleFlush)
	m.mu.Unlock()

	m.tasks.Go("frames", guildCtx, func(ctx context.Context) { m.pumpFrames(ctx, gc) })
	m.tasks.Go("sink", guildCtx, func(ctx context.Context) { m.consumeSink(ctx, gc) })
	m.tasks.Go("player", guildCtx, gc.player.Run)

	joinsTotal.WithLabelValues("connected").Inc()
	m.logger.Info("Joined voice channel",
		zap.String("guild_id", guild.String()),
		zap.String("channel_id", channel.String()))
	return nil
}

// LeaveChannel ends every session in the guild and disconnects.
func (m *Manager) LeaveChannel(ctx context.Context, guild discord.GuildID) error {
	m.mu.Lock()
	gc := m.guilds[guild]
	m.mu.Unlock()

	if gc == nil {
		return ErrNotConnected
	}
	m.teardown(ctx, gc, "leave")
	return nil
}

// HandleConnectionLost tears down a guild whose voice connection dropped
// underneath us. Sessions are ended before the connection record goes.
//
// Only a Connected guild is torn down. Our own leaves (a retry dropping a
// half-open attempt, a channel move) echo back from the gateway as a null
// channel while the next join is still Connecting, and must not abort it.
func (m *Manager) HandleConnectionLost(ctx context.Context, guild discord.GuildID) {
	m.mu.Lock()
	gc := m.guilds[guild]
	if gc == nil || gc.state != Connected {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.teardown(ctx, gc, "connection lost")
}

// HandleChannelMoved records that the bot was moved to channel by someone
// else. Waiting users are then admitted only if they sit in the new channel.
func (m *Manager) HandleChannelMoved(_ context.Context, guild discord.GuildID, channel discord.ChannelID) {
	m.mu.Lock()
	gc := m.guilds[guild]
	if gc == nil || gc.state != Connected || !channel.IsValid() || gc.channel == channel {
		m.mu.Unlock()
		return
	}
	from := gc.channel
	gc.channel = channel
	m.mu.Unlock()

	m.logger.Info("Moved to another voice channel",
		zap.String("guild_id", guild.String()),
		zap.String("from_channel_id", from.String()),
		zap.String("channel_id", channel.String()))
	m.admitNext(guild)
}

// teardown ends gc's session, drops its waiting list and removes it. It is
// a no-op if gc has already been replaced or removed.
func (m *Manager) teardown(ctx context.Context, gc *guildConn, reason string) bool {
	m.mu.Lock()
	if m.guilds[gc.id] != gc {
		m.mu.Unlock()
		return false
	}

	var live LiveSession
	if s := gc.session; s != nil {
		live = m.closeSessionLocked(gc, s, reason)
	}
	gc.waiting = nil
	if gc.player != nil {
		gc.player.Flush()
	}
	if gc.cancel != nil {
		gc.cancel()
	}
	if gc.sink != nil {
		gc.sink.Close()
	}
	delete(m.guilds, gc.id)
	conn := gc.conn
	m.mu.Unlock()

	m.closeLive(ctx, live)
	if conn != nil {
		if err := conn.Close(context.WithoutCancel(ctx)); err != nil {
			m.logger.Debug("Error closing voice connection",
				zap.String("guild_id", gc.id.String()),
				zap.Error(err))
		}
	}

	m.logger.Info("Left voice channel",
		zap.String("guild_id", gc.id.String()),
		zap.String("channel_id", gc.channel.String()),
		zap.String("reason", reason))
	return true
}

// pumpFrames moves decoded frames from the connection into the sink. If
// the connection closes on its own, the guild is torn down.
func (m *Manager) pumpFrames(ctx context.Context, gc *guildConn) {
	frames := gc.conn.Frames()
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				if ctx.Err() == nil {
					m.logger.Warn("Voice connection closed unexpectedly", zap.String("guild_id", gc.id.String()))
					m.teardown(context.WithoutCancel(ctx), gc, "connection closed")
				}
				return
			}
			gc.sink.Write(frame)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) consumeSink(ctx context.Context, gc *guildConn) {
	events := gc.sink.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.handleSinkEvent(ctx, gc.id, ev)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) handleSinkEvent(ctx context.Context, guild discord.GuildID, ev SinkEvent) {
	switch e := ev.(type) {
	case SpeakingStarted:
		m.onSpeakingStarted(guild, e.UserID)
	case AudioChunk:
		m.forwardAudio(ctx, guild, e)
	}
}

// IsConnected reports whether the guild has a ready voice connection.
func (m *Manager) IsConnected(guild discord.GuildID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	gc := m.guilds[guild]
	return gc != nil && gc.state == Connected
}

// ActiveSession returns the guild's active session, if any.
func (m *Manager) ActiveSession(guild discord.GuildID) (SessionInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	gc := m.guilds[guild]
	if gc == nil || gc.session == nil || gc.session.state != SessionActive {
		return SessionInfo{}, false
	}
	return gc.session.info(), true
}

// Status snapshots the guild's voice state.
func (m *Manager) Status(guild discord.GuildID) GuildStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := GuildStatus{GuildID: guild, State: Disconnected}
	gc := m.guilds[guild]
	if gc == nil {
		return st
	}
	st.ChannelID = gc.channel
	st.State = gc.state
	st.Waiting = slices.Clone(gc.waiting)
	if gc.session != nil {
		info := gc.session.info()
		st.Session = &info
	}
	if gc.player != nil {
		st.Buffered = gc.player.Buffered()
	}
	return st
}
