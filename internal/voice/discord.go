package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/state"
	"github.com/diamondburned/arikawa/v3/voice"
	"github.com/diamondburned/arikawa/v3/voice/voicegateway"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-kiara/pkg/audio"
)

const frameBuffer = 100

// DiscordDialer joins voice channels through the bot's gateway session.
type DiscordDialer struct {
	logger  *zap.Logger
	state   *state.State
	bitrate int
}

// NewDiscordDialer creates a DiscordDialer. Outbound audio is encoded at
// bitrate bits per second.
func NewDiscordDialer(logger *zap.Logger, st *state.State, bitrate int) *DiscordDialer {
	return &DiscordDialer{logger: logger.Named("discord"), state: st, bitrate: bitrate}
}

// Dial starts joining channel and returns straight away. The connection
// reports Ready once the voice handshake completes.
func (d *DiscordDialer) Dial(ctx context.Context, guild discord.GuildID, channel discord.ChannelID) (Conn, error) {
	ch, err := d.state.Channel(channel)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel info: %w", err)
	}
	if ch.Type != discord.GuildVoice && ch.Type != discord.GuildStageVoice {
		return nil, fmt.Errorf("channel %s is not a voice channel", channel)
	}
	if ch.GuildID != guild {
		return nil, fmt.Errorf("channel %s is not in guild %s", channel, guild)
	}

	vs, err := voice.NewSession(d.state)
	if err != nil {
		return nil, fmt.Errorf("failed to create voice session: %w", err)
	}
	enc, err := audio.NewEncoder(d.bitrate)
	if err != nil {
		return nil, err
	}

	connCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &discordConn{
		logger:   d.logger.With(zap.String("guild_id", guild.String()), zap.String("channel_id", channel.String())),
		channel:  channel,
		session:  vs,
		encoder:  enc,
		ssrcs:    make(map[uint32]discord.UserID),
		decoders: make(map[uint32]*audio.Decoder),
		frames:   make(chan InboundFrame, frameBuffer),
		ctx:      connCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	vs.AddHandler(func(ev *voicegateway.SpeakingEvent) {
		c.ssrcMu.Lock()
		c.ssrcs[ev.SSRC] = ev.UserID
		c.ssrcMu.Unlock()
	})

	go c.run()
	return c, nil
}

// discordConn is one guild's arikawa voice session.
type discordConn struct {
	logger  *zap.Logger
	channel discord.ChannelID
	session *voice.Session
	encoder *audio.Encoder

	ssrcMu sync.RWMutex
	ssrcs  map[uint32]discord.UserID

	// decoders is owned by the read loop.
	decoders map[uint32]*audio.Decoder

	frames chan InboundFrame
	ready  atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	sendMu    sync.Mutex
	closeOnce sync.Once
}

func (c *discordConn) ChannelID() discord.ChannelID { return c.channel }
func (c *discordConn) Ready() bool                  { return c.ready.Load() }
func (c *discordConn) Frames() <-chan InboundFrame  { return c.frames }

func (c *discordConn) run() {
	defer close(c.done)
	defer close(c.frames)

	if err := c.session.JoinChannel(c.ctx, c.channel, false, false); err != nil {
		if c.ctx.Err() == nil {
			c.logger.Warn("Voice join failed", zap.Error(err))
		}
		return
	}
	if err := c.session.Speaking(c.ctx, voicegateway.Microphone); err != nil {
		c.logger.Warn("Failed to set speaking mode", zap.Error(err))
		return
	}
	// arikawa only opens the UDP socket on first write; nothing is
	// received until it is open.
	_, _ = c.session.Write([]byte{})

	c.ready.Store(true)
	c.logger.Info("Voice connection ready")
	c.readLoop()
}

func (c *discordConn) readLoop() {
	for {
		packet, err := c.session.ReadPacket()
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.logger.Debug("Failed to read voice packet", zap.Error(err))
			continue
		}
		if packet == nil || len(packet.Opus) == 0 {
			continue
		}

		ssrc := packet.SSRC()
		c.ssrcMu.RLock()
		user, known := c.ssrcs[ssrc]
		c.ssrcMu.RUnlock()
		if !known {
			// No speaking event for this stream yet.
			continue
		}

		dec, ok := c.decoders[ssrc]
		if !ok {
			if dec, err = audio.NewDecoder(); err != nil {
				c.logger.Error("Failed to create decoder", zap.Error(err))
				continue
			}
			c.decoders[ssrc] = dec
		}
		pcm, err := dec.Decode(packet.Opus)
		if err != nil {
			c.logger.Debug("Failed to decode voice packet", zap.Uint32("ssrc", ssrc), zap.Error(err))
			continue
		}

		select {
		case c.frames <- InboundFrame{UserID: user, PCM: pcm}:
		case <-c.ctx.Done():
			return
		default:
			c.logger.Debug("Frame channel full, dropping frame", zap.String("user_id", user.String()))
		}
	}
}

// SendPCM encodes and sends one frame. arikawa paces writes to real time.
func (c *discordConn) SendPCM(ctx context.Context, pcm []byte) error {
	if !c.ready.Load() {
		return ErrConnectionNotReady
	}
	opus, err := c.encoder.Encode(pcm)
	if err != nil {
		return err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if _, err := c.session.Write(opus); err != nil {
		return fmt.Errorf("failed to send voice frame: %w", err)
	}
	return nil
}

// Close leaves the channel and waits for the read loop to stop.
func (c *discordConn) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		c.ready.Store(false)
		c.cancel()
		if leaveErr := c.session.Leave(ctx); leaveErr != nil && !errors.Is(leaveErr, context.Canceled) {
			err = fmt.Errorf("failed to leave voice channel: %w", leaveErr)
		}
		select {
		case <-c.done:
		case <-ctx.Done():
		}
	})
	return err
}

// StateVoiceStates reads voice states from the gateway cache.
type StateVoiceStates struct {
	state *state.State
}

// NewStateVoiceStates wraps st.
func NewStateVoiceStates(st *state.State) *StateVoiceStates {
	return &StateVoiceStates{state: st}
}

// UserVoiceChannel returns the channel the user is connected to.
func (s *StateVoiceStates) UserVoiceChannel(guild discord.GuildID, user discord.UserID) (discord.ChannelID, bool) {
	vs, err := s.state.VoiceState(guild, user)
	if err != nil || vs == nil || !vs.ChannelID.IsValid() {
		return 0, false
	}
	return vs.ChannelID, true
}
