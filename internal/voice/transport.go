package voice

import (
	"context"

	"github.com/diamondburned/arikawa/v3/discord"
)

// InboundFrame is one decoded 20 ms frame of 48 kHz stereo PCM from a user.
type InboundFrame struct {
	UserID discord.UserID
	PCM    []byte
}

// Conn is a guild voice connection.
type Conn interface {
	ChannelID() discord.ChannelID
	// Ready reports whether the connection can send and receive. Joins can
	// return before this is true, or never make it true.
	Ready() bool
	// Frames delivers decoded inbound audio. It is closed when the
	// connection is closed.
	Frames() <-chan InboundFrame
	// SendPCM plays one 20 ms frame of 48 kHz stereo PCM.
	SendPCM(ctx context.Context, pcm []byte) error
	Close(ctx context.Context) error
}

// Dialer opens guild voice connections.
type Dialer interface {
	Dial(ctx context.Context, guild discord.GuildID, channel discord.ChannelID) (Conn, error)
}

// VoiceStates looks up which voice channel a member is in.
type VoiceStates interface {
	UserVoiceChannel(guild discord.GuildID, user discord.UserID) (discord.ChannelID, bool)
}

// LiveFormat describes the PCM a live session accepts and produces.
// Both directions are mono 16-bit little endian.
type LiveFormat struct {
	InputRate  int
	OutputRate int
}

// LiveRequest identifies who a live session is for.
type LiveRequest struct {
	GuildID discord.GuildID
	UserID  discord.UserID
}

// LiveSession is a duplex audio/text stream with an AI voice endpoint.
type LiveSession interface {
	Format() LiveFormat
	SendAudio(ctx context.Context, pcm []byte) error
	SendText(ctx context.Context, text string) error
	// Events is closed when the session ends, remotely or through Close.
	Events() <-chan LiveEvent
	// Close is safe to call more than once.
	Close(ctx context.Context) error
}

// LiveDialer connects live sessions.
type LiveDialer interface {
	Dial(ctx context.Context, req LiveRequest) (LiveSession, error)
}
