package voice

import (
	"errors"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
)

var (
	ErrNotConnected       = errors.New("not connected to a voice channel in this guild")
	ErrJoinFailed         = errors.New("could not join voice channel")
	ErrJoinInProgress     = errors.New("a voice join is already in progress for this guild")
	ErrConnectionNotReady = errors.New("voice connection did not become ready")
	ErrSessionEnded       = errors.New("voice session ended")
	ErrUserNotInVoice     = errors.New("user is not in a voice channel")
)

// ConnectionState is the lifecycle of a guild's voice connection.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// SessionState is the lifecycle of one user's conversation.
type SessionState int

const (
	SessionNone SessionState = iota
	// SessionConnecting holds the guild's slot while the live handshake runs.
	SessionConnecting
	SessionActive
	SessionEnded
)

func (s SessionState) String() string {
	switch s {
	case SessionConnecting:
		return "connecting"
	case SessionActive:
		return "active"
	case SessionEnded:
		return "ended"
	default:
		return "none"
	}
}

// AdmissionResult says what StartSession did.
type AdmissionResult int

const (
	AdmissionFailed AdmissionResult = iota
	AdmissionStarted
	AdmissionAlreadyActive
	AdmissionQueued
)

func (r AdmissionResult) String() string {
	switch r {
	case AdmissionStarted:
		return "started"
	case AdmissionAlreadyActive:
		return "already_active"
	case AdmissionQueued:
		return "queued"
	default:
		return "failed"
	}
}

// Admission is the outcome of StartSession. Position is the 1-based place
// in the waiting queue when Result is AdmissionQueued.
type Admission struct {
	Result   AdmissionResult
	Position int
}

// SessionInfo is a snapshot of a guild's current session.
type SessionInfo struct {
	UserID    discord.UserID
	State     SessionState
	StartedAt time.Time
	Speaking  bool
}

// GuildStatus is a snapshot of a guild's voice state.
type GuildStatus struct {
	GuildID   discord.GuildID
	ChannelID discord.ChannelID
	State     ConnectionState
	Session   *SessionInfo
	Waiting   []discord.UserID
	Buffered  time.Duration // audio queued for playback
}

// PTTState is the process-wide push-to-talk state.
type PTTState struct {
	Enabled bool
	GuildID discord.GuildID
	UserID  discord.UserID
	KeyDown bool
}

// HasOwner reports whether an owner has been assigned.
func (p PTTState) HasOwner() bool {
	return p.GuildID.IsValid() && p.UserID.IsValid()
}
