package voice

import "github.com/diamondburned/arikawa/v3/discord"

// SinkEvent is emitted by a Sink. The set of implementations is closed:
// SpeakingStarted and AudioChunk.
type SinkEvent interface {
	sinkEvent()
}

// SpeakingStarted fires on a user's first frame and again whenever they
// resume after a silence gap.
type SpeakingStarted struct {
	UserID discord.UserID
}

// AudioChunk carries a frame from a user in the forwarding set.
type AudioChunk struct {
	UserID discord.UserID
	PCM    []byte // 48 kHz stereo
}

func (SpeakingStarted) sinkEvent() {}
func (AudioChunk) sinkEvent()      {}

// LiveEvent is emitted by a LiveSession. The set of implementations is
// closed: AudioResponse, TextResponse, TurnComplete and Interrupted.
type LiveEvent interface {
	liveEvent()
}

// AudioResponse is model speech at the session's output rate.
type AudioResponse struct {
	PCM []byte
}

// TextResponse is text or a transcript fragment of model speech.
type TextResponse struct {
	Text string
}

// TurnComplete marks the end of a model turn.
type TurnComplete struct{}

// Interrupted means the user talked over the model. Queued playback is stale.
type Interrupted struct{}

func (AudioResponse) liveEvent() {}
func (TextResponse) liveEvent()  {}
func (TurnComplete) liveEvent()  {}
func (Interrupted) liveEvent()   {}
