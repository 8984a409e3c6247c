package audio

import (
	"errors"
	"fmt"
	"sync"

	"layeh.com/gopus"
)

// Encoder turns 20 ms frames of 48 kHz stereo PCM into Discord-ready Opus packets.
type Encoder struct {
	mu  sync.Mutex
	enc *gopus.Encoder
}

// NewEncoder creates a VoIP-tuned Opus encoder at the given bitrate.
func NewEncoder(bitrate int) (*Encoder, error) {
	enc, err := gopus.NewEncoder(DiscordSampleRate, DiscordChannels, gopus.Voip)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}
	if bitrate > 0 {
		enc.SetBitrate(bitrate)
	}
	return &Encoder{enc: enc}, nil
}

// Encode encodes exactly one frame. Short frames are zero padded.
func (e *Encoder) Encode(pcm []byte) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, errors.New("pcm empty")
	}
	if len(pcm) > DiscordFrameBytes {
		return nil, fmt.Errorf("frame too long: %d bytes, max %d", len(pcm), DiscordFrameBytes)
	}
	if len(pcm) < DiscordFrameBytes {
		padded := make([]byte, DiscordFrameBytes)
		copy(padded, pcm)
		pcm = padded
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc.Encode(LEToPCMInt16(pcm), DiscordFrameSize, MaxOpusPacketBytes)
}

// Decoder decodes one speaker's Opus stream. Opus decoders carry state,
// so callers keep one Decoder per SSRC.
type Decoder struct {
	dec *gopus.Decoder
}

// NewDecoder creates a 48 kHz stereo decoder.
func NewDecoder() (*Decoder, error) {
	dec, err := gopus.NewDecoder(DiscordSampleRate, DiscordChannels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}
	return &Decoder{dec: dec}, nil
}

// Decode returns 48 kHz stereo little-endian PCM.
func (d *Decoder) Decode(opus []byte) ([]byte, error) {
	if len(opus) == 0 {
		return nil, errors.New("opus payload empty")
	}
	samples, err := d.dec.Decode(opus, DiscordFrameSize, false)
	if err != nil {
		return nil, fmt.Errorf("opus decode: %w", err)
	}
	return PCMInt16ToLE(samples), nil
}
