package audio

// Format constants shared by the transport, the sink and the live bridges.
const (
	// Discord voice: 48 kHz interleaved stereo, 20 ms Opus frames.
	DiscordSampleRate = 48_000 // Hz
	DiscordChannels   = 2
	DiscordFrameSize  = 960                                    // samples per channel (20 ms)
	DiscordFrameBytes = DiscordFrameSize * DiscordChannels * 2 // 16-bit PCM

	// Live endpoints take and return mono 16-bit PCM.
	GeminiInputRate   = 16_000 // Hz
	RealtimeInputRate = 24_000 // Hz
	LiveOutputRate    = 24_000 // Hz, both providers

	MaxOpusPacketBytes = 4000
)
