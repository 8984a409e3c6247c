package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DiscordConfig stores Discord specific configurations.
type DiscordConfig struct {
	BotToken      string             `yaml:"bot_token"`
	ApplicationID *discord.Snowflake `yaml:"application_id"`
	GuildIDs      []string           `yaml:"guild_ids"`
}

// GeminiConfig stores Google Gemini credentials.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
}

// OpenAIConfig stores OpenAI credentials and realtime defaults.
type OpenAIConfig struct {
	APIKey        string `yaml:"api_key"`
	RealtimeModel string `yaml:"realtime_model"`
	Voice         string `yaml:"voice"`
	ImageModel    string `yaml:"image_model"`
}

// DispatchConfig tunes the outbound request queue.
type DispatchConfig struct {
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	ErrorPause        time.Duration `yaml:"error_pause"`
}

// ImagesConfig tunes image generation.
type ImagesConfig struct {
	Provider    string        `yaml:"provider"` // "gemini" or "openai"
	Model       string        `yaml:"model"`
	Quality     string        `yaml:"quality"`
	AspectRatio string        `yaml:"aspect_ratio"`
	DailyLimit  int           `yaml:"daily_limit"`
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	Timeout     time.Duration `yaml:"timeout"`
	Cooldown    time.Duration `yaml:"cooldown"` // per user, between /imagine calls
}

// PTTConfig configures push-to-talk gating.
type PTTConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Key          string `yaml:"key"`
	OwnerGuildID string `yaml:"owner_guild_id"`
	OwnerUserID  string `yaml:"owner_user_id"`
}

// VoiceConfig stores voice conversation settings.
type VoiceConfig struct {
	Provider     string `yaml:"provider"` // "gemini" or "openai"
	LiveModel    string `yaml:"live_model"`
	Voice        string `yaml:"voice"`
	SystemPrompt string `yaml:"system_prompt"`
	Greeting     string `yaml:"greeting"`

	JoinAttempts     int           `yaml:"join_attempts"`
	JoinTimeout      time.Duration `yaml:"join_timeout"`
	JoinPollInterval time.Duration `yaml:"join_poll_interval"`
	JoinBackoff      time.Duration `yaml:"join_backoff"`

	EndPhrases         []string      `yaml:"end_phrases"`
	EndGrace           time.Duration `yaml:"end_grace"`
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
	WakeOnSpeech       *bool         `yaml:"wake_on_speech"`
	SilenceGap         time.Duration `yaml:"silence_gap"`

	PlaybackMinBuffer time.Duration `yaml:"playback_min_buffer"`
	PlaybackIdleFlush time.Duration `yaml:"playback_idle_flush"`
	OpusBitrate       int           `yaml:"opus_bitrate"`

	PTT PTTConfig `yaml:"ptt"`
}

// DatabaseConfig points at the SQLite file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ControlConfig configures the local control HTTP server.
type ControlConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Config stores the application configuration.
type Config struct {
	Discord   DiscordConfig  `yaml:"discord"`
	Gemini    GeminiConfig   `yaml:"gemini"`
	OpenAI    OpenAIConfig   `yaml:"openai"`
	Dispatch  DispatchConfig `yaml:"dispatch"`
	Images    ImagesConfig   `yaml:"images"`
	Voice     VoiceConfig    `yaml:"voice"`
	Database  DatabaseConfig `yaml:"database"`
	Control   ControlConfig  `yaml:"control"`
	LogLevel  string         `yaml:"log_level"`
	LogFormat string         `yaml:"log_format"`
}

// Image and voice providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// DefaultEndPhrases close a voice session when the assistant says them.
var DefaultEndPhrases = []string{
	"stop", "end", "bye", "goodbye", "see you",
	"thanks kiara", "thank you kiara", "that's all",
	"nevermind", "never mind", "cancel",
}

const defaultGreeting = "The user just activated you by saying 'Hey Kiara'. Greet them briefly and ask how you can help."

const defaultSystemPrompt = `You are Kiara, a friendly, witty, and helpful AI assistant living in a Discord voice channel.

Your personality:
- Warm and approachable, like talking to a smart friend
- Quick with responses, conversational tone
- You can be playful but always helpful
- You speak naturally, not robotically

Important rules:
- Keep responses SHORT and conversational (1-3 sentences usually)
- Don't say "As an AI" or mention being an assistant
- React naturally to what users say
- If someone says "stop", "end", "bye", "thanks Kiara" - say a quick goodbye

You're hanging out in a Discord server helping people with whatever they need - coding, questions, jokes, advice, or just chatting.`

// LoadConfig loads the configuration from the given file path. Values from a
// .env file or the process environment override secrets in the file.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filePath, err)
	}

	// A missing .env is normal in production.
	_ = godotenv.Load()
	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DISCORD_BOT_TOKEN"); v != "" {
		c.Discord.BotToken = v
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
}

func (c *Config) applyDefaults() {
	setInt(&c.Dispatch.RequestsPerMinute, 10)
	setDuration(&c.Dispatch.PollInterval, time.Second)
	setDuration(&c.Dispatch.ErrorPause, time.Second)

	setString(&c.Images.Provider, ProviderGemini)
	setString(&c.Images.Model, "gemini-3-pro-image-preview")
	setString(&c.Images.Quality, "1K")
	setString(&c.Images.AspectRatio, "1:1")
	setInt(&c.Images.DailyLimit, 15)
	setInt(&c.Images.MaxAttempts, 3)
	setDuration(&c.Images.BaseDelay, 2*time.Second)
	setDuration(&c.Images.Timeout, 5*time.Minute)
	setDuration(&c.Images.Cooldown, 10*time.Second)

	setString(&c.OpenAI.RealtimeModel, "gpt-4o-realtime-preview")
	setString(&c.OpenAI.Voice, "shimmer")
	setString(&c.OpenAI.ImageModel, "dall-e-3")

	v := &c.Voice
	setString(&v.Provider, ProviderGemini)
	setString(&v.LiveModel, "gemini-2.5-flash-preview-native-audio-dialog")
	setString(&v.Voice, "Kore")
	setString(&v.SystemPrompt, defaultSystemPrompt)
	setString(&v.Greeting, defaultGreeting)
	setInt(&v.JoinAttempts, 3)
	setDuration(&v.JoinTimeout, 10*time.Second)
	setDuration(&v.JoinPollInterval, 250*time.Millisecond)
	setDuration(&v.JoinBackoff, time.Second)
	if v.EndPhrases == nil {
		v.EndPhrases = append([]string(nil), DefaultEndPhrases...)
	}
	setDuration(&v.EndGrace, 2*time.Second)
	setDuration(&v.SessionIdleTimeout, 60*time.Second)
	if v.WakeOnSpeech == nil {
		wake := true
		v.WakeOnSpeech = &wake
	}
	setDuration(&v.SilenceGap, time.Second)
	setDuration(&v.PlaybackMinBuffer, time.Second)
	setDuration(&v.PlaybackIdleFlush, 100*time.Millisecond)
	setInt(&v.OpusBitrate, 64000)
	setString(&v.PTT.Key, "num 3")

	setString(&c.Database.Path, "kiara.db")
	setString(&c.Control.Listen, "127.0.0.1:8089")
	setString(&c.LogLevel, "info")
	setString(&c.LogFormat, "json")
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	var errs []error
	if c.Discord.BotToken == "" {
		errs = append(errs, errors.New("discord.bot_token is required"))
	}
	if c.Discord.ApplicationID == nil || *c.Discord.ApplicationID == 0 {
		errs = append(errs, errors.New("discord.application_id is required"))
	}
	if c.Dispatch.RequestsPerMinute < 1 {
		errs = append(errs, fmt.Errorf("dispatch.requests_per_minute must be at least 1, got %d", c.Dispatch.RequestsPerMinute))
	}
	if c.Images.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("images.max_attempts must be at least 1, got %d", c.Images.MaxAttempts))
	}
	if c.Voice.JoinAttempts < 1 {
		errs = append(errs, fmt.Errorf("voice.join_attempts must be at least 1, got %d", c.Voice.JoinAttempts))
	}
	switch strings.ToLower(c.Images.Provider) {
	case ProviderGemini, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("images.provider %q is not supported", c.Images.Provider))
	}
	switch strings.ToLower(c.Voice.Provider) {
	case ProviderGemini, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("voice.provider %q is not supported", c.Voice.Provider))
	}
	if c.Voice.PTT.OwnerGuildID != "" {
		if _, err := discord.ParseSnowflake(c.Voice.PTT.OwnerGuildID); err != nil {
			errs = append(errs, fmt.Errorf("voice.ptt.owner_guild_id: %w", err))
		}
	}
	if c.Voice.PTT.OwnerUserID != "" {
		if _, err := discord.ParseSnowflake(c.Voice.PTT.OwnerUserID); err != nil {
			errs = append(errs, fmt.Errorf("voice.ptt.owner_user_id: %w", err))
		}
	}
	return errors.Join(errs...)
}

// GuildSnowflakes parses discord.guild_ids, skipping entries that do not parse.
func (c *Config) GuildSnowflakes() ([]discord.GuildID, []error) {
	var (
		ids  []discord.GuildID
		errs []error
	)
	for _, raw := range c.Discord.GuildIDs {
		sf, err := discord.ParseSnowflake(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("guild id %q: %w", raw, err))
			continue
		}
		ids = append(ids, discord.GuildID(sf))
	}
	return ids, errs
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}

func setDuration(dst *time.Duration, def time.Duration) {
	if *dst == 0 {
		*dst = def
	}
}
