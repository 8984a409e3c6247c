package voice

import (
	"context"
	"fmt"
	"strings"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/state"
	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-kiara/internal/config"
)

// Module provides the voice manager and its Discord transport. A live
// dialer must be provided by a provider module under the name of the
// configured provider.
var Module = fx.Module("voice",
	fx.Provide(
		fx.Annotate(NewDiscordDialerFromConfig, fx.As(new(Dialer))),
		fx.Annotate(NewStateVoiceStates, fx.As(new(VoiceStates))),
		SelectLiveDialer,
		NewManagerFromConfig,
	),
)

// NewDiscordDialerFromConfig builds the arikawa transport.
func NewDiscordDialerFromConfig(cfg *config.Config, logger *zap.Logger, st *state.State) *DiscordDialer {
	return NewDiscordDialer(logger, st, cfg.Voice.OpusBitrate)
}

// LiveDialerParams holds the live dialers contributed by provider modules.
type LiveDialerParams struct {
	fx.In
	Cfg    *config.Config
	Gemini LiveDialer `name:"gemini" optional:"true"`
	OpenAI LiveDialer `name:"openai" optional:"true"`
}

// SelectLiveDialer picks the live dialer for config.voice.provider.
func SelectLiveDialer(params LiveDialerParams) (LiveDialer, error) {
	var d LiveDialer
	provider := strings.ToLower(params.Cfg.Voice.Provider)
	switch provider {
	case config.ProviderGemini:
		d = params.Gemini
	case config.ProviderOpenAI:
		d = params.OpenAI
	}
	if d == nil {
		return nil, fmt.Errorf("no live dialer registered for voice provider %q", provider)
	}
	return d, nil
}

// ManagerParams holds dependencies for NewManagerFromConfig.
type ManagerParams struct {
	fx.In
	Cfg    *config.Config
	Logger *zap.Logger
	Clock  clockwork.Clock
	LC     fx.Lifecycle
	Dialer Dialer
	Live   LiveDialer
	States VoiceStates
}

// NewManagerFromConfig builds the Manager and ties it to the app lifecycle.
func NewManagerFromConfig(params ManagerParams) (*Manager, error) {
	v := params.Cfg.Voice

	opts := Options{
		Retry: RetryOptions{
			Attempts:     v.JoinAttempts,
			Timeout:      v.JoinTimeout,
			PollInterval: v.JoinPollInterval,
			Backoff:      v.JoinBackoff,
		},
		Greeting:          v.Greeting,
		EndPhrases:        v.EndPhrases,
		EndGrace:          v.EndGrace,
		IdleTimeout:       v.SessionIdleTimeout,
		WakeOnSpeech:      v.WakeOnSpeech == nil || *v.WakeOnSpeech,
		SilenceGap:        v.SilenceGap,
		PlaybackMinBuffer: v.PlaybackMinBuffer,
		PlaybackIdleFlush: v.PlaybackIdleFlush,
		PTT:               PTTState{Enabled: v.PTT.Enabled},
	}
	if v.PTT.OwnerGuildID != "" {
		sf, err := discord.ParseSnowflake(v.PTT.OwnerGuildID)
		if err != nil {
			return nil, fmt.Errorf("voice.ptt.owner_guild_id: %w", err)
		}
		opts.PTT.GuildID = discord.GuildID(sf)
	}
	if v.PTT.OwnerUserID != "" {
		sf, err := discord.ParseSnowflake(v.PTT.OwnerUserID)
		if err != nil {
			return nil, fmt.Errorf("voice.ptt.owner_user_id: %w", err)
		}
		opts.PTT.UserID = discord.UserID(sf)
	}

	m := NewManager(params.Logger, opts, params.Dialer, params.Live, params.States, params.Clock)

	params.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			m.Start()
			return nil
		},
		OnStop: m.Shutdown,
	})

	return m, nil
}
