// Package discord opens the gateway session and provides the cached state.
package discord

import (
	"context"
	"errors"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"github.com/diamondburned/arikawa/v3/state"
	"github.com/diamondburned/arikawa/v3/state/store/defaultstore"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-kiara/internal/config"
)

// Intents Kiara identifies with. Voice states feed the voice manager's
// channel lookups and the bot's own disconnect/move detection; members
// resolve display names for studio channels.
const Intents = gateway.IntentGuilds | gateway.IntentGuildVoiceStates | gateway.IntentGuildMembers

// Module provides the gateway session, its state cache and the app ID.
var Module = fx.Module("discord",
	fx.Provide(
		NewSession,
		NewState,
		ProvideApplicationID,
	),
)

// SessionParams holds dependencies for NewSession.
type SessionParams struct {
	fx.In
	Cfg    *config.Config
	LC     fx.Lifecycle
	Logger *zap.Logger
}

// SessionResult holds results from NewSession.
type SessionResult struct {
	fx.Out
	Session *session.Session
}

// NewSession builds the bot's gateway session. The gateway is opened on
// start and closed on stop, after the voice manager has left every channel.
func NewSession(params SessionParams) (SessionResult, error) {
	if params.Cfg.Discord.BotToken == "" {
		return SessionResult{}, errors.New("discord bot token is not set (discord.bot_token or DISCORD_BOT_TOKEN)")
	}

	logger := params.Logger.Named("gateway")
	s := session.New("Bot " + params.Cfg.Discord.BotToken)
	s.AddIntents(Intents)
	s.AddHandler(func(r *gateway.ReadyEvent) {
		logger.Info("Gateway ready",
			zap.String("user", r.User.Username),
			zap.Stringer("user_id", r.User.ID),
			zap.Int("guilds", len(r.Guilds)))
	})

	params.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Connecting to Discord gateway",
				zap.Int("configured_guilds", len(params.Cfg.Discord.GuildIDs)))
			return s.Open(ctx)
		},
		OnStop: func(context.Context) error {
			logger.Info("Disconnecting from Discord gateway")
			return s.Close()
		},
	})

	return SessionResult{Session: s}, nil
}

// StateParams holds dependencies for NewState.
type StateParams struct {
	fx.In
	Session *session.Session
	Logger  *zap.Logger
}

// StateResult holds results from NewState.
type StateResult struct {
	fx.Out
	State *state.State
}

// NewState wraps the session in a cache. The default store keeps voice
// states, which the voice manager reads to find who sits in which channel.
func NewState(params StateParams) StateResult {
	st := state.NewFromSession(params.Session, defaultstore.New())
	params.Logger.Debug("Created Discord state cache")

	return StateResult{State: st}
}

// ProvideApplicationID reads the application ID used to register Kiara's
// slash commands and to edit interaction responses.
func ProvideApplicationID(cfg *config.Config, logger *zap.Logger) (discord.AppID, error) {
	if cfg.Discord.ApplicationID == nil || !cfg.Discord.ApplicationID.IsValid() {
		return 0, errors.New("discord.application_id is not set or invalid")
	}

	appID := discord.AppID(*cfg.Discord.ApplicationID)
	logger.Debug("Using Discord application", zap.Stringer("app_id", appID))

	return appID, nil
}
