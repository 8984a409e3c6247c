package bot

import (
	"context"
	"errors"
	"sync"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/state"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-kiara/internal/commands"
	"github.com/Raikerian/go-discord-kiara/internal/config"
	"github.com/Raikerian/go-discord-kiara/internal/voice"
)

// ConnectionWatcher is told when Discord drops the bot from a voice channel
// or moves it to another one.
type ConnectionWatcher interface {
	HandleConnectionLost(ctx context.Context, guild discord.GuildID)
	HandleChannelMoved(ctx context.Context, guild discord.GuildID, channel discord.ChannelID)
}

// Bot routes gateway events to commands and the voice manager.
type Bot struct {
	state      *state.State
	cfg        *config.Config
	cmdManager *commands.CommandManager
	voice      ConnectionWatcher
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	selfID discord.UserID
}

// NewBotParameters holds dependencies for NewBot.
type NewBotParameters struct {
	fx.In
	Cfg        *config.Config
	State      *state.State
	CmdManager *commands.CommandManager
	Voice      *voice.Manager
	Logger     *zap.Logger
}

// NewBot creates the bot and subscribes its handlers.
func NewBot(params NewBotParameters) (*Bot, error) {
	if params.State == nil {
		return nil, errors.New("state provided to NewBot is nil")
	}
	if params.CmdManager == nil {
		return nil, errors.New("command manager provided to NewBot is nil")
	}

	b := newBot(params.Logger, params.Cfg, params.CmdManager, params.Voice)
	b.state = params.State

	params.State.AddHandler(func(e *gateway.ReadyEvent) {
		b.setSelf(e.User.ID)
		b.logger.Info("Connected to Discord",
			zap.String("user", e.User.Username),
			zap.Int("guilds", len(e.Guilds)))
	})
	params.State.AddHandler(func(e *gateway.InteractionCreateEvent) {
		b.handleInteraction(b.ctx, params.State, e)
	})
	params.State.AddHandler(func(e *gateway.VoiceStateUpdateEvent) {
		b.handleVoiceState(b.ctx, e)
	})

	return b, nil
}

func newBot(logger *zap.Logger, cfg *config.Config, cm *commands.CommandManager, vw ConnectionWatcher) *Bot {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bot{
		cfg:        cfg,
		cmdManager: cm,
		voice:      vw,
		logger:     logger.Named("bot"),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start registers the slash commands. The gateway session itself is opened
// by the discord module.
func (b *Bot) Start(ctx context.Context) error {
	guildIDs, errs := b.cfg.GuildSnowflakes()
	for _, err := range errs {
		b.logger.Warn("Skipping invalid guild ID", zap.Error(err))
	}
	if len(guildIDs) == 0 {
		b.logger.Warn("No guild IDs configured, registering commands globally")
	}

	if err := b.cmdManager.RegisterCommands(b.state, guildIDs); err != nil {
		return err
	}

	b.logger.Info("Bot started", zap.Strings("commands", b.cmdManager.Names()))
	return nil
}

// Stop cancels the context handed to running commands.
func (b *Bot) Stop(ctx context.Context) error {
	b.cancel()
	b.logger.Info("Bot stopped")
	return nil
}

func (b *Bot) setSelf(id discord.UserID) {
	b.mu.Lock()
	b.selfID = id
	b.mu.Unlock()
}

func (b *Bot) self() discord.UserID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.selfID
}
