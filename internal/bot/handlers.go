package bot

import (
	"context"
	"fmt"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/utils/json/option"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-kiara/internal/commands"
)

const commandFailedMessage = "❌ Something went wrong. Please try again."

func (b *Bot) handleInteraction(ctx context.Context, s commands.Responder, e *gateway.InteractionCreateEvent) {
	data, ok := e.Data.(*discord.CommandInteraction)
	if !ok {
		b.logger.Debug("Received unhandled interaction type", zap.String("type", fmt.Sprintf("%T", e.Data)))
		return
	}

	user := e.SenderID()
	logger := b.logger.With(
		zap.String("command", data.Name),
		zap.String("user_id", user.String()),
		zap.String("guild_id", e.GuildID.String()))
	logger.Info("Received slash command")

	cmd, ok := b.cmdManager.GetCommand(data.Name)
	if !ok {
		logger.Warn("Unknown command")
		commandsTotal.WithLabelValues(data.Name, "unknown").Inc()
		b.reply(s, e, "Command not found.", logger)
		return
	}

	if err := cmd.Execute(ctx, s, e, data); err != nil {
		logger.Error("Error executing command", zap.Error(err))
		commandsTotal.WithLabelValues(data.Name, "error").Inc()
		b.reply(s, e, commandFailedMessage, logger)
		return
	}

	commandsTotal.WithLabelValues(data.Name, "ok").Inc()
	logger.Debug("Command executed successfully")
}

// reply answers the interaction, editing the deferred response when the
// command already acknowledged it.
func (b *Bot) reply(s commands.Responder, e *gateway.InteractionCreateEvent, content string, logger *zap.Logger) {
	err := s.RespondInteraction(e.ID, e.Token, api.InteractionResponse{
		Type: api.MessageInteractionWithSource,
		Data: &api.InteractionResponseData{
			Content: option.NewNullableString(content),
			Flags:   discord.EphemeralMessage,
		},
	})
	if err == nil {
		return
	}

	_, editErr := s.EditInteractionResponse(e.AppID, e.Token, api.EditInteractionResponseData{
		Content: option.NewNullableString(content),
	})
	if editErr != nil {
		logger.Error("Failed to report command failure", zap.Error(err), zap.NamedError("edit_error", editErr))
	}
}

// handleVoiceState notices when the bot itself is dropped from voice or
// dragged to another channel.
func (b *Bot) handleVoiceState(ctx context.Context, e *gateway.VoiceStateUpdateEvent) {
	self := b.self()
	if b.voice == nil || !self.IsValid() || e.UserID != self {
		return
	}
	if e.ChannelID.IsValid() {
		b.voice.HandleChannelMoved(ctx, e.GuildID, e.ChannelID)
		return
	}

	b.logger.Debug("Bot voice state cleared", zap.String("guild_id", e.GuildID.String()))
	b.voice.HandleConnectionLost(ctx, e.GuildID)
}
