package commands

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-kiara/internal/store"
)

const studioCategory = "Studios"

var channelNameJunk = regexp.MustCompile(`[^a-z0-9-]+`)

// StudioCommand manages the per-guild channel where /imagine posts results.
type StudioCommand struct {
	logger *zap.Logger
	store  *store.Store
}

// NewStudioCommand creates the /studio command.
func NewStudioCommand(logger *zap.Logger, st *store.Store) Command {
	return &StudioCommand{logger: logger.Named("studio"), store: st}
}

func (c *StudioCommand) Name() string { return "studio" }

func (c *StudioCommand) Description() string {
	return "Your private image studio channel"
}

func (c *StudioCommand) Options() []discord.CommandOption {
	return []discord.CommandOption{
		&discord.SubcommandOption{
			OptionName:  "create",
			Description: "Create a private studio channel only you can see",
		},
		&discord.SubcommandOption{
			OptionName:  "set",
			Description: "Use an existing channel as your studio",
			Options: []discord.CommandOptionValue{
				&discord.ChannelOption{
					OptionName:   "channel",
					Description:  "Defaults to this channel",
					ChannelTypes: []discord.ChannelType{discord.GuildText},
				},
			},
		},
		&discord.SubcommandOption{
			OptionName:  "show",
			Description: "Link to your studio",
		},
	}
}

func (c *StudioCommand) Execute(ctx context.Context, s Responder, e *gateway.InteractionCreateEvent, data *discord.CommandInteraction) error {
	if !e.GuildID.IsValid() {
		return respondText(s, e, "This only works in a server!", true)
	}

	name, opts := subcommand(data)
	switch name {
	case "create":
		return c.create(ctx, s, e)
	case "set":
		channel := e.ChannelID
		if sf, ok := snowflakeOption(opts, "channel"); ok {
			channel = discord.ChannelID(sf)
		}
		if err := c.store.SaveUserChannel(ctx, e.SenderID(), e.GuildID, channel); err != nil {
			return err
		}
		return respondText(s, e, fmt.Sprintf("🎨 Your images will be posted in %s.", channel.Mention()), true)
	case "show":
		channel, ok, err := c.store.UserChannel(ctx, e.SenderID(), e.GuildID)
		if err != nil {
			return err
		}
		if !ok {
			return respondText(s, e, "You don't have a studio yet! Use `/studio create`.", true)
		}
		return respondText(s, e, fmt.Sprintf("Your studio: %s", channel.Mention()), true)
	default:
		return respondText(s, e, "Unknown subcommand.", true)
	}
}

func (c *StudioCommand) create(ctx context.Context, s Responder, e *gateway.InteractionCreateEvent) error {
	user := e.Sender()
	if user == nil {
		return respondText(s, e, "I couldn't tell who you are.", true)
	}

	if existing, ok, err := c.store.UserChannel(ctx, user.ID, e.GuildID); err != nil {
		return err
	} else if ok {
		return respondText(s, e, fmt.Sprintf("You already have a studio! Go to %s", existing.Mention()), true)
	}

	if err := deferResponse(s, e, true); err != nil {
		return err
	}

	channel, err := c.createChannel(s, e.GuildID, user)
	if err != nil {
		c.logger.Warn("Failed to create studio channel",
			zap.String("guild_id", e.GuildID.String()),
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		return editText(s, e, "❌ I couldn't create your studio. Ask an admin to check my Manage Channels permission.")
	}

	if err := c.store.SaveUserChannel(ctx, user.ID, e.GuildID, channel.ID); err != nil {
		return err
	}

	_, err = s.SendMessageComplex(channel.ID, api.SendMessageData{
		Content: fmt.Sprintf("# 🎨 Welcome, %s!\nThis is your **private studio**. Use `/imagine` anywhere and your images land here.",
			user.ID.Mention()),
	})
	if err != nil {
		c.logger.Debug("Failed to post studio welcome", zap.Error(err))
	}

	c.logger.Info("Studio created",
		zap.String("guild_id", e.GuildID.String()),
		zap.String("user_id", user.ID.String()),
		zap.String("channel_id", channel.ID.String()))
	return editText(s, e, fmt.Sprintf("✅ Your private studio has been created! Go to %s", channel.ID.Mention()))
}

func (c *StudioCommand) createChannel(s Responder, guild discord.GuildID, user *discord.User) (*discord.Channel, error) {
	me, err := s.Me()
	if err != nil {
		return nil, fmt.Errorf("failed to get bot user: %w", err)
	}

	const userAllow = discord.PermissionViewChannel | discord.PermissionSendMessages |
		discord.PermissionAttachFiles | discord.PermissionEmbedLinks | discord.PermissionReadMessageHistory
	hidden := discord.Overwrite{
		// @everyone shares the guild's ID.
		ID:   discord.Snowflake(guild),
		Type: discord.OverwriteRole,
		Deny: discord.PermissionViewChannel,
	}

	category, err := c.findOrCreateCategory(s, guild, hidden)
	if err != nil {
		return nil, err
	}

	return s.CreateChannel(guild, api.CreateChannelData{
		Name:       studioChannelName(user.Username),
		Type:       discord.GuildText,
		Topic:      "Private studio for " + user.Username,
		CategoryID: category,
		Overwrites: []discord.Overwrite{
			hidden,
			{ID: discord.Snowflake(user.ID), Type: discord.OverwriteMember, Allow: userAllow},
			{ID: discord.Snowflake(me.ID), Type: discord.OverwriteMember, Allow: userAllow | discord.PermissionManageMessages},
		},
	})
}

func (c *StudioCommand) findOrCreateCategory(s Responder, guild discord.GuildID, hidden discord.Overwrite) (discord.ChannelID, error) {
	channels, err := s.Channels(guild)
	if err != nil {
		return 0, fmt.Errorf("failed to list channels: %w", err)
	}
	for _, ch := range channels {
		if ch.Type == discord.GuildCategory && strings.EqualFold(ch.Name, studioCategory) {
			return ch.ID, nil
		}
	}

	cat, err := s.CreateChannel(guild, api.CreateChannelData{
		Name:       studioCategory,
		Type:       discord.GuildCategory,
		Overwrites: []discord.Overwrite{hidden},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create category: %w", err)
	}
	return cat.ID, nil
}

func studioChannelName(username string) string {
	name := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(username), " ", "-"))
	name = strings.Trim(channelNameJunk.ReplaceAllString(name, ""), "-")
	if name == "" {
		name = "user"
	}
	return "studio-" + name
}
