package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-kiara/internal/config"
	"github.com/Raikerian/go-discord-kiara/internal/voice"
)

// VoiceController is the voice manager surface the command drives.
type VoiceController interface {
	JoinChannel(ctx context.Context, guild discord.GuildID, channel discord.ChannelID) error
	LeaveChannel(ctx context.Context, guild discord.GuildID) error
	TriggerWake(ctx context.Context, guild discord.GuildID, user discord.UserID) (voice.Admission, error)
	EndSession(ctx context.Context, guild discord.GuildID, user discord.UserID) bool
	IsConnected(guild discord.GuildID) bool
	Status(guild discord.GuildID) voice.GuildStatus
	PTT() voice.PTTState
	EnablePTT(enabled bool)
	SetPTTOwner(guild discord.GuildID, user discord.UserID)
}

// VoiceCommand controls Kiara in voice channels.
type VoiceCommand struct {
	logger *zap.Logger
	clock  clockwork.Clock
	voice  VoiceController
	states voice.VoiceStates
	pttKey string
}

// VoiceParams holds dependencies for NewVoiceCommand.
type VoiceParams struct {
	fx.In
	Cfg     *config.Config
	Logger  *zap.Logger
	Clock   clockwork.Clock
	Manager *voice.Manager
	States  voice.VoiceStates
}

// NewVoiceCommand creates the /voice command.
func NewVoiceCommand(params VoiceParams) Command {
	return newVoiceCommand(params.Logger, params.Clock, params.Manager, params.States, params.Cfg.Voice.PTT.Key)
}

func newVoiceCommand(logger *zap.Logger, clock clockwork.Clock, vc VoiceController, states voice.VoiceStates, pttKey string) *VoiceCommand {
	return &VoiceCommand{
		logger: logger.Named("voice_command"),
		clock:  clock,
		voice:  vc,
		states: states,
		pttKey: pttKey,
	}
}

func (c *VoiceCommand) Name() string { return "voice" }

func (c *VoiceCommand) Description() string {
	return "Talk to Kiara in voice chat"
}

func (c *VoiceCommand) Options() []discord.CommandOption {
	return []discord.CommandOption{
		&discord.SubcommandOption{OptionName: "join", Description: "Kiara joins your voice channel"},
		&discord.SubcommandOption{OptionName: "leave", Description: "Kiara leaves the voice channel"},
		&discord.SubcommandOption{OptionName: "talk", Description: "Start talking to Kiara (skip the wake word)"},
		&discord.SubcommandOption{OptionName: "end", Description: "End your conversation with Kiara"},
		&discord.SubcommandOption{OptionName: "status", Description: "Check voice status"},
		&discord.SubcommandOption{
			OptionName:  "ptt",
			Description: "Show or switch push-to-talk mode",
			Options: []discord.CommandOptionValue{
				&discord.BooleanOption{OptionName: "enabled", Description: "Turn push-to-talk on or off"},
			},
		},
	}
}

func (c *VoiceCommand) Execute(ctx context.Context, s Responder, e *gateway.InteractionCreateEvent, data *discord.CommandInteraction) error {
	if !e.GuildID.IsValid() {
		return respondText(s, e, "This only works in a server!", true)
	}

	name, opts := subcommand(data)
	switch name {
	case "join":
		return c.join(ctx, s, e)
	case "leave":
		return c.leave(ctx, s, e)
	case "talk":
		return c.talk(ctx, s, e)
	case "end":
		return c.end(ctx, s, e)
	case "status":
		return c.status(s, e)
	case "ptt":
		return c.ptt(s, e, opts)
	default:
		return respondText(s, e, "Unknown subcommand.", true)
	}
}

// claimPTT makes the caller the push-to-talk owner while PTT is on.
func (c *VoiceCommand) claimPTT(guild discord.GuildID, user discord.UserID) {
	if c.voice.PTT().Enabled {
		c.voice.SetPTTOwner(guild, user)
	}
}

func (c *VoiceCommand) join(ctx context.Context, s Responder, e *gateway.InteractionCreateEvent) error {
	user := e.SenderID()
	channel, ok := c.states.UserVoiceChannel(e.GuildID, user)
	if !ok {
		return respondText(s, e, "You need to be in a voice channel first!", true)
	}

	if err := deferResponse(s, e, false); err != nil {
		return err
	}

	c.claimPTT(e.GuildID, user)
	if err := c.voice.JoinChannel(ctx, e.GuildID, channel); err != nil {
		c.logger.Warn("Voice join failed",
			zap.String("guild_id", e.GuildID.String()),
			zap.String("channel_id", channel.String()),
			zap.Error(err))
		return editText(s, e, joinFailureMessage(err))
	}

	desc := fmt.Sprintf("I'm now in %s!\n\n"+
		"**How to talk to me:**\n"+
		"• Say **\"Hey Kiara\"** to start a conversation\n"+
		"• Speak naturally, I'll respond in real time\n"+
		"• Say **\"stop\"** or **\"bye\"** when done\n\n"+
		"*Or use `/voice talk` to start immediately*", channel.Mention())
	embed := discord.Embed{Title: "🎤 Kiara joined voice!", Description: desc, Color: kiaraColor}
	if c.voice.PTT().Enabled {
		embed.Fields = append(embed.Fields, discord.EmbedField{
			Name:  "Push-to-talk",
			Value: fmt.Sprintf("Hold `%s` to speak, release to stop sending audio.", c.pttKey),
		})
	}
	return editEmbed(s, e, embed)
}

func (c *VoiceCommand) leave(ctx context.Context, s Responder, e *gateway.InteractionCreateEvent) error {
	if err := c.voice.LeaveChannel(ctx, e.GuildID); err != nil {
		if errors.Is(err, voice.ErrNotConnected) {
			return respondText(s, e, "I'm not in a voice channel!", true)
		}
		return err
	}
	return respondText(s, e, "👋 Left the voice channel. Talk to you later!", true)
}

func (c *VoiceCommand) talk(ctx context.Context, s Responder, e *gateway.InteractionCreateEvent) error {
	user := e.SenderID()
	channel, inVoice := c.states.UserVoiceChannel(e.GuildID, user)
	if !inVoice {
		if c.voice.IsConnected(e.GuildID) {
			return respondText(s, e, "You need to be in the voice channel!", true)
		}
		return respondText(s, e, "Join a voice channel first, or use `/voice join`!", true)
	}
	if st := c.voice.Status(e.GuildID); st.State == voice.Connected && st.ChannelID != channel {
		return respondText(s, e, fmt.Sprintf("I'm in %s. Come join me there!", st.ChannelID.Mention()), true)
	}

	if err := deferResponse(s, e, false); err != nil {
		return err
	}

	c.claimPTT(e.GuildID, user)
	adm, err := c.voice.TriggerWake(ctx, e.GuildID, user)
	if err != nil {
		c.logger.Warn("Failed to start voice session",
			zap.String("guild_id", e.GuildID.String()),
			zap.String("user_id", user.String()),
			zap.Error(err))
		switch {
		case errors.Is(err, voice.ErrJoinFailed), errors.Is(err, voice.ErrConnectionNotReady), errors.Is(err, voice.ErrJoinInProgress):
			return editText(s, e, joinFailureMessage(err))
		case errors.Is(err, voice.ErrUserNotInVoice):
			return editText(s, e, "Join a voice channel first, or use `/voice join`!")
		default:
			return editText(s, e, "Failed to start the conversation. Try again!")
		}
	}

	switch adm.Result {
	case voice.AdmissionStarted, voice.AdmissionAlreadyActive:
		return editEmbed(s, e, discord.Embed{
			Title: "🎤 Kiara is listening!",
			Description: fmt.Sprintf("Go ahead %s, I'm all ears!\n\n"+
				"• Speak naturally\n"+
				"• Say **\"stop\"** or **\"bye\"** when done", user.Mention()),
			Color: 0x00FF00,
		})
	case voice.AdmissionQueued:
		msg := fmt.Sprintf("Please wait, I'm talking to someone else. You're #%d in the queue!", adm.Position)
		if st := c.voice.Status(e.GuildID); st.Session != nil {
			msg = fmt.Sprintf("Please wait, I'm currently talking to %s. You're #%d in the queue!",
				st.Session.UserID.Mention(), adm.Position)
		}
		return editText(s, e, msg)
	default:
		return editText(s, e, "Failed to start the conversation. Try again!")
	}
}

func (c *VoiceCommand) end(ctx context.Context, s Responder, e *gateway.InteractionCreateEvent) error {
	if !c.voice.EndSession(ctx, e.GuildID, e.SenderID()) {
		return respondText(s, e, "You don't have a conversation with me right now.", true)
	}
	return respondText(s, e, "✅ Conversation ended!", true)
}

func (c *VoiceCommand) status(s Responder, e *gateway.InteractionCreateEvent) error {
	st := c.voice.Status(e.GuildID)

	connection := "🔴 Not in voice"
	switch st.State {
	case voice.Connected:
		connection = "🟢 Connected to " + st.ChannelID.Mention()
	case voice.Connecting:
		connection = "🟡 Connecting to " + st.ChannelID.Mention()
	}

	session := "None. Say \"Hey Kiara\" to start!"
	if st.Session != nil {
		session = fmt.Sprintf("Talking to %s for %s", st.Session.UserID.Mention(),
			c.clock.Since(st.Session.StartedAt).Round(time.Second))
		if st.Session.State == voice.SessionConnecting {
			session = "Connecting for " + st.Session.UserID.Mention()
		}
	}

	fields := []discord.EmbedField{
		{Name: "Connection", Value: connection, Inline: true},
		{Name: "Active session", Value: session, Inline: true},
	}
	if len(st.Waiting) > 0 {
		mentions := make([]string, len(st.Waiting))
		for i, u := range st.Waiting {
			mentions[i] = fmt.Sprintf("%d. %s", i+1, u.Mention())
		}
		fields = append(fields, discord.EmbedField{Name: "Queue", Value: strings.Join(mentions, "\n")})
	}
	if ptt := c.voice.PTT(); ptt.Enabled {
		owner := "nobody"
		if ptt.HasOwner() {
			owner = ptt.UserID.Mention()
		}
		fields = append(fields, discord.EmbedField{
			Name:  "Push-to-talk",
			Value: fmt.Sprintf("On (`%s`, owner %s)", c.pttKey, owner),
		})
	}

	return respondEmbed(s, e, discord.Embed{
		Title:  "🎤 Voice status",
		Color:  kiaraColor,
		Fields: fields,
		Footer: &discord.EmbedFooter{Text: "Use /voice join to bring Kiara to your channel"},
	}, false)
}

func (c *VoiceCommand) ptt(s Responder, e *gateway.InteractionCreateEvent, opts discord.CommandInteractionOptions) error {
	if opt := opts.Find("enabled"); opt.Name != "" {
		enabled, err := opt.BoolValue()
		if err != nil {
			return err
		}
		c.voice.EnablePTT(enabled)
		if enabled {
			c.voice.SetPTTOwner(e.GuildID, e.SenderID())
		}
	}

	ptt := c.voice.PTT()
	if !ptt.Enabled {
		return respondText(s, e, "Push-to-talk is **off**. I listen for \"Hey Kiara\".", true)
	}
	owner := "nobody yet"
	if ptt.HasOwner() {
		owner = ptt.UserID.Mention()
	}
	return respondText(s, e, fmt.Sprintf("Push-to-talk is **on**. Hold `%s` to speak. Owner: %s.", c.pttKey, owner), true)
}

func joinFailureMessage(err error) string {
	if errors.Is(err, voice.ErrJoinInProgress) {
		return "I'm already joining a channel here, give me a second."
	}
	return "Failed to join the voice channel. Check my Connect and Speak permissions!"
}
