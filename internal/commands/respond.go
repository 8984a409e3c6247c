package commands

import (
	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/utils/json/option"
	"github.com/diamondburned/arikawa/v3/utils/sendpart"
)

// kiaraColor is the accent used on every embed.
const kiaraColor discord.Color = 0x9B59B6

func messageFlags(ephemeral bool) discord.MessageFlags {
	if ephemeral {
		return discord.EphemeralMessage
	}
	return 0
}

func respondText(s Responder, e *gateway.InteractionCreateEvent, content string, ephemeral bool) error {
	return s.RespondInteraction(e.ID, e.Token, api.InteractionResponse{
		Type: api.MessageInteractionWithSource,
		Data: &api.InteractionResponseData{
			Content: option.NewNullableString(content),
			Flags:   messageFlags(ephemeral),
		},
	})
}

func respondEmbed(s Responder, e *gateway.InteractionCreateEvent, embed discord.Embed, ephemeral bool) error {
	return s.RespondInteraction(e.ID, e.Token, api.InteractionResponse{
		Type: api.MessageInteractionWithSource,
		Data: &api.InteractionResponseData{
			Embeds: &[]discord.Embed{embed},
			Flags:  messageFlags(ephemeral),
		},
	})
}

// deferResponse acknowledges the interaction so the reply can take longer
// than Discord's three second window.
func deferResponse(s Responder, e *gateway.InteractionCreateEvent, ephemeral bool) error {
	return s.RespondInteraction(e.ID, e.Token, api.InteractionResponse{
		Type: api.DeferredMessageInteractionWithSource,
		Data: &api.InteractionResponseData{
			Flags: messageFlags(ephemeral),
		},
	})
}

func editText(s Responder, e *gateway.InteractionCreateEvent, content string) error {
	_, err := s.EditInteractionResponse(e.AppID, e.Token, api.EditInteractionResponseData{
		Content: option.NewNullableString(content),
	})
	return err
}

func editEmbed(s Responder, e *gateway.InteractionCreateEvent, embed discord.Embed, files ...sendpart.File) error {
	_, err := s.EditInteractionResponse(e.AppID, e.Token, api.EditInteractionResponseData{
		Content: option.NewNullableString(""),
		Embeds:  &[]discord.Embed{embed},
		Files:   files,
	})
	return err
}

// subcommand returns the invoked subcommand and its options.
func subcommand(data *discord.CommandInteraction) (string, discord.CommandInteractionOptions) {
	for _, opt := range data.Options {
		if opt.Type == discord.SubcommandOptionType {
			return opt.Name, opt.Options
		}
	}
	return "", nil
}

// stringOption returns the named option's string value, or "" if absent.
func stringOption(opts discord.CommandInteractionOptions, name string) string {
	opt := opts.Find(name)
	if opt.Name == "" {
		return ""
	}
	return opt.String()
}

func intOption(opts discord.CommandInteractionOptions, name string) (int64, bool) {
	opt := opts.Find(name)
	if opt.Name == "" {
		return 0, false
	}
	v, err := opt.IntValue()
	if err != nil {
		return 0, false
	}
	return v, true
}

func snowflakeOption(opts discord.CommandInteractionOptions, name string) (discord.Snowflake, bool) {
	opt := opts.Find(name)
	if opt.Name == "" {
		return 0, false
	}
	sf, err := opt.SnowflakeValue()
	if err != nil || !sf.IsValid() {
		return 0, false
	}
	return sf, true
}

func stringChoices(values []string, label func(string) string) []discord.StringChoice {
	choices := make([]discord.StringChoice, 0, len(values))
	for _, v := range values {
		name := v
		if label != nil {
			name = label(v)
		}
		choices = append(choices, discord.StringChoice{Name: name, Value: v})
	}
	return choices
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
