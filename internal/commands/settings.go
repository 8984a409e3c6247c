package commands

import (
	"context"
	"fmt"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-kiara/internal/config"
	"github.com/Raikerian/go-discord-kiara/internal/imagegen"
	"github.com/Raikerian/go-discord-kiara/internal/store"
)

// SettingsCommand shows or updates the user's image defaults.
type SettingsCommand struct {
	logger     *zap.Logger
	clock      clockwork.Clock
	store      *store.Store
	dailyLimit int
}

// SettingsParams holds dependencies for NewSettingsCommand.
type SettingsParams struct {
	fx.In
	Cfg    *config.Config
	Logger *zap.Logger
	Clock  clockwork.Clock
	Store  *store.Store
}

// NewSettingsCommand creates the /settings command.
func NewSettingsCommand(params SettingsParams) Command {
	return &SettingsCommand{
		logger:     params.Logger.Named("settings"),
		clock:      params.Clock,
		store:      params.Store,
		dailyLimit: params.Cfg.Images.DailyLimit,
	}
}

func (c *SettingsCommand) Name() string { return "settings" }

func (c *SettingsCommand) Description() string {
	return "Show or change your image settings"
}

func (c *SettingsCommand) Options() []discord.CommandOption {
	return []discord.CommandOption{
		&discord.StringOption{
			OptionName:  "model",
			Description: "Image model",
			Choices:     stringChoices(imagegen.Models, nil),
		},
		&discord.StringOption{
			OptionName:  "quality",
			Description: "Image size",
			Choices:     stringChoices(imagegen.Qualities, nil),
		},
		&discord.StringOption{
			OptionName:  "aspect_ratio",
			Description: "Aspect ratio",
			Choices:     stringChoices(imagegen.AspectRatios, nil),
		},
		&discord.StringOption{
			OptionName:  "style",
			Description: "Style applied to every prompt",
			Choices:     stringChoices(styleKeys(), imagegen.StyleLabel),
		},
	}
}

func (c *SettingsCommand) Execute(ctx context.Context, s Responder, e *gateway.InteractionCreateEvent, data *discord.CommandInteraction) error {
	user := e.SenderID()
	settings, err := c.store.Settings(ctx, user)
	if err != nil {
		return err
	}

	changed := false
	apply := func(name string, dst *string) {
		if v := stringOption(data.Options, name); v != "" && v != *dst {
			*dst = v
			changed = true
		}
	}
	apply("model", &settings.Model)
	apply("quality", &settings.Quality)
	apply("aspect_ratio", &settings.AspectRatio)
	apply("style", &settings.Style)

	title := "⚙️ Your settings"
	if changed {
		if err := c.store.SaveSettings(ctx, settings); err != nil {
			return err
		}
		c.logger.Info("Settings updated",
			zap.String("user_id", user.String()),
			zap.String("model", settings.Model),
			zap.String("quality", settings.Quality),
			zap.String("aspect_ratio", settings.AspectRatio),
			zap.String("style", settings.Style))
		title = "✅ Settings saved"
	}

	used, err := c.store.DailyUsage(ctx, user)
	if err != nil {
		return err
	}
	total, err := c.store.TotalGenerations(ctx, user)
	if err != nil {
		return err
	}
	refs, err := c.store.References(ctx, user)
	if err != nil {
		return err
	}

	today := fmt.Sprintf("%d", used)
	if c.dailyLimit > 0 {
		today = fmt.Sprintf("%d/%d · resets in %s", used, c.dailyLimit, formatReset(c.clock.Now()))
	}

	return respondEmbed(s, e, discord.Embed{
		Title: title,
		Color: kiaraColor,
		Fields: []discord.EmbedField{
			{Name: "Model", Value: settings.Model, Inline: true},
			{Name: "Quality", Value: settings.Quality, Inline: true},
			{Name: "Aspect", Value: settings.AspectRatio, Inline: true},
			{Name: "Style", Value: imagegen.StyleLabel(settings.Style), Inline: true},
			{Name: "References", Value: fmt.Sprintf("%d/%d", len(refs), store.MaxReferences), Inline: true},
			{Name: "Today", Value: today, Inline: true},
			{Name: "All time", Value: fmt.Sprintf("%d images", total), Inline: true},
		},
	}, true)
}
