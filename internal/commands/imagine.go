package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/utils/json/option"
	"github.com/diamondburned/arikawa/v3/utils/sendpart"
	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-kiara/internal/config"
	"github.com/Raikerian/go-discord-kiara/internal/dispatch"
	"github.com/Raikerian/go-discord-kiara/internal/imagegen"
	"github.com/Raikerian/go-discord-kiara/internal/store"
)

// ImageQueue is the rate-limited queue image requests go through.
type ImageQueue interface {
	Enqueue(owner discord.UserID, cb dispatch.Callback, priority int) *dispatch.Result
	Len() int
}

// ImageGenerator produces one image per request.
type ImageGenerator interface {
	Generate(ctx context.Context, req imagegen.Request) (*imagegen.Image, error)
}

// ImagineCommand generates an image from a prompt with the user's settings
// and reference images.
type ImagineCommand struct {
	logger     *zap.Logger
	clock      clockwork.Clock
	store      *store.Store
	queue      ImageQueue
	images     ImageGenerator
	cooldowns  *Cooldowns
	dailyLimit int
}

// ImagineParams holds dependencies for NewImagineCommand.
type ImagineParams struct {
	fx.In
	Cfg    *config.Config
	Logger *zap.Logger
	Clock  clockwork.Clock
	Store  *store.Store
	Queue  *dispatch.Queue
	Images *imagegen.Service
}

// NewImagineCommand builds the /imagine command from config.images.
func NewImagineCommand(params ImagineParams) (Command, error) {
	cooldowns, err := NewCooldowns(params.Clock, params.Cfg.Images.Cooldown)
	if err != nil {
		return nil, err
	}
	return newImagineCommand(params.Logger, params.Clock, params.Store, params.Queue, params.Images,
		cooldowns, params.Cfg.Images.DailyLimit), nil
}

func newImagineCommand(logger *zap.Logger, clock clockwork.Clock, st *store.Store, queue ImageQueue,
	images ImageGenerator, cooldowns *Cooldowns, dailyLimit int,
) *ImagineCommand {
	return &ImagineCommand{
		logger:     logger.Named("imagine"),
		clock:      clock,
		store:      st,
		queue:      queue,
		images:     images,
		cooldowns:  cooldowns,
		dailyLimit: dailyLimit,
	}
}

func (c *ImagineCommand) Name() string { return "imagine" }

func (c *ImagineCommand) Description() string {
	return "Generate an image with Kiara"
}

func (c *ImagineCommand) Options() []discord.CommandOption {
	return []discord.CommandOption{
		&discord.StringOption{
			OptionName:  "prompt",
			Description: "Describe your image",
			Required:    true,
			MaxLength:   option.NewInt(1500),
		},
		&discord.StringOption{
			OptionName:  "style",
			Description: "Override your style for this image",
			Choices:     stringChoices(styleKeys(), imagegen.StyleLabel),
		},
		&discord.StringOption{
			OptionName:  "aspect_ratio",
			Description: "Override your aspect ratio for this image",
			Choices:     stringChoices(imagegen.AspectRatios, nil),
		},
		&discord.StringOption{
			OptionName:  "quality",
			Description: "Override your quality for this image",
			Choices:     stringChoices(imagegen.Qualities, nil),
		},
	}
}

func styleKeys() []string {
	return slices.Sorted(maps.Keys(imagegen.Styles))
}

func (c *ImagineCommand) Execute(ctx context.Context, s Responder, e *gateway.InteractionCreateEvent, data *discord.CommandInteraction) error {
	user := e.SenderID()
	prompt := strings.TrimSpace(stringOption(data.Options, "prompt"))
	if prompt == "" {
		return respondText(s, e, "Tell me what to draw first!", true)
	}

	if wait, ok := c.cooldowns.Allow(user); !ok {
		return respondText(s, e, fmt.Sprintf("⏳ Slow down! Try again in %s.", wait.Round(time.Second)), true)
	}

	used, err := c.store.DailyUsage(ctx, user)
	if err != nil {
		return err
	}
	if c.dailyLimit > 0 && used >= c.dailyLimit {
		return respondText(s, e, fmt.Sprintf("⏰ Daily limit reached (%d/%d). Resets in %s.",
			used, c.dailyLimit, formatReset(c.clock.Now())), true)
	}

	req, err := c.buildRequest(ctx, user, prompt, data.Options)
	if err != nil {
		return err
	}

	if err := deferResponse(s, e, false); err != nil {
		return err
	}

	res := c.queue.Enqueue(user, func(ctx context.Context) (any, error) {
		return c.images.Generate(ctx, req)
	}, 0)
	if pending := c.queue.Len(); pending > 1 {
		_ = editText(s, e, fmt.Sprintf("🕐 Queued behind %d other request(s)…", pending-1))
	}

	img, err := dispatch.Await[*imagegen.Image](ctx, res)
	if err != nil {
		c.logger.Warn("Image generation failed",
			zap.String("user_id", user.String()),
			zap.String("request_id", res.ID().String()),
			zap.Stringer("kind", imagegen.Classify(err)),
			zap.Error(err))
		return editText(s, e, failureMessage(err))
	}

	count, err := c.store.IncrementUsage(ctx, user)
	if err != nil {
		c.logger.Error("Failed to record usage", zap.String("user_id", user.String()), zap.Error(err))
		count = used + 1
	}

	c.logger.Info("Image generated",
		zap.String("user_id", user.String()),
		zap.String("model", img.Model),
		zap.Int("attempts", img.Attempts),
		zap.Int("daily_count", count))

	name := imageFilename(img.MIMEType)
	embed := c.resultEmbed(prompt, req, img, count, "attachment://"+name)
	file := func() sendpart.File {
		return sendpart.File{Name: name, Reader: bytes.NewReader(img.Data)}
	}

	if studio, ok := c.studioChannel(ctx, e); ok {
		_, err := s.SendMessageComplex(studio, api.SendMessageData{
			Content: user.Mention(),
			Embeds:  []discord.Embed{embed},
			Files:   []sendpart.File{file()},
		})
		if err == nil {
			return editText(s, e, fmt.Sprintf("✨ Done! Your image is in %s.", studio.Mention()))
		}
		c.logger.Warn("Failed to post to studio channel",
			zap.String("channel_id", studio.String()),
			zap.Error(err))
	}

	return editEmbed(s, e, embed, file())
}

func (c *ImagineCommand) buildRequest(ctx context.Context, user discord.UserID, prompt string, opts discord.CommandInteractionOptions) (imagegen.Request, error) {
	settings, err := c.store.Settings(ctx, user)
	if err != nil {
		return imagegen.Request{}, err
	}
	refs, err := c.store.References(ctx, user)
	if err != nil {
		return imagegen.Request{}, err
	}

	req := imagegen.Request{
		Prompt:      prompt,
		Style:       settings.Style,
		AspectRatio: settings.AspectRatio,
		Quality:     settings.Quality,
		Model:       settings.Model,
	}
	if v := stringOption(opts, "style"); v != "" {
		req.Style = v
	}
	if v := stringOption(opts, "aspect_ratio"); v != "" {
		req.AspectRatio = v
	}
	if v := stringOption(opts, "quality"); v != "" {
		req.Quality = v
	}
	for _, r := range refs {
		req.References = append(req.References, imagegen.Reference{Data: r.Data, MIMEType: r.MIMEType})
	}
	return req, nil
}

// studioChannel returns the user's studio in this guild unless the command
// already ran there.
func (c *ImagineCommand) studioChannel(ctx context.Context, e *gateway.InteractionCreateEvent) (discord.ChannelID, bool) {
	if !e.GuildID.IsValid() {
		return 0, false
	}
	ch, ok, err := c.store.UserChannel(ctx, e.SenderID(), e.GuildID)
	if err != nil {
		c.logger.Warn("Failed to look up studio channel", zap.Error(err))
		return 0, false
	}
	if !ok || ch == e.ChannelID {
		return 0, false
	}
	return ch, true
}

func (c *ImagineCommand) resultEmbed(prompt string, req imagegen.Request, img *imagegen.Image, count int, imageURL string) discord.Embed {
	usage := fmt.Sprintf("%d today", count)
	if c.dailyLimit > 0 {
		usage = fmt.Sprintf("%d/%d today · resets in %s", count, c.dailyLimit, formatReset(c.clock.Now()))
	}
	return discord.Embed{
		Title: "✨ Generated",
		Color: kiaraColor,
		Fields: []discord.EmbedField{
			{Name: "Prompt", Value: truncate(prompt, 1024)},
			{Name: "Style", Value: imagegen.StyleLabel(req.Style), Inline: true},
			{Name: "Aspect", Value: req.AspectRatio, Inline: true},
			{Name: "Quality", Value: req.Quality, Inline: true},
			{Name: "References", Value: fmt.Sprintf("%d", len(req.References)), Inline: true},
		},
		Image:  &discord.EmbedImage{URL: discord.URL(imageURL)},
		Footer: &discord.EmbedFooter{Text: img.Model + " · " + usage},
	}
}

func failureMessage(err error) string {
	if errors.Is(err, dispatch.ErrQueueStopped) {
		return "❌ I'm restarting right now. Please try again in a moment."
	}
	switch imagegen.Classify(err) {
	case imagegen.KindSafety:
		return "🚫 That prompt was blocked by the safety filter. Try rephrasing it."
	case imagegen.KindRateLimit:
		return "⏳ The image model is busy right now. Please try again in a minute."
	default:
		return "❌ Generation failed: " + truncate(err.Error(), 200)
	}
}

func imageFilename(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return "kiara.jpg"
	case "image/webp":
		return "kiara.webp"
	default:
		return "kiara.png"
	}
}

// formatReset renders the time left until the next UTC midnight.
func formatReset(now time.Time) string {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	left := midnight.Sub(now)
	hours := int(left.Hours())
	minutes := int(left.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
