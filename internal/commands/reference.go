package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/utils/json/option"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-kiara/internal/store"
)

// ReferenceCommand manages the user's reference image slots.
type ReferenceCommand struct {
	logger  *zap.Logger
	store   *store.Store
	fetcher ImageFetcher
}

// NewReferenceCommand creates the /reference command.
func NewReferenceCommand(logger *zap.Logger, st *store.Store, fetcher ImageFetcher) Command {
	return &ReferenceCommand{
		logger:  logger.Named("reference"),
		store:   st,
		fetcher: fetcher,
	}
}

func (c *ReferenceCommand) Name() string { return "reference" }

func (c *ReferenceCommand) Description() string {
	return "Manage reference images used for face and style transfer"
}

func (c *ReferenceCommand) Options() []discord.CommandOption {
	slot := func(required bool) *discord.IntegerOption {
		return &discord.IntegerOption{
			OptionName:  "slot",
			Description: fmt.Sprintf("Slot 1-%d", store.MaxReferences),
			Required:    required,
			Min:         option.NewInt(1),
			Max:         option.NewInt(store.MaxReferences),
		}
	}
	return []discord.CommandOption{
		&discord.SubcommandOption{
			OptionName:  "add",
			Description: "Upload a reference image",
			Options: []discord.CommandOptionValue{
				&discord.AttachmentOption{OptionName: "image", Description: "The image", Required: true},
				slot(false),
			},
		},
		&discord.SubcommandOption{
			OptionName:  "list",
			Description: "Show your reference images",
		},
		&discord.SubcommandOption{
			OptionName:  "delete",
			Description: "Remove one reference image",
			Options:     []discord.CommandOptionValue{slot(true)},
		},
		&discord.SubcommandOption{
			OptionName:  "clear",
			Description: "Remove every reference image",
		},
	}
}

func (c *ReferenceCommand) Execute(ctx context.Context, s Responder, e *gateway.InteractionCreateEvent, data *discord.CommandInteraction) error {
	name, opts := subcommand(data)
	switch name {
	case "add":
		return c.add(ctx, s, e, data, opts)
	case "list":
		return c.list(ctx, s, e)
	case "delete":
		return c.remove(ctx, s, e, opts)
	case "clear":
		return c.clear(ctx, s, e)
	default:
		return respondText(s, e, "Unknown subcommand.", true)
	}
}

func (c *ReferenceCommand) add(ctx context.Context, s Responder, e *gateway.InteractionCreateEvent, data *discord.CommandInteraction, opts discord.CommandInteractionOptions) error {
	user := e.SenderID()

	id, ok := snowflakeOption(opts, "image")
	if !ok {
		return respondText(s, e, "Attach an image to add.", true)
	}
	att, ok := data.Resolved.Attachments[discord.AttachmentID(id)]
	if !ok {
		return respondText(s, e, "I couldn't find that attachment.", true)
	}
	if att.ContentType != "" && imageMIME(att.ContentType) == "" {
		return respondText(s, e, "That file isn't an image.", true)
	}

	// The download can outlast the three second reply window.
	if err := deferResponse(s, e, true); err != nil {
		return err
	}

	img, mimeType, err := c.fetcher.Fetch(ctx, string(att.URL))
	if err != nil {
		c.logger.Warn("Failed to fetch reference image",
			zap.String("user_id", user.String()),
			zap.String("filename", att.Filename),
			zap.Error(err))
		if errors.Is(err, errNotImage) {
			return editText(s, e, "That file isn't an image.")
		}
		return editText(s, e, "❌ I couldn't download that image. Try again.")
	}

	var slot int
	if v, ok := intOption(opts, "slot"); ok {
		slot = int(v)
		err = c.store.SaveReference(ctx, user, slot, img, mimeType, att.Filename)
	} else {
		slot, err = c.store.AddReference(ctx, user, img, mimeType, att.Filename)
	}
	switch {
	case errors.Is(err, store.ErrReferencesFull):
		return editText(s, e, fmt.Sprintf("All %d slots are in use. Pick a slot to replace or delete one first.", store.MaxReferences))
	case errors.Is(err, store.ErrInvalidSlot):
		return editText(s, e, fmt.Sprintf("Slot must be between 1 and %d.", store.MaxReferences))
	case err != nil:
		return err
	}

	c.logger.Info("Reference image saved",
		zap.String("user_id", user.String()),
		zap.Int("slot", slot),
		zap.Int("bytes", len(img)))
	return editText(s, e, fmt.Sprintf("📷 Saved **%s** to slot %d.", att.Filename, slot))
}

func (c *ReferenceCommand) list(ctx context.Context, s Responder, e *gateway.InteractionCreateEvent) error {
	refs, err := c.store.References(ctx, e.SenderID())
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return respondText(s, e, "You have no reference images. Use `/reference add` to upload one.", true)
	}

	var b strings.Builder
	for _, r := range refs {
		fmt.Fprintf(&b, "`%d` %s (%d KB)\n", r.Slot, r.Filename, len(r.Data)/1024)
	}
	return respondEmbed(s, e, discord.Embed{
		Title:       fmt.Sprintf("📷 References (%d/%d)", len(refs), store.MaxReferences),
		Description: b.String(),
		Color:       kiaraColor,
	}, true)
}

func (c *ReferenceCommand) remove(ctx context.Context, s Responder, e *gateway.InteractionCreateEvent, opts discord.CommandInteractionOptions) error {
	slot, ok := intOption(opts, "slot")
	if !ok {
		return respondText(s, e, "Which slot?", true)
	}
	err := c.store.DeleteReference(ctx, e.SenderID(), int(slot))
	if errors.Is(err, store.ErrInvalidSlot) {
		return respondText(s, e, fmt.Sprintf("Slot must be between 1 and %d.", store.MaxReferences), true)
	}
	if err != nil {
		return err
	}
	return respondText(s, e, fmt.Sprintf("🗑️ Slot %d cleared.", slot), true)
}

func (c *ReferenceCommand) clear(ctx context.Context, s Responder, e *gateway.InteractionCreateEvent) error {
	n, err := c.store.ClearReferences(ctx, e.SenderID())
	if err != nil {
		return err
	}
	return respondText(s, e, fmt.Sprintf("🗑️ Removed %d reference image(s).", n), true)
}
