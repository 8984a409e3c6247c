package commands

import (
	"context"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/diamondburned/arikawa/v3/gateway"
)

// AppVersion is set at build time with -ldflags "-X".
var AppVersion = "dev"

// VersionCommand replies with the running build.
type VersionCommand struct{}

// NewVersionCommand creates the /version command.
func NewVersionCommand() Command {
	return &VersionCommand{}
}

func (c *VersionCommand) Name() string { return "version" }

func (c *VersionCommand) Description() string {
	return "Displays the current version of Kiara."
}

func (c *VersionCommand) Options() []discord.CommandOption {
	return nil
}

func (c *VersionCommand) Execute(_ context.Context, s Responder, e *gateway.InteractionCreateEvent, _ *discord.CommandInteraction) error {
	return respondText(s, e, "Kiara "+AppVersion, true)
}
