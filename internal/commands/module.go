// Package commands implements Kiara's slash commands and their registry.
package commands

import (
	"go.uber.org/fx"
)

// Module provides the command manager and every slash command.
var Module = fx.Module("commands",
	fx.Provide(
		NewCommandManager,
		fx.Annotate(NewHTTPFetcher, fx.As(new(ImageFetcher))),
		fx.Annotate(
			NewImagineCommand,
			fx.ResultTags(`group:"commands"`),
		),
		fx.Annotate(
			NewSettingsCommand,
			fx.ResultTags(`group:"commands"`),
		),
		fx.Annotate(
			NewReferenceCommand,
			fx.ResultTags(`group:"commands"`),
		),
		fx.Annotate(
			NewStudioCommand,
			fx.ResultTags(`group:"commands"`),
		),
		fx.Annotate(
			NewVoiceCommand,
			fx.ResultTags(`group:"commands"`),
		),
		fx.Annotate(
			NewVersionCommand,
			fx.ResultTags(`group:"commands"`),
		),
	),
)
