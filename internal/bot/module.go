// Package bot wires gateway events to Kiara's commands and voice manager.
package bot

import (
	"go.uber.org/fx"
)

// Module provides the bot.
var Module = fx.Module("bot",
	fx.Provide(NewBot),
)
