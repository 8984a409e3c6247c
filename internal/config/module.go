// Package config loads the bot configuration and exposes it to Fx.
package config

import (
	"go.uber.org/fx"
)

// Module provides *Config loaded from the supplied file path.
var Module = fx.Module("config",
	fx.Provide(LoadConfig),
)
