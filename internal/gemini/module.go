package gemini

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-kiara/internal/config"
	"github.com/Raikerian/go-discord-kiara/internal/imagegen"
	"github.com/Raikerian/go-discord-kiara/internal/voice"
)

// Module provides the Gemini client, the Gemini image backend and the
// Gemini live dialer, both registered under the name "gemini".
var Module = fx.Module("gemini",
	fx.Provide(
		NewClient,
		fx.Annotate(
			NewImageBackend,
			fx.As(new(imagegen.Backend)),
			fx.ResultTags(`name:"gemini"`),
		),
		fx.Annotate(
			NewLiveDialerFromConfig,
			fx.As(new(voice.LiveDialer)),
			fx.ResultTags(`name:"gemini"`),
		),
	),
)

// NewLiveDialerFromConfig builds the live dialer from config.voice.
func NewLiveDialerFromConfig(client *Client, cfg *config.Config, logger *zap.Logger) *LiveDialer {
	return NewLiveDialer(client, logger, LiveOptions{
		Model:        cfg.Voice.LiveModel,
		Voice:        cfg.Voice.Voice,
		SystemPrompt: cfg.Voice.SystemPrompt,
	})
}
