// Package openai provides OpenAI-backed image generation and realtime voice.
package openai

import (
	"errors"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-kiara/internal/config"
	"github.com/Raikerian/go-discord-kiara/internal/imagegen"
	"github.com/Raikerian/go-discord-kiara/internal/voice"
)

// Module provides the OpenAI client, an image backend and a realtime live
// dialer, both registered under the name "openai".
var Module = fx.Module("openai",
	fx.Provide(
		NewClient,
		fx.Annotate(
			NewImageBackendFromConfig,
			fx.As(new(imagegen.Backend)),
			fx.ResultTags(`name:"openai"`),
		),
		fx.Annotate(
			NewRealtimeDialerFromConfig,
			fx.As(new(voice.LiveDialer)),
			fx.ResultTags(`name:"openai"`),
		),
	),
)

func usesOpenAI(cfg *config.Config) bool {
	return cfg.Images.Provider == config.ProviderOpenAI || cfg.Voice.Provider == config.ProviderOpenAI
}

// NewClient creates and configures a new OpenAI client. A missing API key
// is only an error when OpenAI is the configured image or voice provider.
func NewClient(cfg *config.Config, logger *zap.Logger) (*openai.Client, error) {
	if cfg.OpenAI.APIKey == "" {
		if usesOpenAI(cfg) {
			logger.Error("OpenAI API key is not configured in config.yaml")

			return nil, errors.New("OpenAI API key (config.OpenAI.APIKey) is not configured")
		}
		logger.Info("OpenAI API key is not configured; OpenAI is disabled")
	}

	client := openai.NewClient(cfg.OpenAI.APIKey)
	logger.Info("OpenAI client created successfully.")

	return client, nil
}

// NewImageBackendFromConfig builds the image backend from config.openai.
func NewImageBackendFromConfig(client *openai.Client, cfg *config.Config, logger *zap.Logger) *ImageBackend {
	return NewImageBackend(client, cfg.OpenAI.ImageModel, logger)
}

// NewRealtimeDialerFromConfig builds the realtime dialer. The persona comes
// from config.voice so both providers sound alike.
func NewRealtimeDialerFromConfig(cfg *config.Config, logger *zap.Logger) *RealtimeDialer {
	return NewRealtimeDialer(logger, RealtimeOptions{
		APIKey:       cfg.OpenAI.APIKey,
		Model:        cfg.OpenAI.RealtimeModel,
		Voice:        cfg.OpenAI.Voice,
		Instructions: cfg.Voice.SystemPrompt,
	})
}
