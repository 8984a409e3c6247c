package imagegen

import (
	"fmt"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-kiara/internal/config"
)

// Module provides the image Service. Provider modules contribute backends
// named after themselves; config.images.provider picks one.
var Module = fx.Module("imagegen",
	fx.Provide(
		SelectBackend,
		NewServiceFromConfig,
	),
)

// BackendParams holds the backends contributed by provider modules.
type BackendParams struct {
	fx.In
	Cfg    *config.Config
	Gemini Backend `name:"gemini" optional:"true"`
	OpenAI Backend `name:"openai" optional:"true"`
}

// SelectBackend returns the backend for config.images.provider.
func SelectBackend(params BackendParams) (Backend, error) {
	var b Backend
	provider := strings.ToLower(params.Cfg.Images.Provider)
	switch provider {
	case config.ProviderGemini:
		b = params.Gemini
	case config.ProviderOpenAI:
		b = params.OpenAI
	}
	if b == nil {
		return nil, fmt.Errorf("no image backend registered for provider %q", provider)
	}
	return b, nil
}

// ServiceParams holds dependencies for NewServiceFromConfig.
type ServiceParams struct {
	fx.In
	Cfg     *config.Config
	Backend Backend
	Logger  *zap.Logger
}

// NewServiceFromConfig builds the Service from config.images.
func NewServiceFromConfig(params ServiceParams) *Service {
	return NewService(params.Backend, params.Logger, Options{
		MaxAttempts:  params.Cfg.Images.MaxAttempts,
		BaseDelay:    params.Cfg.Images.BaseDelay,
		Timeout:      params.Cfg.Images.Timeout,
		DefaultModel: params.Cfg.Images.Model,
	})
}
