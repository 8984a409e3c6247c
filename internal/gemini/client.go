// Package gemini talks to Google's Gemini API: image generation through
// generateContent and voice conversations through the Live API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/Raikerian/go-discord-kiara/internal/config"
)

var errNoAPIKey = errors.New("gemini API key (config.gemini.api_key or GOOGLE_API_KEY) is not configured")

// Client lazily creates the genai client on first use, so a bot that uses
// another provider for both images and voice needs no Gemini key.
type Client struct {
	apiKey string
	logger *zap.Logger

	once   sync.Once
	client *genai.Client
	err    error
}

// NewClient validates the Gemini settings. A missing API key is an error
// only when Gemini is the configured image or voice provider.
func NewClient(cfg *config.Config, logger *zap.Logger) (*Client, error) {
	if cfg.Gemini.APIKey == "" {
		if cfg.Images.Provider == config.ProviderGemini || cfg.Voice.Provider == config.ProviderGemini {
			logger.Error("Gemini API key is not configured")

			return nil, errNoAPIKey
		}
		logger.Info("Gemini API key is not configured; Gemini is disabled")
	}

	return &Client{apiKey: cfg.Gemini.APIKey, logger: logger}, nil
}

func (c *Client) get(ctx context.Context) (*genai.Client, error) {
	c.once.Do(func() {
		if c.apiKey == "" {
			c.err = errNoAPIKey
			return
		}
		c.client, c.err = genai.NewClient(context.WithoutCancel(ctx), &genai.ClientConfig{
			APIKey:  c.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if c.err != nil {
			c.err = fmt.Errorf("failed to create gemini client: %w", c.err)
			return
		}
		c.logger.Info("Gemini client created successfully.")
	})
	return c.client, c.err
}
