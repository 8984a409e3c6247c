package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-kiara/internal/imagegen"
)

// imageClient is the part of *openai.Client the image backend uses.
type imageClient interface {
	CreateImage(ctx context.Context, request openai.ImageRequest) (openai.ImageResponse, error)
}

// ImageBackend generates images with an OpenAI image model. It ignores
// reference images.
type ImageBackend struct {
	client imageClient
	model  string
	logger *zap.Logger
}

// NewImageBackend creates an ImageBackend for model.
func NewImageBackend(client imageClient, model string, logger *zap.Logger) *ImageBackend {
	return &ImageBackend{client: client, model: model, logger: logger.Named("openai_image")}
}

// Generate makes one image request.
func (b *ImageBackend) Generate(ctx context.Context, req imagegen.Request) (*imagegen.Image, error) {
	if len(req.References) > 0 {
		b.logger.Debug("Reference images are not supported, ignoring them",
			zap.Int("references", len(req.References)))
	}

	resp, err := b.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         req.Prompt,
		Model:          b.model,
		N:              1,
		Size:           imageSize(req.AspectRatio),
		Quality:        imageQuality(req.Quality),
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && fmt.Sprint(apiErr.Code) == "content_policy_violation" {
			return nil, fmt.Errorf("%w: %s", imagegen.ErrSafetyBlocked, apiErr.Message)
		}
		return nil, err
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, imagegen.ErrNoImage
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return &imagegen.Image{Data: data, MIMEType: "image/png", Model: b.model}, nil
}

func imageSize(aspect string) string {
	switch aspect {
	case "16:9", "4:3", "21:9":
		return openai.CreateImageSize1792x1024
	case "9:16", "3:4":
		return openai.CreateImageSize1024x1792
	default:
		return openai.CreateImageSize1024x1024
	}
}

func imageQuality(quality string) string {
	if quality == "2K" || quality == "4K" {
		return openai.CreateImageQualityHD
	}
	return openai.CreateImageQualityStandard
}
