package gemini

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/Raikerian/go-discord-kiara/internal/imagegen"
)

// ImageBackend generates images with a Gemini image model.
type ImageBackend struct {
	client *Client
	logger *zap.Logger
}

// NewImageBackend creates an ImageBackend.
func NewImageBackend(client *Client, logger *zap.Logger) *ImageBackend {
	return &ImageBackend{client: client, logger: logger.Named("gemini_image")}
}

// Generate makes one generateContent call. Reference images go first, the
// prompt last.
func (b *ImageBackend) Generate(ctx context.Context, req imagegen.Request) (*imagegen.Image, error) {
	client, err := b.client.get(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := client.Models.GenerateContent(ctx, req.Model,
		[]*genai.Content{buildContent(req)}, buildConfig(req))
	if err != nil {
		return nil, err
	}

	img, err := imageFromResponse(resp)
	if err != nil {
		return nil, err
	}
	img.Model = req.Model

	b.logger.Debug("Generated image",
		zap.String("model", req.Model),
		zap.Int("references", len(req.References)),
		zap.Int("bytes", len(img.Data)))
	return img, nil
}

func buildContent(req imagegen.Request) *genai.Content {
	parts := make([]*genai.Part, 0, len(req.References)+1)
	for _, ref := range req.References {
		mime := ref.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, genai.NewPartFromBytes(ref.Data, mime))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))
	return genai.NewContentFromParts(parts, genai.RoleUser)
}

func buildConfig(req imagegen.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityImage)},
	}
	if req.AspectRatio != "" || req.Quality != "" {
		cfg.ImageConfig = &genai.ImageConfig{
			AspectRatio: req.AspectRatio,
			ImageSize:   req.Quality,
		}
	}
	return cfg
}

// imageFromResponse pulls the first inline image out of resp. Blocked
// prompts and safety stops come back as imagegen.ErrSafetyBlocked.
func imageFromResponse(resp *genai.GenerateContentResponse) (*imagegen.Image, error) {
	if resp == nil {
		return nil, imagegen.ErrNoImage
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		return nil, fmt.Errorf("%w: prompt blocked (%s)", imagegen.ErrSafetyBlocked, fb.BlockReason)
	}

	for _, cand := range resp.Candidates {
		if cand == nil {
			continue
		}
		switch cand.FinishReason {
		case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonImageSafety:
			return nil, fmt.Errorf("%w: finish reason %s", imagegen.ErrSafetyBlocked, cand.FinishReason)
		}
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return &imagegen.Image{
					Data:     part.InlineData.Data,
					MIMEType: part.InlineData.MIMEType,
				}, nil
			}
		}
	}
	return nil, imagegen.ErrNoImage
}
