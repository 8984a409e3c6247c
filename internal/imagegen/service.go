// Package imagegen generates images through a pluggable backend, retrying
// quota and transient failures.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Reference is an image sent to the model ahead of the prompt.
type Reference struct {
	Data     []byte
	MIMEType string
}

// Request describes one generation.
type Request struct {
	Prompt      string
	Style       string
	References  []Reference
	AspectRatio string
	Quality     string
	Model       string
}

// Image is a generated image.
type Image struct {
	Data     []byte
	MIMEType string
	Model    string
	Attempts int
}

// Backend performs a single generation call. Prompt is already final.
type Backend interface {
	Generate(ctx context.Context, req Request) (*Image, error)
}

// Options tunes the retry policy.
type Options struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	Timeout      time.Duration // per attempt; zero means none
	DefaultModel string
}

// Service applies prompt shaping and the retry policy around a Backend.
type Service struct {
	backend Backend
	logger  *zap.Logger
	opts    Options
}

// NewService creates a Service.
func NewService(backend Backend, logger *zap.Logger, opts Options) *Service {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 2 * time.Second
	}
	if opts.DefaultModel == "" {
		opts.DefaultModel = Models[0]
	}
	return &Service{
		backend: backend,
		logger:  logger.Named("imagegen"),
		opts:    opts,
	}
}

// Generate produces one image. Safety blocks fail at once with
// ErrSafetyBlocked. Quota errors back off exponentially from BaseDelay and
// surface as ErrRateLimited once attempts run out. Other errors retry after
// a fixed BaseDelay and surface unchanged.
func (s *Service) Generate(ctx context.Context, req Request) (*Image, error) {
	if !slices.Contains(Models, req.Model) {
		req.Model = s.opts.DefaultModel
	}
	req.Prompt = BuildPrompt(req.Prompt, req.Style, len(req.References))

	var (
		attempt  int
		lastKind Kind
		img      *Image
	)

	backoff := retry.BackoffFunc(func() (time.Duration, bool) {
		if attempt >= s.opts.MaxAttempts {
			return 0, true
		}
		if lastKind == KindRateLimit {
			return s.opts.BaseDelay << (attempt - 1), false
		}
		return s.opts.BaseDelay, false
	})

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		out, err := s.attempt(ctx, req)
		if err == nil {
			img = out
			return nil
		}

		lastKind = Classify(err)
		s.logger.Warn("Image generation attempt failed",
			zap.Int("attempt", attempt),
			zap.String("model", req.Model),
			zap.Stringer("kind", lastKind),
			zap.Error(err))

		if lastKind == KindSafety {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		switch lastKind {
		case KindSafety:
			if errors.Is(err, ErrSafetyBlocked) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrSafetyBlocked, err)
		case KindRateLimit:
			if errors.Is(err, ErrRateLimited) {
				return nil, err
			}
			return nil, fmt.Errorf("%w after %d attempts: %v", ErrRateLimited, attempt, err)
		default:
			return nil, fmt.Errorf("image generation failed after %d attempts: %w", attempt, err)
		}
	}

	img.Attempts = attempt
	if img.Model == "" {
		img.Model = req.Model
	}
	s.logger.Info("Image generated",
		zap.String("model", img.Model),
		zap.Int("references", len(req.References)),
		zap.Int("attempts", attempt),
		zap.Int("bytes", len(img.Data)))
	return img, nil
}

func (s *Service) attempt(ctx context.Context, req Request) (*Image, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	img, err := s.backend.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if img == nil || len(img.Data) == 0 {
		return nil, ErrNoImage
	}
	return img, nil
}
