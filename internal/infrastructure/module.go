// Package infrastructure provides core infrastructure components and their Fx modules.
package infrastructure

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Raikerian/go-discord-kiara/internal/config"
	pkginfra "github.com/Raikerian/go-discord-kiara/pkg/infrastructure"
)

// LoggerModule provides logging infrastructure.
var LoggerModule = fx.Module("logger",
	fx.Provide(NewZapLogger),
)

// ClockModule provides the wall clock. Tests swap in clockwork.NewFakeClock.
var ClockModule = fx.Module("clock",
	fx.Provide(NewClock),
)

// NewClock returns the real clock.
func NewClock() clockwork.Clock {
	return clockwork.NewRealClock()
}

// NewZapLoggerParams holds dependencies for NewZapLogger.
type NewZapLoggerParams struct {
	fx.In
	Cfg *config.Config
	LC  fx.Lifecycle
}

// NewZapLogger creates and configures a new Zap logger.
func NewZapLogger(params NewZapLoggerParams) (*zap.Logger, error) {
	zapConfig, err := BuildZapConfig(params.Cfg.LogLevel, params.Cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create zap logger: %w", err)
	}

	params.LC.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			// Syncing stderr fails on some terminals; that is not a shutdown error.
			_ = logger.Sync()
			return nil
		},
	})

	return logger, nil
}

// BuildZapConfig maps the configured level and format onto a zap.Config.
// "debug" selects the development preset.
func BuildZapConfig(level, format string) (zap.Config, error) {
	var zapConfig zap.Config
	switch strings.ToLower(level) {
	case "debug":
		zapConfig = zap.NewDevelopmentConfig()
	case "", "info", "warn", "error":
		zapConfig = zap.NewProductionConfig()
		lvl := zapcore.InfoLevel
		if level != "" {
			if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
				return zap.Config{}, fmt.Errorf("invalid log level %q: %w", level, err)
			}
		}
		zapConfig.Level = zap.NewAtomicLevelAt(lvl)
	default:
		return zap.Config{}, fmt.Errorf("invalid log level %q", level)
	}

	switch strings.ToLower(format) {
	case "":
		// keep the preset's encoding
	case "json":
		zapConfig.Encoding = "json"
	case "console":
		zapConfig.Encoding = "console"
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return zap.Config{}, fmt.Errorf("invalid log format %q", format)
	}

	return zapConfig, nil
}

// NewFxLoggerAdapter creates a new Fx logger adapter using the public package.
func NewFxLoggerAdapter(logger *zap.Logger) fxevent.Logger {
	return pkginfra.NewFxLoggerAdapter(logger)
}
