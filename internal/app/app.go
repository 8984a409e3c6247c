// Package app ties Kiara's modules into one fx application.
package app

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-kiara/internal/bot"
	"github.com/Raikerian/go-discord-kiara/internal/commands"
)

// Application is Kiara's fx application.
type Application struct {
	app *fx.App
}

// New assembles the application from modules and options.
func New(modules ...fx.Option) *Application {
	options := append(modules, fx.Invoke(registerLifecycleHooks))
	return &Application{app: fx.New(options...)}
}

// Run starts every module, blocks until SIGINT or SIGTERM, then stops
// them in reverse order.
func (a *Application) Run() {
	a.app.Run()
}

// registerLifecycleHooks starts the bot last and stops it first. Its hook
// is appended after every module the bot depends on, so command
// registration sees an open gateway and the voice manager, dispatch queue
// and store are still up while in-flight commands drain.
func registerLifecycleHooks(lc fx.Lifecycle, b *bot.Bot, clock clockwork.Clock, logger *zap.Logger) {
	var startedAt time.Time

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			startedAt = clock.Now()
			logger.Info("Starting Kiara", zap.String("version", commands.AppVersion))
			if err := b.Start(ctx); err != nil {
				logger.Error("Failed to start bot", zap.Error(err))
				return err
			}

			logger.Info("Kiara is ready")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping Kiara", zap.Duration("uptime", clock.Since(startedAt)))
			if err := b.Stop(ctx); err != nil {
				logger.Error("Failed to stop bot", zap.Error(err))
				return err
			}
			return nil
		},
	})
}
