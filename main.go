// Package main runs Kiara, a Discord bot for image generation and realtime
// voice conversations.
package main

import (
	"flag"
	"time"

	"go.uber.org/fx"

	"github.com/Raikerian/go-discord-kiara/internal/app"
	"github.com/Raikerian/go-discord-kiara/internal/bot"
	"github.com/Raikerian/go-discord-kiara/internal/commands"
	"github.com/Raikerian/go-discord-kiara/internal/config"
	"github.com/Raikerian/go-discord-kiara/internal/discord"
	"github.com/Raikerian/go-discord-kiara/internal/dispatch"
	"github.com/Raikerian/go-discord-kiara/internal/gemini"
	"github.com/Raikerian/go-discord-kiara/internal/imagegen"
	"github.com/Raikerian/go-discord-kiara/internal/infrastructure"
	"github.com/Raikerian/go-discord-kiara/internal/openai"
	"github.com/Raikerian/go-discord-kiara/internal/ptt"
	"github.com/Raikerian/go-discord-kiara/internal/store"
	"github.com/Raikerian/go-discord-kiara/internal/voice"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	application := app.New(
		// Core modules
		config.Module,
		infrastructure.LoggerModule,
		infrastructure.ClockModule,

		// External service modules
		discord.Module,
		gemini.Module,
		openai.Module,

		// Application modules
		store.Module,
		dispatch.Module,
		imagegen.Module,
		voice.Module,
		ptt.Module,
		commands.Module,
		bot.Module,

		fx.Supply(*configPath),
		fx.StopTimeout(30*time.Second),

		// Route Fx's own events through zap
		fx.WithLogger(infrastructure.NewFxLoggerAdapter),
	)

	// Run blocks until SIGINT or SIGTERM, then stops every module in reverse order.
	application.Run()
}
