package dispatch

import (
	"context"

	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-kiara/internal/config"
)

// Module provides the dispatch queue and ties its worker to the app lifecycle.
var Module = fx.Module("dispatch",
	fx.Provide(NewQueueFromConfig),
)

// QueueParams holds dependencies for NewQueueFromConfig.
type QueueParams struct {
	fx.In
	Cfg    *config.Config
	Logger *zap.Logger
	Clock  clockwork.Clock
	LC     fx.Lifecycle
}

// NewQueueFromConfig builds the queue from config.dispatch and registers
// start/stop hooks.
func NewQueueFromConfig(params QueueParams) *Queue {
	q := NewQueue(params.Logger, params.Clock, Options{
		RequestsPerMinute: params.Cfg.Dispatch.RequestsPerMinute,
		PollInterval:      params.Cfg.Dispatch.PollInterval,
		ErrorPause:        params.Cfg.Dispatch.ErrorPause,
	})

	params.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return q.Start()
		},
		OnStop: q.Close,
	})

	return q
}
