package ptt

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-discord-kiara/internal/config"
	"github.com/Raikerian/go-discord-kiara/internal/voice"
)

// Module provides the push-to-talk bridge and, when enabled, the local
// control server.
var Module = fx.Module("ptt",
	fx.Provide(
		NewBridgeFromConfig,
		NewServerFromConfig,
	),
	fx.Invoke(func(*Server) {}),
)

// BridgeParams holds dependencies for NewBridgeFromConfig.
type BridgeParams struct {
	fx.In
	Cfg     *config.Config
	Logger  *zap.Logger
	Manager *voice.Manager
	LC      fx.Lifecycle
}

// NewBridgeFromConfig creates the bridge and runs it for the app's lifetime.
func NewBridgeFromConfig(params BridgeParams) *Bridge {
	b := NewBridge(params.Logger, params.Manager, params.Cfg.Voice.PTT.Key)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	params.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				b.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
	return b
}

// ServerParams holds dependencies for NewServerFromConfig.
type ServerParams struct {
	fx.In
	Cfg     *config.Config
	Logger  *zap.Logger
	Bridge  *Bridge
	Manager *voice.Manager
	LC      fx.Lifecycle
}

// NewServerFromConfig builds the control server. It only listens when
// control.enabled is set.
func NewServerFromConfig(params ServerParams) *Server {
	if params.Cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	s := NewServer(params.Logger, params.Cfg.Control.Listen, params.Bridge, params.Manager)

	if !params.Cfg.Control.Enabled {
		params.Logger.Info("Control server disabled")
		return s
	}
	params.LC.Append(fx.Hook{
		OnStart: s.Start,
		OnStop:  s.Stop,
	})
	return s
}
