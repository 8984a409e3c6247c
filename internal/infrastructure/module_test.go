package infrastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zapcore"

	"github.com/Raikerian/go-discord-kiara/internal/config"
)

func TestBuildZapConfig(t *testing.T) {
	tests := map[string]struct {
		level    string
		format   string
		expected zapcore.Level
		encoding string
		wantErr  bool
	}{
		"debug":         {level: "debug", expected: zapcore.DebugLevel, encoding: "console"},
		"info json":     {level: "info", format: "json", expected: zapcore.InfoLevel, encoding: "json"},
		"warn console":  {level: "warn", format: "console", expected: zapcore.WarnLevel, encoding: "console"},
		"error":         {level: "error", expected: zapcore.ErrorLevel, encoding: "json"},
		"empty default": {expected: zapcore.InfoLevel, encoding: "json"},
		"bad level":     {level: "chatty", wantErr: true},
		"bad format":    {level: "info", format: "xml", wantErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg, err := BuildZapConfig(tt.level, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg.Level.Level())
			assert.Equal(t, tt.encoding, cfg.Encoding)
		})
	}
}

func TestNewZapLogger(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	logger, err := NewZapLogger(NewZapLoggerParams{
		Cfg: &config.Config{LogLevel: "warn"},
		LC:  lc,
	})
	require.NoError(t, err)
	require.NotNil(t, logger)

	lc.RequireStart()
	lc.RequireStop()
}
