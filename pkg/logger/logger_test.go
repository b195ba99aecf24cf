package logger_test

import (
	"context"
	"mwdb/pkg/logger"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		verbose     bool
		wantDebug   bool
	}{
		{name: "development", environment: logger.DevelopmentEnvironment},
		{name: "development verbose", environment: logger.DevelopmentEnvironment, verbose: true, wantDebug: true},
		{name: "production", environment: logger.ProductionEnvironment},
		{name: "production verbose", environment: logger.ProductionEnvironment, verbose: true, wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotPanics(t, func() {
				logger.Setup(tt.environment, tt.verbose)
			})

			ctx := context.Background()
			require.NotNil(t, logger.Get(ctx))
			require.Equal(t, tt.wantDebug, logger.IsDebug(ctx))
		})
	}
}

func TestGetFallsBackToDefault(t *testing.T) {
	logger.Setup(logger.DevelopmentEnvironment, false)

	ctx := context.Background()
	require.NotNil(t, logger.Get(ctx))

	custom := zap.NewNop()
	require.Same(t, custom, logger.Get(logger.WithLogger(ctx, custom)))
}

func TestWithFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := logger.WithLogger(context.Background(), zap.New(core))

	ctx = logger.WithFields(ctx, zap.String("objectType", "file"))
	logger.Info(ctx, "delivered", zap.String("id", "abc"))

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "delivered", entries[0].Message)
	fields := entries[0].ContextMap()
	require.Equal(t, "file", fields["objectType"])
	require.Equal(t, "abc", fields["id"])
}

func TestLoggingFunctions(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := logger.WithLogger(context.Background(), zap.New(core))

	logger.Debug(ctx, "debug message")
	logger.Info(ctx, "info message")
	logger.Warn(ctx, "warn message")
	logger.Error(ctx, "error message")

	require.Equal(t, 4, logs.Len())
	require.Equal(t, zapcore.WarnLevel, logs.All()[2].Level)
}
