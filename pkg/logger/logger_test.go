package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		level  string
		format string
	}{
		{
			name:   "creates logger with debug level",
			level:  logger.LogLevelDebug,
			format: "console",
		},
		{
			name:   "creates logger with info level",
			level:  logger.LogLevelInfo,
			format: "console",
		},
		{
			name:   "creates logger with json format",
			level:  logger.LogLevelInfo,
			format: logger.JSONLoggingFormat,
		},
		{
			name:   "creates logger with default level for unknown",
			level:  "unknown",
			format: "console",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			log := logger.New(tc.level, tc.format)
			require.NotNil(t, log)
		})
	}
}

func TestWithContext(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name              string
		setupContext      func() context.Context
		expectedRequestID string
		hasRequestID      bool
	}{
		{
			name: "adds request ID to logger",
			setupContext: func() context.Context {
				return context.WithValue(context.Background(), logger.ContextKeyRequestID, "test-request-123")
			},
			expectedRequestID: "test-request-123",
			hasRequestID:      true,
		},
		{
			name: "adds request ID through helper",
			setupContext: func() context.Context {
				return logger.ContextWithRequestID(context.Background(), "helper-request-456")
			},
			expectedRequestID: "helper-request-456",
			hasRequestID:      true,
		},
		{
			name: "handles empty context",
			setupContext: func() context.Context {
				return context.Background()
			},
			hasRequestID: false,
		},
		{
			name: "handles empty request ID",
			setupContext: func() context.Context {
				return context.WithValue(context.Background(), logger.ContextKeyRequestID, "")
			},
			hasRequestID: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			log := logger.NewWithWriter(logger.LogLevelInfo, logger.JSONLoggingFormat, &buf)

			ctx := tc.setupContext()
			ctxLogger := log.WithContext(ctx)

			ctxLogger.Info().Msg("test message")

			if tc.hasRequestID {
				var logEntry map[string]any
				err := json.Unmarshal(buf.Bytes(), &logEntry)
				require.NoError(t, err)
				require.Equal(t, tc.expectedRequestID, logEntry["request_id"])
			}
		})
	}
}

func TestWithContext_UserAndCorrelation(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewWithWriter(logger.LogLevelInfo, logger.JSONLoggingFormat, &buf)

	ctx := logger.ContextWithUserID(context.Background(), "user-1")
	ctx = logger.ContextWithCorrelationID(ctx, "corr-1")

	ctxLogger := log.WithContext(ctx)
	ctxLogger.Info().Msg("test message")

	var logEntry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	require.Equal(t, "user-1", logEntry["user_id"])
	require.Equal(t, "corr-1", logEntry["correlation_id"])
	require.Equal(t, "corr-1", logger.CorrelationIDFromContext(ctx))
}

func TestComponent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewWithWriter(logger.LogLevelInfo, logger.JSONLoggingFormat, &buf).Component("bridge")

	log.Info().Msg("started")

	var logEntry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	require.Equal(t, "bridge", logEntry["component"])
}

func TestNewWithWriter_RespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewWithWriter(logger.LogLevelWarn, logger.JSONLoggingFormat, &buf)

	log.Info().Msg("dropped")
	require.Zero(t, buf.Len())

	log.Warn().Msg("kept")
	require.NotZero(t, buf.Len())
}

func TestNop(t *testing.T) {
	t.Parallel()

	log := logger.Nop()

	require.Equal(t, zerolog.Disabled, log.GetLevel())
	require.NotPanics(t, func() {
		component := log.Component("cache")
		component.Error().Msg("dropped")
	})
}
