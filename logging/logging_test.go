package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcdannyboy/optpricer/models"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.Disabled, ParseLevel("off"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("chatty"))
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn")

	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn().Msg("shown")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestContractFields(t *testing.T) {
	var buf bytes.Buffer
	c, err := models.NewContractSpec(models.BarrierUpOut, 100, 0.5, models.European, models.WithBarrier(120))
	require.NoError(t, err)

	logger := WithOperation(WithContract(New(&buf, "debug"), c), "price")
	LogResult(logger, models.PricingResult{Price: 1.5, StandardError: 0.01, Paths: 1000, Method: models.MethodMonteCarlo}, time.Millisecond)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "barrier_up_out", entry["kind"])
	assert.Equal(t, 120.0, entry["barrier"])
	assert.Equal(t, "price", entry["operation"])
	assert.Equal(t, 0.01, entry["std_err"])
	assert.Equal(t, 1000.0, entry["paths"])
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info")
	ctx := WithLogger(context.Background(), logger)

	l := FromContext(ctx)
	l.Info().Msg("from context")
	assert.Contains(t, buf.String(), "from context")

	// A bare context yields a logger that writes nothing.
	bare := FromContext(context.Background())
	bare.Error().Msg("dropped")
	assert.NotContains(t, buf.String(), "dropped")

	t.Run("fallback", func(t *testing.T) {
		var other bytes.Buffer
		fallback := New(&other, "info")

		fromCtx := FromContextOr(ctx, fallback)
		fromCtx.Info().Msg("context wins")
		assert.Contains(t, buf.String(), "context wins")
		assert.Zero(t, other.Len())

		fromBare := FromContextOr(context.Background(), fallback)
		fromBare.Info().Msg("fallback used")
		assert.Contains(t, other.String(), "fallback used")
	})
}

func TestFileLogging(t *testing.T) {
	cfg := DefaultLogConfig()
	cfg.Console = false
	cfg.File = true
	cfg.FilePath = filepath.Join(t.TempDir(), "logs", "test.log")

	logger := NewLoggerWithConfig(cfg)
	logger.Info().Msg("to file")
	assert.FileExists(t, cfg.FilePath)
}
