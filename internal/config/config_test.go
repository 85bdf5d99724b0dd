package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("COMPANION_TIME_UNIT", "")
	t.Setenv("ROLLING_CONTEXT_CAPACITY", "")

	cfg := Load()

	assert.Equal(t, time.Second, cfg.Companion.TimeUnit)
	assert.Equal(t, 5, cfg.Companion.RollingCapacity)
	assert.Equal(t, 16000, cfg.Companion.InputSampleRate)
	assert.Equal(t, 24000, cfg.Companion.OutputSampleRate)
	assert.True(t, cfg.Ai.FallbackEnabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("COMPANION_TIME_UNIT", "250ms")
	t.Setenv("ROLLING_CONTEXT_CAPACITY", "3")
	t.Setenv("GUIDANCE_FALLBACK_ENABLED", "false")
	t.Setenv("LLM_PROVIDER", "mock")

	cfg := Load()

	assert.Equal(t, 250*time.Millisecond, cfg.Companion.TimeUnit)
	assert.Equal(t, 3, cfg.Companion.RollingCapacity)
	assert.False(t, cfg.Ai.FallbackEnabled)
	assert.Equal(t, "mock", cfg.Ai.Provider)
}

func TestRollingCapacityIsCapped(t *testing.T) {
	t.Setenv("ROLLING_CONTEXT_CAPACITY", "12")

	cfg := Load()

	assert.Equal(t, 5, cfg.Companion.RollingCapacity)
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("LIVE_FRAME_SIZE", "lots")
	t.Setenv("TTS_ENABLED", "maybe")

	cfg := Load()

	assert.Equal(t, 4096, cfg.Companion.FrameSize)
	assert.True(t, cfg.Companion.TtsEnabled)
}
