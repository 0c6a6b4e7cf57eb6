package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PIPELINE_CONTEXT_LIMIT", "")
	t.Setenv("PIPELINE_MODEL_TIMEOUT", "")
	t.Setenv("DB_AUTO_MIGRATE", "")

	cfg := Load()

	assert.Equal(t, 5, cfg.Pipeline.ContextLimit)
	assert.Equal(t, 120*time.Second, cfg.Pipeline.ModelTimeout)
	assert.Equal(t, "pgvector", cfg.Pipeline.VectorIndex)
	assert.True(t, cfg.Pipeline.FinalizeOnModelMarker)
	assert.Equal(t, 768, cfg.Ai.EmbeddingDimensions)
	assert.False(t, cfg.Database.AutoMigrate)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PIPELINE_CONTEXT_LIMIT", "8")
	t.Setenv("PIPELINE_MODEL_TIMEOUT", "45s")
	t.Setenv("PIPELINE_EMBEDDING_TIMEOUT", "3")
	t.Setenv("PIPELINE_FINALIZE_ON_MODEL_MARKER", "false")
	t.Setenv("VECTOR_INDEX", "Memory")
	t.Setenv("GO_ENV", "production")

	cfg := Load()

	assert.Equal(t, 8, cfg.Pipeline.ContextLimit)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.ModelTimeout)
	assert.Equal(t, 3*time.Second, cfg.Pipeline.EmbeddingTimeout)
	assert.False(t, cfg.Pipeline.FinalizeOnModelMarker)
	assert.Equal(t, "memory", cfg.Pipeline.VectorIndex)
	assert.True(t, cfg.IsProduction())
}

func TestGetEnvAsDuration_InvalidFallsBack(t *testing.T) {
	t.Setenv("SOME_TIMEOUT", "soon")
	assert.Equal(t, time.Minute, getEnvAsDuration("SOME_TIMEOUT", time.Minute))
}

func TestLoad_LockTTLCoversTurnBudget(t *testing.T) {
	t.Setenv("PIPELINE_MODEL_TIMEOUT", "90s")
	t.Setenv("PIPELINE_EMBEDDING_TIMEOUT", "10s")
	t.Setenv("SESSION_LOCK_TTL", "30s")

	cfg := Load()

	assert.Equal(t, 110*time.Second, cfg.Pipeline.TurnBudget())
	assert.Equal(t, 110*time.Second, cfg.Pipeline.SessionLockTTL)
}

func TestLoad_LongerLockTTLIsKept(t *testing.T) {
	t.Setenv("PIPELINE_MODEL_TIMEOUT", "90s")
	t.Setenv("PIPELINE_EMBEDDING_TIMEOUT", "10s")
	t.Setenv("SESSION_LOCK_TTL", "15m")

	cfg := Load()

	assert.Equal(t, 15*time.Minute, cfg.Pipeline.SessionLockTTL)
}
