package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/ibis/internal/config"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := config.NewConfig()

	assert.Equal(t, config.DefaultParallelThreshold, cfg.ParallelThreshold)
	assert.Equal(t, config.DefaultMaxOptimizerPasses, cfg.MaxOptimizerPasses)
	assert.True(t, cfg.PredicatePushdown)
	assert.True(t, cfg.ProjectionPushdown)
	assert.True(t, cfg.ConstantFolding)
	assert.True(t, cfg.SubexprElimination)
	assert.True(t, cfg.Simplification)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cfg := config.NewConfig()
	cfg.ParallelThreshold = 0
	assert.Error(t, cfg.Validate())

	cfg = config.NewConfig()
	cfg.WorkerPoolSize = -1
	assert.Error(t, cfg.Validate())

	cfg = config.NewConfig()
	cfg.MaxOptimizerPasses = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadFromJSON(t *testing.T) {
	cfg, err := config.LoadFromJSON([]byte(`{"parallel_threshold": 50, "predicate_pushdown": true}`))
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.ParallelThreshold)
	assert.True(t, cfg.PredicatePushdown)
	assert.Equal(t, config.DefaultMaxOptimizerPasses, cfg.MaxOptimizerPasses,
		"unset numeric fields get defaults")
}

func TestLoadFromFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("parallel_threshold: 77\nmax_optimizer_passes: 3\n"), 0o644))

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 77, cfg.ParallelThreshold)
	assert.Equal(t, 3, cfg.MaxOptimizerPasses)
}

func TestLoadFromFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"worker_pool_size": 4}`), 0o644))

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.WorkerPoolSize)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("IBIS_PARALLEL_THRESHOLD", "123")
	t.Setenv("IBIS_PREDICATE_PUSHDOWN", "false")

	cfg := config.LoadFromEnv()
	assert.Equal(t, 123, cfg.ParallelThreshold)
	assert.False(t, cfg.PredicatePushdown)
}

func TestGlobalConfig(t *testing.T) {
	orig := config.GetGlobalConfig()
	defer config.SetGlobalConfig(orig)

	cfg := config.NewConfig()
	cfg.ParallelThreshold = 42
	config.SetGlobalConfig(cfg)

	assert.Equal(t, 42, config.GetGlobalConfig().ParallelThreshold)
}
