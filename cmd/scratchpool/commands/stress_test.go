package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/scratchspace/api"
	"github.com/momentics/scratchspace/control"
)

func TestStress_NoLeaks(t *testing.T) {
	cfg := control.DefaultFileConfig()
	rep, err := stress(context.Background(), cfg, api.NopLogger{}, stressOptions{
		Workers: 4, Ops: 50, Writes: 2, Capacity: 4,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(200), rep.Leases)
	assert.Zero(t, rep.LeakSignals)
	assert.Equal(t, 0, rep.Stats.Issued)
	assert.LessOrEqual(t, rep.Stats.Idle, 4)
	assert.Equal(t, uint64(200), rep.Stats.Created+rep.Stats.Reused)
	assert.Contains(t, rep.Debug, "pool.idle")
}

func TestStress_LeakAborts(t *testing.T) {
	cfg := control.DefaultFileConfig()
	_, err := stress(context.Background(), cfg, api.NopLogger{}, stressOptions{
		Workers: 1, Ops: 20, Capacity: 3, LeakEvery: 1,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrLeak)
}

func TestStress_TolerateLeaks(t *testing.T) {
	cfg := control.DefaultFileConfig()
	rep, err := stress(context.Background(), cfg, api.NopLogger{}, stressOptions{
		Workers: 1, Ops: 10, Capacity: 3, LeakEvery: 2, TolerateLeaks: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), rep.Leaked)
	// Every even lease is kept. From lease 7 on each acquire finds 3 or more
	// already issued, so leases 7 through 10 each trip the detector.
	assert.Equal(t, int64(4), rep.LeakSignals)
	assert.Equal(t, 5, rep.Stats.Issued)
}

func TestStress_RedisParent(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := control.DefaultFileConfig()
	cfg.Store = control.StoreConfig{Kind: "redis", RedisAddr: mr.Addr(), Namespace: "stress"}

	rep, err := stress(context.Background(), cfg, api.NopLogger{}, stressOptions{
		Workers: 2, Ops: 10, Writes: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(20), rep.Leases)
	assert.Empty(t, mr.Keys(), "scratch writes never reach the permanent store")
}

func TestLoadConfigAndLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.toml")
	require.NoError(t, os.WriteFile(path, []byte("[pool]\ncapacity = 5\n[log]\nformat = \"json\"\n"), 0o644))

	prevPath, prevLevel := configPath, logLevel
	t.Cleanup(func() { configPath, logLevel = prevPath, prevLevel })
	configPath, logLevel = path, "debug"

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Pool.Capacity)
	assert.Equal(t, "debug", cfg.Log.Level)

	logger, err := newLogger(cfg.Log, os.Stderr)
	require.NoError(t, err)
	assert.NotNil(t, logger)

	logLevel = "loud"
	_, err = loadConfig()
	assert.Error(t, err)
}
