package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/scratchspace/api"
	"github.com/momentics/scratchspace/control"
)

func TestInspect_Once(t *testing.T) {
	var reports []map[string]any
	err := inspect(context.Background(), control.DefaultFileConfig(), api.NopLogger{}, "",
		inspectOptions{Probes: 3}, func(m map[string]any) { reports = append(reports, m) })
	require.NoError(t, err)
	require.Len(t, reports, 1)

	state := reports[0]
	assert.Equal(t, uint64(1), state["pool.created"])
	assert.Equal(t, uint64(2), state["pool.reused"])
	assert.Equal(t, "permanent", state["debug.store.parent"])
}

func TestInspect_WatchAppliesCapacity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pool:\n  capacity: 4\n"), 0o644))
	cfg, err := control.LoadFile(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := make(chan struct{})
	reloaded := make(chan any, 1)
	done := make(chan error, 1)
	go func() {
		done <- inspect(ctx, cfg, api.NopLogger{}, path, inspectOptions{Watch: true, Debounce: 5 * time.Millisecond},
			func(m map[string]any) {
				switch m["pool.capacity"] {
				case 4:
					close(first)
				case 9:
					select {
					case reloaded <- m["pool.capacity"]:
					default:
					}
				}
			})
	}()
	<-first

	require.NoError(t, os.WriteFile(path, []byte("pool:\n  capacity: 9\n"), 0o644))
	// The watcher may take its first stat after the write, so keep moving
	// the mtime forward until the reload shows up.
	deadline := time.After(5 * time.Second)
	for i := 1; ; i++ {
		future := time.Now().Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(path, future, future))
		select {
		case got := <-reloaded:
			assert.Equal(t, 9, got)
		case <-time.After(20 * time.Millisecond):
			continue
		case <-deadline:
			t.Fatal("reload was not reported")
		}
		break
	}
	cancel()
	assert.NoError(t, <-done)
}
