package filewatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/creditrag-go/internal/domain/ports"
)

func waitEvent(t *testing.T, events <-chan ports.FileEvent, timeout time.Duration) (ports.FileEvent, bool) {
	t.Helper()
	select {
	case ev, ok := <-events:
		return ev, ok
	case <-time.After(timeout):
		return ports.FileEvent{}, false
	}
}

func TestFSNotifyWatcher_DefaultExtensions(t *testing.T) {
	watcher, err := NewFSNotifyWatcher(nil, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.Equal(t, []string{".md", ".markdown", ".txt"}, watcher.extensions)
}

func TestFSNotifyWatcher_WatchDirectory(t *testing.T) {
	dir := t.TempDir()
	watcher, err := NewFSNotifyWatcher([]string{".md"}, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events, err := watcher.Watch(ctx, dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ccj.md"), []byte("hi"), 0o644))

	ev, ok := waitEvent(t, events, time.Second)
	require.True(t, ok, "timeout waiting for event")
	assert.Equal(t, ports.FileCreated, ev.Operation)
	assert.Equal(t, "ccj.md", filepath.Base(ev.Path))
}

func TestFSNotifyWatcher_WatchesNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	watcher, err := NewFSNotifyWatcher([]string{".md"}, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	events, err := watcher.Watch(ctx, dir)
	require.NoError(t, err)

	sub := filepath.Join(dir, "debt")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "iva.md"), []byte("x"), 0o644))

	for {
		ev, ok := waitEvent(t, events, 2*time.Second)
		require.True(t, ok, "timeout waiting for event in subdirectory")
		if filepath.Base(ev.Path) == "iva.md" {
			return
		}
	}
}

func TestFSNotifyWatcher_FiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	watcher, err := NewFSNotifyWatcher([]string{".txt"}, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	events, err := watcher.Watch(ctx, dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.json"), []byte("{}"), 0o644))

	_, ok := waitEvent(t, events, 300*time.Millisecond)
	assert.False(t, ok, "should not receive event for .json")
}

func TestFSNotifyWatcher_ReportsRemoval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old.md")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	watcher, err := NewFSNotifyWatcher([]string{".md"}, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	events, err := watcher.Watch(ctx, dir)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	ev, ok := waitEvent(t, events, time.Second)
	require.True(t, ok)
	assert.Equal(t, ports.FileDeleted, ev.Operation)
}

func TestFSNotifyWatcher_Stop(t *testing.T) {
	watcher, err := NewFSNotifyWatcher(nil, nil)
	require.NoError(t, err)
	assert.NoError(t, watcher.Stop())
}

func TestFileOperation_String(t *testing.T) {
	assert.Equal(t, "created", ports.FileCreated.String())
	assert.Equal(t, "renamed", ports.FileRenamed.String())
	assert.Equal(t, "unknown", ports.FileOperation(42).String())
}
