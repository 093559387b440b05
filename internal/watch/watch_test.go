package watch

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) PathChanged(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.paths = append(r.paths, path)
}

func (r *recorder) seen(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Contains(r.paths, path)
}

func start(t *testing.T, root string) (*Watcher, *recorder) {
	t.Helper()

	rec := &recorder{}

	w, err := New(root, rec, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = w.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		_ = w.Close()
	})

	return w, rec
}

func TestAncestors(t *testing.T) {
	root := filepath.FromSlash("/r")

	tests := []struct {
		name string
		path string
		want []string
	}{
		{"root itself", "/r", []string{"/r"}},
		{"child", "/r/a", []string{"/r/a", "/r"}},
		{"nested", "/r/a/b/c", []string{"/r/a/b/c", "/r/a/b", "/r/a", "/r"}},
		{"outside", "/other/x", []string{"/other/x"}},
		{"sibling prefix", "/rr/x", []string{"/rr/x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := make([]string, 0, len(tt.want))
			for _, p := range tt.want {
				want = append(want, filepath.FromSlash(p))
			}

			assert.Equal(t, want, ancestors(filepath.FromSlash(tt.path), root))
		})
	}
}

func TestNew_RejectsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := New(file, &recorder{}, nil)
	require.Error(t, err)

	_, err = New(filepath.Join(t.TempDir(), "absent"), &recorder{}, nil)
	require.Error(t, err)
}

func TestWatcher_NotifiesAncestors(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	w, rec := start(t, root)
	assert.Equal(t, 3, w.Len())

	file := filepath.Join(sub, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	for _, want := range []string{file, sub, filepath.Join(root, "a"), w.Root()} {
		require.Eventually(t, func() bool { return rec.seen(want) }, 5*time.Second, 10*time.Millisecond, want)
	}
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	w, rec := start(t, root)

	created := filepath.Join(root, "new")
	require.NoError(t, os.Mkdir(created, 0o755))

	require.Eventually(t, func() bool { return w.Len() == 2 }, 5*time.Second, 10*time.Millisecond)

	file := filepath.Join(created, "inner")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	require.Eventually(t, func() bool { return rec.seen(file) }, 5*time.Second, 10*time.Millisecond)
}
