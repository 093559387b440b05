// Package watch turns filesystem events under a root directory into
// "path changed" notifications.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charlievieth/fastwalk"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Notifier receives the paths whose cached information is outdated.
type Notifier interface {
	PathChanged(path string)
}

// Watcher watches every directory below a root.
//
// An event for a path P notifies P and every ancestor of P up to the root,
// since the recursive statistics of an ancestor change without its own
// modification time changing. Directories created later are watched too.
// Failures are logged and never stop the watcher.
type Watcher struct {
	root   string
	fsw    *fsnotify.Watcher
	target Notifier
	log    *zap.Logger
}

// New creates a Watcher for root and registers the whole tree.
func New(root string, target Notifier, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", root, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("accessing %q: %w", root, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("watching %q: not a directory", root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	w := &Watcher{root: root, fsw: fsw, target: target, log: log}

	w.addTree(root)

	log.Debug("watching tree", zap.String("root", root), zap.Int("directories", w.Len()))

	return w, nil
}

// addTree adds a watch for dir and each directory below it.
func (w *Watcher) addTree(dir string) {
	conf := &fastwalk.Config{Follow: false}

	//nolint:varnamelen // d is standard for DirEntry
	err := fastwalk.Walk(conf, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.log.Debug("error accessing path", zap.String("path", path), zap.Error(err))

			return nil
		}

		if !d.IsDir() {
			return nil
		}

		if err := w.fsw.Add(path); err != nil {
			w.log.Debug("cannot watch directory", zap.String("path", path), zap.Error(err))
		}

		return nil
	})
	if err != nil {
		w.log.Warn("walking tree", zap.String("root", dir), zap.Error(err))
	}
}

// Run delivers notifications until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}

			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}

			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// Events were lost; everything below the root may be stale.
				w.log.Warn("event queue overflow", zap.Error(err))
				w.target.PathChanged(w.root)

				continue
			}

			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)

	w.log.Debug("filesystem event", zap.String("path", path), zap.Stringer("op", ev.Op))

	if ev.Has(fsnotify.Create) {
		if info, err := os.Lstat(path); err == nil && info.IsDir() {
			w.addTree(path)
		}
	}

	for _, p := range ancestors(path, w.root) {
		w.target.PathChanged(p)
	}
}

// ancestors returns path followed by its parents up to and including root.
// A path outside root yields only itself.
func ancestors(path, root string) []string {
	out := []string{path}

	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return out
	}

	for p := filepath.Dir(path); ; p = filepath.Dir(p) {
		out = append(out, p)

		if p == root || p == filepath.Dir(p) {
			return out
		}
	}
}

// Root returns the absolute root of the watched tree.
func (w *Watcher) Root() string {
	return w.root
}

// Len returns the number of watched directories.
func (w *Watcher) Len() int {
	return len(w.fsw.WatchList())
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
