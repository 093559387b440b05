package dirstat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/idelchi/dirhover/internal/fsaccess"
)

var (
	// ErrAborted is returned when a computation observes a cancelled context.
	// It wraps the context's cause, so errors.Is(err, context.DeadlineExceeded)
	// tells a timeout apart from an explicit cancellation.
	ErrAborted = errors.New("calculation aborted")

	// ErrRootUnavailable is returned by Calculate and Run when the queried path
	// cannot be stat'd or is not a directory.
	ErrRootUnavailable = errors.New("root path unavailable")
)

// Engine computes DirectoryStats by walking a tree one entry at a time.
//
// Children are visited sequentially in listing order. The context is checked
// before a directory is listed and before each of its children, so a
// cancelled computation unwinds after at most one entry per level. A single
// slow filesystem call can still delay the abort.
type Engine struct {
	fs  fsaccess.Accessor
	log *zap.Logger
}

// NewEngine creates an Engine reading through acc. A nil logger disables diagnostics.
func NewEngine(acc fsaccess.Accessor, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}

	return &Engine{fs: acc, log: log}
}

// Calculate verifies that path is a readable directory and computes its stats.
func (e *Engine) Calculate(ctx context.Context, path string) (DirectoryStats, error) {
	info, ok := e.fs.Stat(path)
	if !ok {
		return DirectoryStats{}, fmt.Errorf("%w: stat %q failed", ErrRootUnavailable, path)
	}

	if !info.IsDir {
		return DirectoryStats{}, fmt.Errorf("%w: %q is not a directory", ErrRootUnavailable, path)
	}

	return e.Compute(ctx, path)
}

// Compute recursively aggregates the stats of path.
//
// Child access failures are skipped and contribute nothing. A regular file is
// counted only when its stat succeeds. Symlinks and special files are ignored.
// An unreadable path yields zeroed stats and no error. The only error returned
// is ErrAborted, in which case the returned stats are zero.
func (e *Engine) Compute(ctx context.Context, path string) (DirectoryStats, error) {
	if err := aborted(ctx); err != nil {
		return DirectoryStats{}, err
	}

	var total DirectoryStats

	for _, entry := range e.fs.ListEntries(path) {
		if err := aborted(ctx); err != nil {
			return DirectoryStats{}, err
		}

		child := filepath.Join(path, entry.Name)

		switch entry.Type {
		case fsaccess.TypeDir:
			total.FolderCount++

			sub, err := e.Compute(ctx, child)
			if err != nil {
				return DirectoryStats{}, err
			}

			total = total.plus(sub)
		case fsaccess.TypeFile:
			info, ok := e.fs.Stat(child)
			if !ok {
				e.log.Debug("skipping unreadable file", zap.String("path", child))

				continue
			}

			total.FileCount++
			total.Size += info.Size
		case fsaccess.TypeOther:
			// symlinks and special files are neither counted nor followed
		}
	}

	return total, nil
}

// DirectChildren counts the immediate files and folders of path without recursing.
func (e *Engine) DirectChildren(path string) (files, folders uint64) {
	for _, entry := range e.fs.ListEntries(path) {
		switch entry.Type {
		case fsaccess.TypeFile:
			files++
		case fsaccess.TypeDir:
			folders++
		case fsaccess.TypeOther:
		}
	}

	return files, folders
}

// aborted returns a wrapped ErrAborted once ctx is done.
func aborted(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}

	return fmt.Errorf("%w: %w", ErrAborted, context.Cause(ctx))
}
