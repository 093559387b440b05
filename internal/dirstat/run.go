package dirstat

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"
)

// DefaultProgressInterval is the default interval for progress updates.
const DefaultProgressInterval = 500 * time.Millisecond

// shouldExcludeByPattern checks if path matches any exclusion regex.
func shouldExcludeByPattern(path string, patterns []*regexp.Regexp) *regexp.Regexp {
	if len(patterns) == 0 {
		return nil
	}

	fPath := filepath.ToSlash(path)

	for _, re := range patterns {
		if re.MatchString(fPath) {
			return re
		}
	}

	return nil
}

// startProgressReporter invokes hook(files, bytes) on each tick until ctx is done.
//
//nolint:varnamelen // c is idiomatic for collector
func startProgressReporter(ctx context.Context, c *collector, hook func(uint64, uint64), interval time.Duration) {
	if hook == nil {
		return
	}

	if interval <= 0 {
		interval = DefaultProgressInterval
	}

	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				hook(c.progress())
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Run performs an explicit, unbounded calculation of opt.Path.
//
// The tree is walked in parallel with fastwalk without following symlinks.
// Counting matches Engine: regular files contribute their size, every
// subdirectory below the root counts as a folder, everything else is
// ignored. Entries matching opt.Excludes are skipped (directories together
// with their contents).
//
// The walk stops with ErrAborted when ctx is cancelled. Progress updates are
// sent to progressHook if provided.
//
//nolint:gocognit,funlen // Walk callback keeps filtering and counting together.
func Run(ctx context.Context, opt Options, log *zap.Logger, progressHook func(files, bytes uint64)) (*Report, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if opt.Path == "" {
		opt.Path = "."
	}

	// Normalize to native format to handle both C:/Path and C:\Path inputs
	opt.Path = filepath.Clean(opt.Path)

	// validate path exists and is accessible
	if statInfo, err := os.Stat(opt.Path); err != nil {
		return nil, fmt.Errorf("%w: accessing path %q: %w", ErrRootUnavailable, opt.Path, err)
	} else if !statInfo.IsDir() {
		return nil, fmt.Errorf("%w: path %q is not a directory", ErrRootUnavailable, opt.Path)
	}

	excludeRegexes := make([]*regexp.Regexp, 0, len(opt.Excludes))

	for _, p := range opt.Excludes {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling exclusion pattern %q: %w", p, err)
		}

		excludeRegexes = append(excludeRegexes, re)
	}

	for _, re := range excludeRegexes {
		log.Debug("exclude regex", zap.String("pattern", re.String()))
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrAborted, context.Cause(ctx))
	}

	collector := &collector{}

	// Create child context to ensure progress reporter cleanup
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	startProgressReporter(ctx, collector, progressHook, opt.ProgressInterval)

	start := time.Now()

	conf := &fastwalk.Config{
		Follow: false, // Don't follow symlinks
	}

	//nolint:varnamelen // d is standard for DirEntry
	walkErr := fastwalk.Walk(conf, opt.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Debug("error accessing path", zap.String("path", path), zap.Error(err))
			collector.addError()

			return nil // Silently skip errors
		}

		// Check cancellation periodically
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if filepath.Clean(path) == opt.Path {
			return nil
		}

		if matchedPattern := shouldExcludeByPattern(path, excludeRegexes); matchedPattern != nil {
			log.Debug("excluding path",
				zap.String("path", filepath.ToSlash(path)),
				zap.String("pattern", matchedPattern.String()))

			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if d.IsDir() {
			collector.addFolder()

			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		fileInfo, err := d.Info()
		if err != nil {
			collector.addError()

			return nil //nolint:nilerr // Intentionally skip errors during walk
		}

		collector.addFile(fileInfo.Size())

		return nil
	})
	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrAborted, walkErr)
		}

		return nil, fmt.Errorf("walking %q: %w", opt.Path, walkErr)
	}

	report := collector.finalize(opt.Path)
	report.Elapsed = time.Since(start)

	return report, nil
}
