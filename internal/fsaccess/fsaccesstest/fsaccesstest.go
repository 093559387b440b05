// Package fsaccesstest provides accessor fakes for tests.
package fsaccesstest

import (
	"errors"
	"fmt"
	"io"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/idelchi/dirhover/internal/fsaccess"
)

// Faulty decorates an Accessor with injectable stat failures and latency.
type Faulty struct {
	fsaccess.Accessor

	// Delay is slept before every Stat and ListEntries call.
	Delay time.Duration

	mu       sync.Mutex
	failing  map[string]struct{}
	listings atomic.Int64
}

// Wrap returns a Faulty around acc.
func Wrap(acc fsaccess.Accessor) *Faulty {
	return &Faulty{Accessor: acc, failing: make(map[string]struct{})}
}

// FailStat makes every subsequent Stat of p fail, as a permission error would.
func (f *Faulty) FailStat(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failing[p] = struct{}{}
}

// Stat implements fsaccess.Accessor.
func (f *Faulty) Stat(p string) (fsaccess.Info, bool) {
	time.Sleep(f.Delay)

	f.mu.Lock()
	_, fail := f.failing[p]
	f.mu.Unlock()

	if fail {
		return fsaccess.Info{}, false
	}

	return f.Accessor.Stat(p)
}

// ListEntries implements fsaccess.Accessor.
func (f *Faulty) ListEntries(p string) []fsaccess.Entry {
	f.listings.Add(1)
	time.Sleep(f.Delay)

	return f.Accessor.ListEntries(p)
}

// Open implements fsaccess.Opener when the wrapped accessor does.
func (f *Faulty) Open(p string) (io.ReadCloser, error) {
	opener, ok := f.Accessor.(fsaccess.Opener)
	if !ok {
		return nil, fmt.Errorf("opening %q: %w", p, errors.ErrUnsupported)
	}

	return opener.Open(p)
}

// Listings returns how many directories have been listed so far.
func (f *Faulty) Listings() int64 {
	return f.listings.Load()
}

// MemTree builds an in-memory filesystem. Keys of files are slash paths and
// values their sizes in bytes; dirs are created empty.
func MemTree(tb testing.TB, files map[string]int, dirs ...string) afero.Fs {
	tb.Helper()

	mem := afero.NewMemMapFs()

	for _, d := range dirs {
		if err := mem.MkdirAll(d, 0o755); err != nil {
			tb.Fatalf("creating directory %q: %v", d, err)
		}
	}

	for p, size := range files {
		if err := mem.MkdirAll(path.Dir(p), 0o755); err != nil {
			tb.Fatalf("creating directory for %q: %v", p, err)
		}

		if err := afero.WriteFile(mem, p, make([]byte, size), 0o644); err != nil {
			tb.Fatalf("writing %q: %v", p, err)
		}
	}

	return mem
}
