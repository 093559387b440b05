// Package fsaccess provides the filesystem view consumed by the statistics engine.
//
// Stat and ListEntries never return errors to their callers: a failed stat yields
// (Info{}, false) and a failed listing yields an empty slice. Failures are
// only reported through the debug logger.
package fsaccess

import (
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// EntryType tags a directory entry as reported by the listing.
type EntryType uint8

const (
	// TypeOther covers symlinks, devices, sockets, pipes and anything unknown.
	TypeOther EntryType = iota
	// TypeFile is a regular file.
	TypeFile
	// TypeDir is a directory.
	TypeDir
)

// String returns a short name for the entry type.
func (t EntryType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDir:
		return "dir"
	default:
		return "other"
	}
}

// Entry is a single child returned by ListEntries.
type Entry struct {
	// Name is the base name of the entry.
	Name string
	// Type is the entry type as seen without following symlinks.
	Type EntryType
}

// Info holds the metadata of a stat'd path.
type Info struct {
	// Size is the size in bytes.
	Size uint64
	// ModTime is the last modification time.
	ModTime time.Time
	// IsDir reports whether the path is a directory.
	IsDir bool
	// IsFile reports whether the path is a regular file.
	IsFile bool
}

// Accessor is the narrow filesystem contract of the statistics engine.
type Accessor interface {
	// Stat returns metadata for path, following symlinks.
	Stat(path string) (Info, bool)
	// ListEntries returns the typed children of path in listing order.
	ListEntries(path string) []Entry
}

// Opener is implemented by accessors that can read file contents.
type Opener interface {
	// Open opens path for reading.
	Open(path string) (io.ReadCloser, error)
}

// FS implements Accessor on top of an afero filesystem.
type FS struct {
	fs  afero.Fs
	log *zap.Logger
}

// New wraps fsys. A nil logger disables diagnostics.
func New(fsys afero.Fs, log *zap.Logger) *FS {
	if log == nil {
		log = zap.NewNop()
	}

	return &FS{fs: fsys, log: log}
}

// NewOS returns an accessor for the host filesystem.
func NewOS(log *zap.Logger) *FS {
	return New(afero.NewOsFs(), log)
}

// Stat implements Accessor.
func (a *FS) Stat(path string) (Info, bool) {
	fi, err := a.fs.Stat(path)
	if err != nil {
		a.log.Debug("stat failed", zap.String("path", path), zap.Error(err))

		return Info{}, false
	}

	return infoOf(fi), true
}

// ListEntries implements Accessor.
func (a *FS) ListEntries(path string) []Entry {
	infos, err := afero.ReadDir(a.fs, path)
	if err != nil {
		a.log.Debug("listing failed", zap.String("path", path), zap.Error(err))

		return []Entry{}
	}

	entries := make([]Entry, 0, len(infos))
	for _, fi := range infos {
		entries = append(entries, Entry{Name: fi.Name(), Type: typeOf(fi.Mode())})
	}

	return entries
}

// Open implements Opener.
func (a *FS) Open(path string) (io.ReadCloser, error) {
	f, err := a.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", path, err)
	}

	return f, nil
}

// Host reports whether a reads the host filesystem.
func (a *FS) Host() bool {
	_, ok := a.fs.(*afero.OsFs)

	return ok
}

func typeOf(mode fs.FileMode) EntryType {
	switch {
	case mode.IsRegular():
		return TypeFile
	case mode.IsDir():
		return TypeDir
	default:
		return TypeOther
	}
}

func infoOf(fi fs.FileInfo) Info {
	size := fi.Size()
	if size < 0 {
		size = 0
	}

	return Info{
		Size:    uint64(size),
		ModTime: fi.ModTime(),
		IsDir:   fi.IsDir(),
		IsFile:  fi.Mode().IsRegular(),
	}
}
