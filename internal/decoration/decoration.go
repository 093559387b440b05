// Package decoration answers "what should be shown for this path" requests.
//
// A Service combines the statistics engine, the computation coordinator and
// the decoration cache. Directory statistics are never computed on the
// calling goroutine: the first request starts a background computation and
// returns a calculating decoration, and a later request picks up the result.
// Paths whose decoration changed are announced on Refreshes.
package decoration

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/idelchi/dirhover/internal/cache"
	"github.com/idelchi/dirhover/internal/config"
	"github.com/idelchi/dirhover/internal/coordinator"
	"github.com/idelchi/dirhover/internal/dirstat"
	"github.com/idelchi/dirhover/internal/format"
	"github.com/idelchi/dirhover/internal/fsaccess"
	"github.com/idelchi/dirhover/internal/imagemeta"
	"github.com/idelchi/dirhover/internal/metrics"
)

// RefreshAll is sent on Refreshes when every decoration is outdated.
const RefreshAll = ""

const refreshBuffer = 256

// State classifies a decoration.
type State int

const (
	// StateFile is a regular file, or anything that is not a directory.
	StateFile State = iota
	// StateReady is a directory with computed statistics.
	StateReady
	// StateCalculating is a directory whose statistics are being computed.
	StateCalculating
	// StateTimedOut is a directory whose computation ran out of time.
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateFile:
		return "file"
	case StateReady:
		return "ready"
	case StateCalculating:
		return "calculating"
	case StateTimedOut:
		return "timed-out"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Decoration is the rendered information for one path.
type Decoration struct {
	Path    string                 `json:"path" yaml:"path"`
	Name    string                 `json:"name" yaml:"name"`
	State   State                  `json:"state" yaml:"state"`
	Info    fsaccess.Info          `json:"-" yaml:"-"`
	Stats   dirstat.DirectoryStats `json:"stats,omitzero" yaml:"stats,omitempty"`
	Tooltip string                 `json:"tooltip" yaml:"tooltip"`
	Large   bool                   `json:"large,omitempty" yaml:"large,omitempty"`
	// Image holds the pixel size of a readable image file.
	Image *imagemeta.Dimensions `json:"image,omitempty" yaml:"image,omitempty"`
}

// Options configures a Service.
type Options struct {
	// Accessor reads the filesystem. Nil uses the host filesystem.
	Accessor fsaccess.Accessor
	// Config is the initial configuration. Nil uses config.Default.
	Config *config.Config
	// Logger receives diagnostics. Nil disables logging.
	Logger *zap.Logger
	// Metrics records cache and computation activity. Nil disables metrics.
	Metrics metrics.Recorder
}

// Service renders decorations for files and directories.
//
// Safe for concurrent use.
type Service struct {
	acc    fsaccess.Accessor
	host   bool
	engine *dirstat.Engine
	cache  *cache.Cache
	coord  *coordinator.Coordinator
	log    *zap.Logger

	mu        sync.RWMutex
	cfg       *config.Config
	formatter *format.Formatter

	explicit  singleflight.Group
	refreshes chan string
}

// New creates a Service.
func New(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	if opts.Accessor == nil {
		opts.Accessor = fsaccess.NewOS(opts.Logger)
	}

	if opts.Config == nil {
		opts.Config = config.Default()
	}

	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop()
	}

	s := &Service{
		acc:       opts.Accessor,
		host:      readsHost(opts.Accessor),
		engine:    dirstat.NewEngine(opts.Accessor, opts.Logger),
		cache:     cache.New(opts.Metrics),
		log:       opts.Logger,
		cfg:       opts.Config,
		formatter: formatterFor(opts.Config),
		refreshes: make(chan string, refreshBuffer),
	}

	s.coord = coordinator.New(s.engine, coordinator.Options{
		Timeout:   opts.Config.MaxCalculationTime,
		Logger:    opts.Logger,
		Metrics:   opts.Metrics,
		OnSettled: s.notify,
	})

	return s
}

// readsHost reports whether acc sees the same filesystem as dirstat.Run.
func readsHost(acc fsaccess.Accessor) bool {
	h, ok := acc.(interface{ Host() bool })

	return ok && h.Host()
}

func formatterFor(cfg *config.Config) *format.Formatter {
	return format.New(cfg.FileSizeBase, cfg.DateTimeFormat)
}

func (s *Service) settings() (*config.Config, *format.Formatter) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cfg, s.formatter
}

// Decorate returns the decoration for path. It reports false when path
// cannot be stat'd.
//
// For a directory without cached statistics this starts (or joins) a
// background computation and returns a StateCalculating decoration; the path
// is sent on Refreshes once the result can be picked up.
func (s *Service) Decorate(path string) (Decoration, bool) {
	path = filepath.Clean(path)

	info, ok := s.acc.Stat(path)
	if !ok {
		return Decoration{}, false
	}

	cfg, f := s.settings()

	d := Decoration{Path: path, Name: filepath.Base(path), Info: info}

	if !info.IsDir {
		d.State = StateFile
		d.Large = info.Size >= uint64(cfg.LargeFileThreshold)

		tmpl := cfg.Templates.File
		if d.Large {
			tmpl = cfg.Templates.LargeFile
		}

		vars := f.FileVars(d.Name, info.Size, info.ModTime)

		if imagemeta.Supported(d.Name) {
			tmpl = cfg.Templates.ImageFile

			if dims, ok := s.imageDimensions(path); ok {
				d.Image = &dims
				vars = format.WithImage(vars, cfg.Templates.ImageResolution, dims.Width, dims.Height)
			} else {
				vars = format.WithoutImage(vars)
			}
		}

		d.Tooltip = format.Render(tmpl, vars)

		return d, true
	}

	if stats, ok := s.cache.Get(path, info.ModTime); ok {
		return s.folder(d, stats, cfg, f), true
	}

	if res, ok := s.coord.PollResult(path); ok {
		s.cache.Put(path, res.Stats, res.Mtime)

		return s.folder(d, res.Stats, cfg, f), true
	}

	if s.coord.StartOrJoin(path, info.ModTime) == coordinator.Started {
		s.log.Debug("calculating directory", zap.String("path", path))
	}

	files, folders := s.engine.DirectChildren(path)

	d.State = StateCalculating
	d.Tooltip = format.Render(cfg.Templates.FolderCalculating,
		f.CalculatingVars(d.Name, info.ModTime, format.Estimate(files, folders)))

	return d, true
}

// imageDimensions reads the header of the image at path.
func (s *Service) imageDimensions(path string) (imagemeta.Dimensions, bool) {
	opener, ok := s.acc.(fsaccess.Opener)
	if !ok {
		return imagemeta.Dimensions{}, false
	}

	r, err := opener.Open(path)
	if err != nil {
		s.log.Debug("cannot open image", zap.String("path", path), zap.Error(err))

		return imagemeta.Dimensions{}, false
	}
	defer r.Close()

	dims, err := imagemeta.Read(r)
	if err != nil {
		s.log.Debug("cannot read image header", zap.String("path", path), zap.Error(err))

		return imagemeta.Dimensions{}, false
	}

	return dims, true
}

func (s *Service) folder(d Decoration, stats dirstat.DirectoryStats, cfg *config.Config, f *format.Formatter) Decoration {
	d.Stats = stats

	if stats.TimedOut {
		d.State = StateTimedOut
		d.Tooltip = format.Render(cfg.Templates.FolderTimeout,
			f.TimeoutVars(d.Name, d.Info.ModTime, cfg.MaxCalculationTime))

		return d
	}

	d.State = StateReady
	d.Tooltip = format.Render(cfg.Templates.Folder, f.FolderVars(d.Name, stats, d.Info.ModTime))

	return d
}

// Refreshes returns the paths whose decoration should be requested again.
// RefreshAll means every path. Notifications are dropped while the channel
// is full.
func (s *Service) Refreshes() <-chan string {
	return s.refreshes
}

func (s *Service) notify(path string) {
	select {
	case s.refreshes <- path:
	default:
		s.log.Debug("refresh dropped", zap.String("path", path))
	}
}

// PathChanged forgets the cached statistics of path.
func (s *Service) PathChanged(path string) {
	path = filepath.Clean(path)

	s.cache.InvalidateOne(path)
	s.notify(path)
}

// ApplyConfig switches to cfg. Running computations are cancelled and all
// cached statistics are dropped, since sizes, templates and the deadline
// may all have changed.
func (s *Service) ApplyConfig(cfg *config.Config) {
	s.coord.CancelAll()
	s.cache.InvalidateAll()

	s.mu.Lock()
	s.cfg = cfg
	s.formatter = formatterFor(cfg)
	s.mu.Unlock()

	s.coord.SetTimeout(cfg.MaxCalculationTime)

	s.log.Debug("configuration applied", zap.Stringer("config", cfg))
	s.notify(RefreshAll)
}

// CalculateFolder computes the statistics of path without a deadline.
//
// The walk always reads the host filesystem. Concurrent calls for the same
// path share one walk, whose context and progress hook are the first
// caller's. When the service's accessor reads the host filesystem too, a
// successful result also resolves the path's decoration.
func (s *Service) CalculateFolder(
	ctx context.Context,
	path string,
	progressHook func(files, bytes uint64),
) (*dirstat.Report, error) {
	path = filepath.Clean(path)

	v, err, shared := s.explicit.Do(path, func() (any, error) {
		info, ok := s.acc.Stat(path)

		report, err := dirstat.Run(ctx, dirstat.Options{Path: path}, s.log, progressHook)
		if err != nil {
			return nil, err
		}

		if ok && s.host {
			s.cache.Put(path, report.Stats, info.ModTime)
			s.notify(path)
		}

		return report, nil
	})
	if err != nil {
		return nil, fmt.Errorf("calculating folder %q: %w", path, err)
	}

	if shared {
		s.log.Debug("calculation shared between callers", zap.String("path", path))
	}

	return v.(*dirstat.Report), nil //nolint:forcetypeassert // only *dirstat.Report is stored
}

// Formatter returns the formatter of the active configuration.
func (s *Service) Formatter() *format.Formatter {
	_, f := s.settings()

	return f
}

// CachedEntries returns the number of cached directory results.
func (s *Service) CachedEntries() int {
	return s.cache.Len()
}

// Close cancels all background computations and waits for them to exit.
func (s *Service) Close() {
	s.coord.Close()
}
