package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/idelchi/dirhover/internal/config"
	"github.com/idelchi/dirhover/internal/decoration"
	"github.com/idelchi/dirhover/internal/dirstat"
	"github.com/idelchi/dirhover/internal/fsaccess"
	"github.com/idelchi/dirhover/internal/metrics"
	"github.com/idelchi/dirhover/internal/watch"
)

// hoverGrace is added to max_calculation_time when waiting for a computation,
// which always settles by its own deadline.
const hoverGrace = time.Second

type hoverOptions struct {
	Paths  []string
	Output string
	NoWait bool
}

type calcOptions struct {
	Path             string
	Output           string
	Excludes         []string
	ProgressInterval time.Duration
	Debug            bool
}

type watchOptions struct {
	Root        string
	MetricsAddr string
	Interval    time.Duration
}

func runHover(ctx context.Context, out io.Writer, cfg *config.Config, log *zap.Logger, opts hoverOptions) error {
	svc := decoration.New(decoration.Options{Config: cfg, Logger: log})
	defer svc.Close()

	decorations := make([]decoration.Decoration, 0, len(opts.Paths))

	for _, p := range opts.Paths {
		d, err := resolve(ctx, svc, p, cfg.MaxCalculationTime+hoverGrace, !opts.NoWait)
		if err != nil {
			return err
		}

		decorations = append(decorations, d)
	}

	switch opts.Output {
	case "json":
		return PrintJSON(decorations, out)
	case "yaml":
		return PrintYAML(decorations, out)
	default:
		return PrintTooltips(decorations, out)
	}
}

// resolve decorates path, waiting up to limit for a running computation when wait is set.
func resolve(
	ctx context.Context,
	svc *decoration.Service,
	path string,
	limit time.Duration,
	wait bool,
) (decoration.Decoration, error) {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	for {
		d, ok := svc.Decorate(path)
		if !ok {
			return decoration.Decoration{}, fmt.Errorf("decorating %q: path cannot be accessed", path)
		}

		if !wait || d.State != decoration.StateCalculating {
			return d, nil
		}

		select {
		case <-ctx.Done():
			return d, nil
		case <-svc.Refreshes():
		}
	}
}

func runCalc(ctx context.Context, out io.Writer, cfg *config.Config, log *zap.Logger, opts calcOptions) error {
	enableProgress := opts.Output == "table" &&
		!opts.Debug &&
		isatty.IsTerminal(os.Stderr.Fd())

	var progressHook func(files, bytes uint64)

	if enableProgress {
		// Hide cursor for in-place updates; restore on exit.
		fmt.Fprint(os.Stderr, "\033[?25l")
		defer fmt.Fprint(os.Stderr, "\033[?25h")

		progressHook = func(files, bytes uint64) {
			msg := fmt.Sprintf("Scanning… %d files, %s", files, humanize.IBytes(bytes))
			fmt.Fprintf(os.Stderr, "\r\033[2K%s\r", msg)
		}
	}

	svc := decoration.New(decoration.Options{Config: cfg, Logger: log})
	defer svc.Close()

	var (
		report *dirstat.Report
		err    error
	)

	if len(opts.Excludes) > 0 {
		// Filtered totals are not comparable to decorations, so bypass the service.
		report, err = dirstat.Run(ctx, dirstat.Options{
			Path:             opts.Path,
			Excludes:         opts.Excludes,
			ProgressInterval: opts.ProgressInterval,
		}, log, progressHook)
	} else {
		report, err = svc.CalculateFolder(ctx, opts.Path, progressHook)
	}

	// Clear the status line
	if enableProgress {
		fmt.Fprint(os.Stderr, "\r\033[2K\r")
	}

	if err != nil {
		return err
	}

	switch opts.Output {
	case "json":
		return PrintJSON(report, out)
	case "yaml":
		return PrintYAML(report, out)
	case "text":
		var mtime time.Time
		if info, err := os.Stat(report.Path); err == nil {
			mtime = info.ModTime()
		}

		return PrintStatusBar(report, cfg.Templates.StatusBar, svc.Formatter(), mtime, out)
	default:
		return PrintTable(report, svc.Formatter(), out)
	}
}

//nolint:funlen // Wiring of watcher, config reload, metrics and rendering.
func runWatch(ctx context.Context, out io.Writer, global *globalOptions, opts watchOptions) error {
	cfg, log, err := global.load()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck // Nothing to do about a failed flush on exit

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return fmt.Errorf("resolving %q: %w", opts.Root, err)
	}

	rec := metrics.Noop()

	addr := opts.MetricsAddr
	if addr == "" && cfg.Metrics.Enabled {
		addr = cfg.Metrics.Address
	}

	if addr != "" {
		reg := prometheus.NewRegistry()
		rec = metrics.New(reg)

		stop, err := serveMetrics(addr, reg, log.Logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	acc := fsaccess.NewOS(log.Logger)

	svc := decoration.New(decoration.Options{Accessor: acc, Config: cfg, Logger: log.Logger, Metrics: rec})
	defer svc.Close()

	if _, err := config.Watch(global.configPath, log.Logger, func(next *config.Config) {
		global.override(next)

		if err := log.SetLevel(next.Logging.Level); err != nil {
			log.Warn("keeping log level", zap.Error(err))
		}

		svc.ApplyConfig(next)
	}); err != nil {
		return fmt.Errorf("watching config: %w", err)
	}

	watcher, err := watch.New(root, svc, log.Logger)
	if err != nil {
		return err
	}
	defer watcher.Close()

	go func() {
		if err := watcher.Run(ctx); err != nil {
			log.Warn("watcher stopped", zap.Error(err))
		}
	}()

	redraw := isatty.IsTerminal(os.Stdout.Fd())
	limiter := rate.NewLimiter(rate.Every(opts.Interval), 1)

	render := func() error {
		if redraw {
			fmt.Fprint(out, "\033[H\033[2J")
		}

		return PrintDecorations(snapshot(svc, acc, root), svc.Formatter(), out)
	}

	if err := render(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-svc.Refreshes():
		}

		if err := limiter.Wait(ctx); err != nil {
			return nil //nolint:nilerr // Cancelled while throttled
		}

		drain(svc.Refreshes())

		if err := render(); err != nil {
			return err
		}
	}
}

// snapshot decorates root followed by its direct children in listing order.
func snapshot(svc *decoration.Service, acc fsaccess.Accessor, root string) []decoration.Decoration {
	entries := acc.ListEntries(root)
	out := make([]decoration.Decoration, 0, len(entries)+1)

	if d, ok := svc.Decorate(root); ok {
		out = append(out, d)
	}

	for _, e := range entries {
		if e.Type == fsaccess.TypeOther {
			continue
		}

		if d, ok := svc.Decorate(filepath.Join(root, e.Name)); ok {
			out = append(out, d)
		}
	}

	return out
}

func drain(ch <-chan string) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// serveMetrics starts a /metrics endpoint and returns its shutdown function.
func serveMetrics(addr string, g prometheus.Gatherer, log *zap.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("serving metrics on %q: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(g))

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	log.Info("serving metrics", zap.String("address", ln.Addr().String()))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}, nil
}
