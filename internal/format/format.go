// Package format renders decoration strings from raw statistics.
//
// Templates use {placeholder} syntax; only placeholders with a value are
// replaced, unknown ones are left as written.
package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/idelchi/dirhover/internal/dirstat"
)

// Placeholder names understood by Render.
const (
	KeyName               = "name"
	KeySize               = "size"
	KeyRawSize            = "rawSize"
	KeyFileCount          = "fileCount"
	KeyFolderCount        = "folderCount"
	KeyModifiedTime       = "modifiedTime"
	KeyMaxCalculationTime = "maxCalculationTime"
	KeyEstimate           = "estimate"
	KeyResolution         = "resolution"
	KeyWidth              = "width"
	KeyHeight             = "height"
	KeyFolderName         = "folderName"
	KeyTotalSize          = "totalSize"
)

// Base1024 selects binary (KiB, MiB) size units. Any other base uses SI units.
const Base1024 = 1024

// Vars maps placeholder names to their rendered values.
type Vars map[string]string

// Formatter turns sizes, dates and stats into display strings.
type Formatter struct {
	base       int
	dateFormat string
	loc        *time.Location
}

// New creates a Formatter. dateFormat accepts the tokens YYYY, MM, DD, HH, mm and ss.
func New(base int, dateFormat string) *Formatter {
	return &Formatter{base: base, dateFormat: dateFormat, loc: time.Local}
}

// In returns a copy of f that renders dates in loc.
func (f *Formatter) In(loc *time.Location) *Formatter {
	clone := *f
	clone.loc = loc

	return &clone
}

// Size formats a byte count, e.g. "1.5 MB" or "1.4 MiB".
func (f *Formatter) Size(bytes uint64) string {
	if f.base == Base1024 {
		return humanize.IBytes(bytes)
	}

	return humanize.Bytes(bytes)
}

// Date formats t with the configured date format.
func (f *Formatter) Date(t time.Time) string {
	t = t.In(f.loc)

	return strings.NewReplacer(
		"YYYY", fmt.Sprintf("%04d", t.Year()),
		"MM", fmt.Sprintf("%02d", int(t.Month())),
		"DD", fmt.Sprintf("%02d", t.Day()),
		"HH", fmt.Sprintf("%02d", t.Hour()),
		"mm", fmt.Sprintf("%02d", t.Minute()),
		"ss", fmt.Sprintf("%02d", t.Second()),
	).Replace(f.dateFormat)
}

// Render substitutes vars into template.
func Render(template string, vars Vars) string {
	pairs := make([]string, 0, 2*len(vars))
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}

	return strings.NewReplacer(pairs...).Replace(template)
}

// FileVars returns the variables of a regular file.
func (f *Formatter) FileVars(name string, size uint64, mtime time.Time) Vars {
	return Vars{
		KeyName:         name,
		KeySize:         f.Size(size),
		KeyRawSize:      strconv.FormatUint(size, 10),
		KeyModifiedTime: f.Date(mtime),
	}
}

// FolderVars returns the variables of a directory with computed stats.
func (f *Formatter) FolderVars(name string, stats dirstat.DirectoryStats, mtime time.Time) Vars {
	return Vars{
		KeyName:         name,
		KeySize:         f.Size(stats.Size),
		KeyRawSize:      strconv.FormatUint(stats.Size, 10),
		KeyFileCount:    strconv.FormatUint(stats.FileCount, 10),
		KeyFolderCount:  strconv.FormatUint(stats.FolderCount, 10),
		KeyModifiedTime: f.Date(mtime),
	}
}

// CalculatingVars returns the variables of a directory whose stats are pending.
func (f *Formatter) CalculatingVars(name string, mtime time.Time, estimate string) Vars {
	return Vars{
		KeyName:         name,
		KeyModifiedTime: f.Date(mtime),
		KeyEstimate:     estimate,
	}
}

// TimeoutVars returns the variables of a directory whose computation timed out.
func (f *Formatter) TimeoutVars(name string, mtime time.Time, limit time.Duration) Vars {
	return Vars{
		KeyName:               name,
		KeyModifiedTime:       f.Date(mtime),
		KeyMaxCalculationTime: strconv.FormatInt(limit.Milliseconds(), 10),
	}
}

// WithImage adds the pixel dimensions of an image to vars. {resolution} is
// rendered from resolutionTemplate, which may use {width} and {height}.
func WithImage(vars Vars, resolutionTemplate string, width, height int) Vars {
	vars[KeyWidth] = strconv.Itoa(width)
	vars[KeyHeight] = strconv.Itoa(height)
	vars[KeyResolution] = Render(resolutionTemplate, Vars{
		KeyWidth:  vars[KeyWidth],
		KeyHeight: vars[KeyHeight],
	})

	return vars
}

// WithoutImage blanks the image placeholders of an image whose header
// could not be read.
func WithoutImage(vars Vars) Vars {
	vars[KeyWidth] = ""
	vars[KeyHeight] = ""
	vars[KeyResolution] = ""

	return vars
}

// ReportVars returns the variables of an explicit calculation result.
func (f *Formatter) ReportVars(folderName string, stats dirstat.DirectoryStats, mtime time.Time) Vars {
	return Vars{
		KeyFolderName:   folderName,
		KeyTotalSize:    f.Size(stats.Size),
		KeyFileCount:    strconv.FormatUint(stats.FileCount, 10),
		KeyFolderCount:  strconv.FormatUint(stats.FolderCount, 10),
		KeyModifiedTime: f.Date(mtime),
	}
}

// Estimate describes the immediate children counted while a directory is calculated.
func Estimate(files, folders uint64) string {
	return fmt.Sprintf("%d+ files, %d+ folders", files, folders)
}
