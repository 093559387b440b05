package dirstat

import (
	"sync"
	"time"
)

// DirectoryStats holds the aggregate totals of a directory tree.
//
// The root directory itself is never counted. A timed out computation is
// reported with TimedOut set and every counter zeroed.
type DirectoryStats struct {
	// Size is the cumulative size in bytes of all regular files.
	Size uint64 `json:"size" yaml:"size"`
	// FileCount is the number of regular files at all depths.
	FileCount uint64 `json:"file_count" yaml:"file_count"`
	// FolderCount is the number of subdirectories at all depths.
	FolderCount uint64 `json:"folder_count" yaml:"folder_count"`
	// TimedOut reports that the computation hit its deadline.
	TimedOut bool `json:"timed_out" yaml:"timed_out"`
}

// TimedOutStats is the result reported for a computation that ran past its deadline.
func TimedOutStats() DirectoryStats {
	return DirectoryStats{TimedOut: true}
}

func (s DirectoryStats) plus(o DirectoryStats) DirectoryStats {
	return DirectoryStats{
		Size:        s.Size + o.Size,
		FileCount:   s.FileCount + o.FileCount,
		FolderCount: s.FolderCount + o.FolderCount,
	}
}

// Report is the outcome of an explicit calculation.
type Report struct {
	// Path is the analyzed directory.
	Path string `json:"path" yaml:"path"`
	// Stats holds the aggregated totals.
	Stats DirectoryStats `json:"stats" yaml:"stats"`
	// ErrorCount is the number of entries that could not be read.
	ErrorCount int64 `json:"error_count" yaml:"error_count"`
	// Elapsed is the total time taken for analysis.
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Options configures an explicit calculation.
type Options struct {
	// Path is the directory to analyze.
	Path string
	// Excludes contains regex patterns to exclude.
	Excludes []string
	// ProgressInterval controls progress callback cadence.
	ProgressInterval time.Duration
}

// collector aggregates totals from concurrent fastwalk callbacks using a mutex.
type collector struct {
	mu          sync.Mutex // Protect concurrent access
	totalBytes  uint64
	fileCount   uint64
	folderCount uint64
	errorCount  int64
}

// addError increments the error counter.
func (c *collector) addError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorCount++
}

// addFile records a regular file of the given size.
func (c *collector) addFile(size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fileCount++
	if size > 0 {
		c.totalBytes += uint64(size)
	}
}

// addFolder records a subdirectory.
func (c *collector) addFolder() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.folderCount++
}

// progress returns the running file count and byte total.
func (c *collector) progress() (uint64, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fileCount, c.totalBytes
}

// finalize produces the Report from the collected data.
func (c *collector) finalize(path string) *Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	return &Report{
		Path: path,
		Stats: DirectoryStats{
			Size:        c.totalBytes,
			FileCount:   c.fileCount,
			FolderCount: c.folderCount,
		},
		ErrorCount: c.errorCount,
	}
}
