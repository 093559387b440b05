package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idelchi/dirhover/internal/dirstat"
)

var (
	t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Second)
)

func TestGet_MatchingMtime(t *testing.T) {
	c := New(nil)
	stats := dirstat.DirectoryStats{Size: 600, FileCount: 3, FolderCount: 1}

	c.Put("/a", stats, t0)

	got, ok := c.Get("/a", t0)
	require.True(t, ok)
	assert.Equal(t, stats, got)

	// repeated reads keep hitting
	_, ok = c.Get("/a", t0)
	assert.True(t, ok)
}

func TestGet_DifferentMtimeDropsEntry(t *testing.T) {
	c := New(nil)
	c.Put("/a", dirstat.DirectoryStats{Size: 1}, t0)

	_, ok := c.Get("/a", t1)
	assert.False(t, ok)
	assert.Zero(t, c.Len())

	// the entry is gone even for the original mtime
	_, ok = c.Get("/a", t0)
	assert.False(t, ok)
}

func TestGet_MonotonicClockReadingIgnored(t *testing.T) {
	c := New(nil)
	now := time.Now()

	c.Put("/a", dirstat.DirectoryStats{Size: 1}, now)

	_, ok := c.Get("/a", now.Round(0))
	assert.True(t, ok)
}

func TestPut_Overwrites(t *testing.T) {
	c := New(nil)
	c.Put("/a", dirstat.DirectoryStats{Size: 1}, t0)
	c.Put("/a", dirstat.TimedOutStats(), t1)

	got, ok := c.Get("/a", t1)
	require.True(t, ok)
	assert.True(t, got.TimedOut)
	assert.Equal(t, 1, c.Len())
}

func TestKeysAreCleaned(t *testing.T) {
	c := New(nil)
	c.Put("/a/b/../c/", dirstat.DirectoryStats{Size: 9}, t0)

	_, ok := c.Get("/a/c", t0)
	assert.True(t, ok)
}

func TestInvalidateOne(t *testing.T) {
	c := New(nil)
	c.Put("/a", dirstat.DirectoryStats{}, t0)
	c.Put("/b", dirstat.DirectoryStats{}, t0)

	c.InvalidateOne("/a")
	c.InvalidateOne("/missing")

	_, ok := c.Get("/a", t0)
	assert.False(t, ok)

	_, ok = c.Get("/b", t0)
	assert.True(t, ok)
}

func TestInvalidateAll(t *testing.T) {
	c := New(nil)
	for i := 0; i < 10; i++ {
		c.Put(fmt.Sprintf("/d%d", i), dirstat.DirectoryStats{}, t0)
	}

	c.InvalidateAll()

	assert.Zero(t, c.Len())
}

func TestConcurrentAccess(t *testing.T) {
	c := New(nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			p := fmt.Sprintf("/d%d", i%4)
			c.Put(p, dirstat.DirectoryStats{Size: uint64(i)}, t0)
			c.Get(p, t0)
			if i%8 == 0 {
				c.InvalidateOne(p)
			}
		}(i)
	}

	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 4)
}
