package coordinator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idelchi/dirhover/internal/dirstat"
	"github.com/idelchi/dirhover/internal/fsaccess"
	"github.com/idelchi/dirhover/internal/fsaccess/fsaccesstest"
)

// gatedCalc blocks every calculation until release is closed or ctx is done.
type gatedCalc struct {
	release chan struct{}
	calls   atomic.Int64
	stats   dirstat.DirectoryStats
	err     error
}

func newGatedCalc() *gatedCalc {
	return &gatedCalc{release: make(chan struct{})}
}

func (g *gatedCalc) Calculate(ctx context.Context, _ string) (dirstat.DirectoryStats, error) {
	g.calls.Add(1)

	select {
	case <-g.release:
		return g.stats, g.err
	case <-ctx.Done():
		return dirstat.DirectoryStats{}, dirstat.ErrAborted
	}
}

var mtime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func pollEventually(t *testing.T, c *Coordinator, path string) Result {
	t.Helper()

	var res Result

	require.Eventually(t, func() bool {
		var ok bool
		res, ok = c.PollResult(path)

		return ok
	}, 2*time.Second, 5*time.Millisecond)

	return res
}

func TestStartOrJoin_SecondCallerJoins(t *testing.T) {
	calc := newGatedCalc()
	c := New(calc, Options{Timeout: time.Minute})
	defer c.Close()

	assert.Equal(t, Started, c.StartOrJoin("/a", mtime))
	assert.Equal(t, AlreadyInProgress, c.StartOrJoin("/a", mtime))
	assert.Equal(t, AlreadyInProgress, c.StartOrJoin("/a/", mtime))
	assert.True(t, c.InProgress("/a"))

	close(calc.release)
	c.Wait()

	assert.Equal(t, int64(1), calc.calls.Load())
}

func TestStartOrJoin_ConcurrentCallersOneTraversal(t *testing.T) {
	calc := newGatedCalc()
	c := New(calc, Options{Timeout: time.Minute})
	defer c.Close()

	var (
		wg      sync.WaitGroup
		started atomic.Int64
	)

	for n := 0; n < 64; n++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if c.StartOrJoin("/same", mtime) == Started {
				started.Add(1)
			}
		}()
	}

	wg.Wait()
	close(calc.release)
	c.Wait()

	assert.Equal(t, int64(1), started.Load())
	assert.Equal(t, int64(1), calc.calls.Load())
}

func TestPollResult_ConsumeOnce(t *testing.T) {
	calc := newGatedCalc()
	calc.stats = dirstat.DirectoryStats{Size: 600, FileCount: 3, FolderCount: 1}

	c := New(calc, Options{Timeout: time.Minute})
	defer c.Close()

	require.Equal(t, Started, c.StartOrJoin("/a", mtime))

	_, ok := c.PollResult("/a")
	assert.False(t, ok, "no result while pending")

	close(calc.release)

	res := pollEventually(t, c, "/a")
	assert.Equal(t, calc.stats, res.Stats)
	assert.True(t, res.Mtime.Equal(mtime))

	_, ok = c.PollResult("/a")
	assert.False(t, ok, "result must be delivered once")
	assert.False(t, c.InProgress("/a"))
}

func TestTimeout_ReportsZeroedTimedOutStats(t *testing.T) {
	mem := fsaccesstest.MemTree(t, map[string]int{
		"/root/a/1": 10,
		"/root/b/2": 20,
	})
	acc := fsaccesstest.Wrap(fsaccess.New(mem, nil))
	acc.Delay = 100 * time.Millisecond

	c := New(dirstat.NewEngine(acc, nil), Options{Timeout: time.Millisecond})
	defer c.Close()

	require.Equal(t, Started, c.StartOrJoin("/root", mtime))

	res := pollEventually(t, c, "/root")
	assert.Equal(t, dirstat.DirectoryStats{TimedOut: true}, res.Stats)

	_, ok := c.PollResult("/root")
	assert.False(t, ok)
}

func TestTimeout_WinsOverLateSuccess(t *testing.T) {
	calc := calcFunc(func(ctx context.Context, _ string) (dirstat.DirectoryStats, error) {
		<-ctx.Done()

		// ignores cancellation and reports a partial count
		return dirstat.DirectoryStats{FileCount: 7}, nil
	})

	c := New(calc, Options{Timeout: 5 * time.Millisecond})
	defer c.Close()

	c.StartOrJoin("/x", mtime)

	res := pollEventually(t, c, "/x")
	assert.Equal(t, dirstat.TimedOutStats(), res.Stats)
}

func TestFailure_ClearsStateForRetry(t *testing.T) {
	calc := newGatedCalc()
	calc.err = dirstat.ErrRootUnavailable
	close(calc.release)

	settled := make(chan string, 1)
	c := New(calc, Options{Timeout: time.Minute, OnSettled: func(p string) { settled <- p }})
	defer c.Close()

	require.Equal(t, Started, c.StartOrJoin("/gone", mtime))

	select {
	case p := <-settled:
		assert.Equal(t, "/gone", p)
	case <-time.After(2 * time.Second):
		t.Fatal("computation never settled")
	}

	_, ok := c.PollResult("/gone")
	assert.False(t, ok)
	assert.Equal(t, Started, c.StartOrJoin("/gone", mtime))
}

func TestCancelAll(t *testing.T) {
	calc := newGatedCalc()

	var settled atomic.Int64
	c := New(calc, Options{Timeout: time.Minute, OnSettled: func(string) { settled.Add(1) }})

	c.StartOrJoin("/a", mtime)
	c.StartOrJoin("/b", mtime)

	c.CancelAll()
	c.Wait()

	assert.False(t, c.InProgress("/a"))
	assert.False(t, c.InProgress("/b"))

	_, ok := c.PollResult("/a")
	assert.False(t, ok)
	assert.Zero(t, settled.Load(), "cancelled computations do not settle")

	// a fresh computation can start right away
	close(calc.release)
	assert.Equal(t, Started, c.StartOrJoin("/a", mtime))
	pollEventually(t, c, "/a")
	c.Close()
}

func TestSetTimeout(t *testing.T) {
	calc := newGatedCalc()
	c := New(calc, Options{Timeout: time.Minute})
	defer c.Close()

	c.SetTimeout(time.Millisecond)
	c.StartOrJoin("/a", mtime)

	res := pollEventually(t, c, "/a")
	assert.True(t, res.Stats.TimedOut)
}

type calcFunc func(ctx context.Context, path string) (dirstat.DirectoryStats, error)

func (f calcFunc) Calculate(ctx context.Context, path string) (dirstat.DirectoryStats, error) {
	return f(ctx, path)
}
