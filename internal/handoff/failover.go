package handoff

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/galog"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/hit"
)

// failoverWriter appends hits to a rolling daily JSONL file under dir,
// auto-flushing on every write. It has no queue of its own: Write runs
// synchronously on the caller's goroutine (the handoff channel's writer),
// so a slow disk delays that writer.
type failoverWriter struct {
	dir string
	lg  *galog.Logger

	mu      sync.Mutex
	day     string
	file    *os.File
	lock    *flock.Flock
	onBytes func(n int)
}

func newFailoverWriter(dir string, lg *galog.Logger, onBytes func(n int)) *failoverWriter {
	return &failoverWriter{dir: dir, lg: lg, onBytes: onBytes}
}

func (f *failoverWriter) path(day string) string {
	return filepath.Join(f.dir, "failover_"+day+".jsonl")
}

// rollIfNeeded opens (or reopens) today's file when the UTC day has
// changed since the last write, or on first use.
func (f *failoverWriter) rollIfNeeded(now time.Time) error {
	day := dayString(now)
	if f.file != nil && f.day == day {
		return nil
	}
	if f.file != nil {
		_ = f.file.Close()
	}
	if f.lock != nil {
		_ = f.lock.Unlock()
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return err
	}
	p := f.path(day)
	fh, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	lock := flock.New(p + ".lock")
	if err := lock.Lock(); err != nil {
		_ = fh.Close()
		return err
	}
	f.file = fh
	f.lock = lock
	f.day = day
	return nil
}

// Write appends h as one NDJSON line to the current day's failover file.
func (f *failoverWriter) Write(h hit.Hit) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	if err := f.rollIfNeeded(now); err != nil {
		return err
	}
	before := countingWriter{w: f.file}
	if err := encodeLine(&before, h); err != nil {
		return err
	}
	if err := f.file.Sync(); err != nil {
		return err
	}
	if f.onBytes != nil {
		f.onBytes(before.n)
	}
	return nil
}

func (f *failoverWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lock != nil {
		_ = f.lock.Unlock()
	}
	if f.file != nil {
		return f.file.Close()
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
