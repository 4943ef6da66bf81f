package handoff

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/galog"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/hit"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/stats"
)

const (
	defaultMaxConns  = 4
	catchupInterval  = 60 * time.Second
	archiveSubdir    = "archive"
)

// Receiver is the forge-side HandoffReceiver: it accepts concurrent
// stream connections and runs a parallel failover catch-up scanner.
type Receiver struct {
	lg          *galog.Logger
	listener    net.Listener
	maxConns    int
	onHit       func(hit.Hit)
	failoverDir string
	st          *stats.Forge

	stop chan struct{}
	done chan struct{}
}

func NewReceiver(lg *galog.Logger, ln net.Listener, maxConns int, failoverDir string, onHit func(hit.Hit), st *stats.Forge) *Receiver {
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	return &Receiver{
		lg:          lg,
		listener:    ln,
		maxConns:    maxConns,
		onHit:       onHit,
		failoverDir: failoverDir,
		st:          st,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Run accepts connections until Stop is called, and concurrently runs the
// failover catch-up scanner. It blocks until both loops exit.
func (r *Receiver) Run() {
	sem := make(chan struct{}, r.maxConns)
	acceptDone := make(chan struct{})

	go func() {
		defer close(acceptDone)
		for {
			conn, err := r.listener.Accept()
			if err != nil {
				select {
				case <-r.stop:
					return
				default:
				}
				r.lg.Warn("handoff listener accept failed", galog.KVErr(err))
				// brief pause so a persistent accept error doesn't spin
				select {
				case <-r.stop:
					return
				case <-time.After(time.Second):
				}
				continue
			}
			select {
			case sem <- struct{}{}:
				go func() {
					defer func() { <-sem }()
					r.serveConn(conn)
				}()
			default:
				// at the concurrency cap; politely refuse rather than queue
				// unbounded goroutines
				_ = conn.Close()
			}
		}
	}()

	go r.catchupLoop()

	<-r.stop
	_ = r.listener.Close()
	<-acceptDone
	close(r.done)
}

func (r *Receiver) serveConn(conn net.Conn) {
	defer conn.Close()
	err := decodeLines(conn, func(h hit.Hit) {
		if r.st != nil {
			r.st.IncConsumed()
		}
		r.onHit(h)
	}, func(line []byte, derr error) {
		if r.st != nil {
			r.st.IncMalformed()
		}
		r.lg.Warn("malformed handoff line, skipping", galog.KVErr(derr))
	})
	if err != nil {
		r.lg.Warn("handoff connection read error", galog.KVErr(err))
	}
}

// catchupLoop scans the failover directory every 60s, replays complete
// files that are not today's (still being written by an edge), and moves
// each replayed file to an archive subdirectory.
func (r *Receiver) catchupLoop() {
	t := time.NewTicker(catchupInterval)
	defer t.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-t.C:
			r.scanOnce()
		}
	}
}

func (r *Receiver) scanOnce() {
	if r.failoverDir == "" {
		return
	}
	entries, err := os.ReadDir(r.failoverDir)
	if err != nil {
		if !os.IsNotExist(err) {
			r.lg.Warn("failover catch-up scan failed", galog.KVErr(err))
		}
		return
	}
	today := dayString(time.Now())
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "failover_") || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		if strings.Contains(e.Name(), today) {
			continue // still being written by an edge
		}
		r.replayFile(filepath.Join(r.failoverDir, e.Name()))
	}
}

func (r *Receiver) replayFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		r.lg.Warn("failover catch-up open failed", galog.KV("path", path), galog.KVErr(err))
		return
	}
	derr := decodeLines(f, func(h hit.Hit) {
		if r.st != nil {
			r.st.IncConsumed()
		}
		r.onHit(h)
	}, func(line []byte, lerr error) {
		if r.st != nil {
			r.st.IncMalformed()
		}
		r.lg.Warn("malformed failover line, skipping", galog.KVErr(lerr))
	})
	_ = f.Close()
	if derr != nil {
		r.lg.Warn("failover catch-up read error, will retry next scan", galog.KV("path", path), galog.KVErr(derr))
		return
	}
	r.archive(path)
	if r.st != nil {
		r.st.IncCatchupFile()
	}
}

// archive moves a fully-replayed failover file into the archive
// subdirectory, gzip-compressing it in the process since catch-up files
// are kept around for audit rather than read again on the hot path.
func (r *Receiver) archive(path string) {
	dir := filepath.Join(filepath.Dir(path), archiveSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.lg.Warn("failover archive mkdir failed", galog.KVErr(err))
		return
	}
	dst := filepath.Join(dir, filepath.Base(path)+".gz")
	if err := gzipFile(path, dst); err != nil {
		r.lg.Warn("failover archive compress failed", galog.KV("path", path), galog.KVErr(err))
		return
	}
	if err := os.Remove(path); err != nil {
		r.lg.Warn("failover archive source cleanup failed", galog.KV("path", path), galog.KVErr(err))
	}
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := gzip.NewWriter(out)
	if _, err := io.Copy(zw, in); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

func (r *Receiver) Stop() {
	close(r.stop)
	<-r.done
}
