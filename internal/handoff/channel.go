package handoff

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/galog"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/hit"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/stats"
)

type connState int32

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
	stateDraining
)

func (s connState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateConnected:
		return "connected"
	case stateDraining:
		return "draining"
	default:
		return "disconnected"
	}
}

// Dialer opens the stream connection to forge. On platforms with Windows
// IPC this dials a named pipe; elsewhere a Unix domain socket is
// appropriate. The default dialer below handles the Unix socket case.
type Dialer func(ctx context.Context) (net.Conn, error)

// UnixDialer returns a Dialer that connects to a Unix domain socket at
// path, which is what EndpointName resolves to on non-Windows builds.
func UnixDialer(path string) Dialer {
	var d net.Dialer
	return func(ctx context.Context) (net.Conn, error) {
		return d.DialContext(ctx, "unix", path)
	}
}

const (
	backoffInitial = time.Second
	backoffMax     = 30 * time.Second
)

// Channel is the edge-side HandoffChannel: a bounded, drop-oldest, single
// writer queue with stream-or-failover delivery.
type Channel struct {
	lg       *galog.Logger
	dial     Dialer
	failover *failoverWriter
	st       *stats.Edge

	mu       sync.Mutex
	queue    []hit.Hit
	capacity int
	draining bool
	notify   chan struct{}

	stateMu sync.Mutex
	state   connState
	conn    net.Conn

	stop chan struct{}
	done chan struct{}
}

func NewChannel(lg *galog.Logger, capacity int, dial Dialer, failoverDir string, st *stats.Edge) *Channel {
	if capacity <= 0 {
		capacity = 10000
	}
	c := &Channel{
		lg:       lg,
		dial:     dial,
		capacity: capacity,
		notify:   make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		st:       st,
	}
	c.failover = newFailoverWriter(failoverDir, lg, func(n int) {
		if st != nil {
			st.AddFailoverBytes(n)
			st.IncFailoverLines()
		}
	})
	go c.run()
	return c
}

// Enqueue adds h to the bounded queue, dropping the oldest entry if full.
// It never blocks. Returns false if the channel is draining (shutting
// down) and the item was rejected outright.
func (c *Channel) Enqueue(h hit.Hit) bool {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return false
	}
	if len(c.queue) >= c.capacity {
		c.queue = c.queue[1:]
		if c.st != nil {
			c.st.IncDropped()
		}
	}
	c.queue = append(c.queue, h)
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
	return true
}

func (c *Channel) setState(s connState) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

func (c *Channel) State() string {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state.String()
}

// run is the single writer goroutine: it owns the connection state
// machine and drains the queue as fast as the stream (or failover)
// accepts it.
func (c *Channel) run() {
	defer close(c.done)
	backoff := backoffInitial
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			c.drainOnShutdown()
			return
		case <-c.notify:
		case <-ticker.C:
		}

		item, ok := c.pop()
		if !ok {
			continue
		}
		if !c.send(item) {
			c.failoverOne(item)
			c.reconnectWithBackoff(&backoff)
			continue
		}
		backoff = backoffInitial
	}
}

func (c *Channel) pop() (hit.Hit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return hit.Hit{}, false
	}
	h := c.queue[0]
	c.queue = c.queue[1:]
	return h, true
}

func (c *Channel) send(h hit.Hit) bool {
	c.stateMu.Lock()
	conn := c.conn
	c.stateMu.Unlock()

	if conn == nil {
		if !c.connect() {
			return false
		}
		c.stateMu.Lock()
		conn = c.conn
		c.stateMu.Unlock()
	}
	if err := encodeLine(conn, h); err != nil {
		c.lg.Warn("handoff stream write failed, entering failover", galog.KVErr(err))
		c.closeConn()
		return false
	}
	return true
}

func (c *Channel) connect() bool {
	c.setState(stateConnecting)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(stateDisconnected)
		return false
	}
	c.stateMu.Lock()
	c.conn = conn
	c.stateMu.Unlock()
	c.setState(stateConnected)
	if c.st != nil {
		c.st.IncReconnect()
	}
	return true
}

func (c *Channel) closeConn() {
	c.stateMu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.stateMu.Unlock()
	c.setState(stateDisconnected)
}

func (c *Channel) failoverOne(h hit.Hit) {
	if err := c.failover.Write(h); err != nil {
		c.lg.Error("failover write failed, hit lost", galog.KVErr(err))
	}
}

func (c *Channel) reconnectWithBackoff(backoff *time.Duration) {
	select {
	case <-c.stop:
	case <-time.After(*backoff):
	}
	*backoff *= 2
	if *backoff > backoffMax {
		*backoff = backoffMax
	}
}

// drainOnShutdown finishes pending items via the stream if connected, then
// spills whatever remains to failover within a bounded deadline.
func (c *Channel) drainOnShutdown() {
	c.mu.Lock()
	c.draining = true
	c.mu.Unlock()
	c.setState(stateDraining)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		item, ok := c.pop()
		if !ok {
			break
		}
		if !c.send(item) {
			c.failoverOne(item)
		}
	}
	c.mu.Lock()
	remaining := len(c.queue)
	c.queue = nil
	c.mu.Unlock()
	if remaining > 0 {
		c.lg.Warn("handoff shutdown deadline exceeded, dropping queued hits", galog.KV("count", remaining))
	}
	c.closeConn()
	_ = c.failover.Close()
}

// Stop signals the writer goroutine to drain and exit, blocking until it
// has finished (bounded by the internal drain deadline).
func (c *Channel) Stop() {
	close(c.stop)
	<-c.done
}
