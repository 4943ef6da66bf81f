// Package stats holds the atomic counters each process keeps; their
// snapshots are logged at shutdown.
package stats

import "sync/atomic"

// Edge counts request-path outcomes. All fields are accessed only via
// atomic ops; the struct itself is never locked.
type Edge struct {
	HitsReceived   int64
	HitsEnqueued   int64
	HitsDropped    int64
	FailoverBytes  int64
	FailoverLines  int64
	ReconnectCount int64
}

func (e *Edge) IncReceived()            { atomic.AddInt64(&e.HitsReceived, 1) }
func (e *Edge) IncEnqueued()            { atomic.AddInt64(&e.HitsEnqueued, 1) }
func (e *Edge) IncDropped()             { atomic.AddInt64(&e.HitsDropped, 1) }
func (e *Edge) AddFailoverBytes(n int)  { atomic.AddInt64(&e.FailoverBytes, int64(n)) }
func (e *Edge) IncFailoverLines()       { atomic.AddInt64(&e.FailoverLines, 1) }
func (e *Edge) IncReconnect()           { atomic.AddInt64(&e.ReconnectCount, 1) }

func (e *Edge) Snapshot() Edge {
	return Edge{
		HitsReceived:   atomic.LoadInt64(&e.HitsReceived),
		HitsEnqueued:   atomic.LoadInt64(&e.HitsEnqueued),
		HitsDropped:    atomic.LoadInt64(&e.HitsDropped),
		FailoverBytes:  atomic.LoadInt64(&e.FailoverBytes),
		FailoverLines:  atomic.LoadInt64(&e.FailoverLines),
		ReconnectCount: atomic.LoadInt64(&e.ReconnectCount),
	}
}

// Forge counts enrichment/write-path outcomes.
type Forge struct {
	HitsConsumed        int64
	MalformedLines       int64
	CatchupFilesReplayed int64
	BatchesWritten       int64
	BatchesFailed        int64
	RowsWritten          int64
	OnlineGeoCalls       int64
	OnlineGeoRateLimited int64
}

func (f *Forge) IncConsumed()              { atomic.AddInt64(&f.HitsConsumed, 1) }
func (f *Forge) IncMalformed()             { atomic.AddInt64(&f.MalformedLines, 1) }
func (f *Forge) IncCatchupFile()           { atomic.AddInt64(&f.CatchupFilesReplayed, 1) }
func (f *Forge) IncBatchWritten(rows int)  { atomic.AddInt64(&f.BatchesWritten, 1); atomic.AddInt64(&f.RowsWritten, int64(rows)) }
func (f *Forge) IncBatchFailed()           { atomic.AddInt64(&f.BatchesFailed, 1) }
func (f *Forge) IncOnlineGeoCall()         { atomic.AddInt64(&f.OnlineGeoCalls, 1) }
func (f *Forge) IncOnlineGeoRateLimited()  { atomic.AddInt64(&f.OnlineGeoRateLimited, 1) }

func (f *Forge) Snapshot() Forge {
	return Forge{
		HitsConsumed:         atomic.LoadInt64(&f.HitsConsumed),
		MalformedLines:       atomic.LoadInt64(&f.MalformedLines),
		CatchupFilesReplayed: atomic.LoadInt64(&f.CatchupFilesReplayed),
		BatchesWritten:       atomic.LoadInt64(&f.BatchesWritten),
		BatchesFailed:        atomic.LoadInt64(&f.BatchesFailed),
		RowsWritten:          atomic.LoadInt64(&f.RowsWritten),
		OnlineGeoCalls:       atomic.LoadInt64(&f.OnlineGeoCalls),
		OnlineGeoRateLimited: atomic.LoadInt64(&f.OnlineGeoRateLimited),
	}
}
