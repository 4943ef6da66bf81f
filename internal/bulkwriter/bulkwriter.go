// Package bulkwriter implements BulkWriter (§4.11): a single consumer
// goroutine draining enriched hits in batches into the raw hit table via
// a SQL Server bulk copy, with an optional bbolt-backed dead-letter queue
// for batches the bulk insert rejects.
package bulkwriter

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	mssql "github.com/microsoft/go-mssqldb"
	bolt "go.etcd.io/bbolt"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/galog"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/hit"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/stats"
)

const rawHitTable = "raw_hit"

// columnOrder is the single declared ordinal mapping every bulk insert
// must follow (§6 relational store, write side).
var columnOrder = []string{
	"CompanyId", "PixelId", "Address", "RequestPath", "QueryString",
	"HeadersJson", "UserAgent", "Referrer", "ReceivedAt",
}

const defaultBatchSize = 100
const shutdownDrainDeadline = 5 * time.Second

type Writer struct {
	lg       *galog.Logger
	db       *sql.DB
	batch    int
	in       chan hit.Hit
	st       *stats.Forge
	deadLetter *deadLetterQueue

	stop chan struct{}
	done chan struct{}
}

// Config wires the writer's dependencies. DeadLetterPath is optional;
// when empty, failed batches are simply logged and dropped.
type Config struct {
	Log            *galog.Logger
	DB             *sql.DB
	BatchSize      int
	QueueCapacity  int
	DeadLetterPath string
	Stats          *stats.Forge
}

func New(cfg Config) (*Writer, error) {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	queueCap := cfg.QueueCapacity
	if queueCap <= 0 {
		queueCap = batch * 10
	}
	w := &Writer{
		lg:    cfg.Log,
		db:    cfg.DB,
		batch: batch,
		in:    make(chan hit.Hit, queueCap),
		st:    cfg.Stats,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	if cfg.DeadLetterPath != "" {
		dlq, err := newDeadLetterQueue(cfg.DeadLetterPath)
		if err != nil {
			return nil, fmt.Errorf("bulkwriter: open dead-letter store: %w", err)
		}
		w.deadLetter = dlq
	}
	go w.run()
	return w, nil
}

// Enqueue adds h to the writer's input queue, used by the forge worker
// pool once ForgeEnricher has finished with a hit. It blocks only if the
// queue is saturated, which the queue capacity is sized to avoid under
// normal load.
func (w *Writer) Enqueue(h hit.Hit) {
	select {
	case w.in <- h:
	case <-w.stop:
	}
}

func (w *Writer) run() {
	defer close(w.done)
	buf := make([]hit.Hit, 0, w.batch)
	for {
		select {
		case <-w.stop:
			w.drainOnShutdown(buf)
			return
		case h := <-w.in:
			buf = append(buf, h)
			buf = w.drainBuffered(buf)
			if len(buf) >= w.batch {
				w.writeBatch(buf)
				buf = buf[:0]
			}
		}
	}
}

// drainBuffered synchronously pulls any items already waiting on the
// channel, up to the batch size, without blocking.
func (w *Writer) drainBuffered(buf []hit.Hit) []hit.Hit {
	for len(buf) < w.batch {
		select {
		case h := <-w.in:
			buf = append(buf, h)
		default:
			return buf
		}
	}
	return buf
}

func (w *Writer) writeBatch(batch []hit.Hit) {
	if len(batch) == 0 {
		return
	}
	if err := w.bulkInsert(batch); err != nil {
		w.lg.Error("bulk insert batch failed", galog.KV("batchSize", len(batch)), galog.KVErr(err))
		if w.st != nil {
			w.st.IncBatchFailed()
		}
		if w.deadLetter != nil {
			if dlqErr := w.deadLetter.Store(batch); dlqErr != nil {
				w.lg.Error("dead-letter store failed, batch lost", galog.KVErr(dlqErr))
			}
		}
		return
	}
	if w.st != nil {
		w.st.IncBatchWritten(len(batch))
	}
}

func (w *Writer) bulkInsert(batch []hit.Hit) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	txn, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := txn.PrepareContext(ctx, mssql.CopyIn(rawHitTable, mssql.BulkOptions{}, columnOrder...))
	if err != nil {
		_ = txn.Rollback()
		return err
	}
	for _, h := range batch {
		if _, err := stmt.ExecContext(ctx,
			h.CompanyID, h.PiXLID, h.IPAddress, h.RequestPath, h.QueryString,
			h.HeadersJson, h.UserAgent, h.Referer, h.ReceivedAt,
		); err != nil {
			_ = txn.Rollback()
			return err
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = txn.Rollback()
		return err
	}
	if err := stmt.Close(); err != nil {
		_ = txn.Rollback()
		return err
	}
	return txn.Commit()
}

func (w *Writer) drainOnShutdown(buf []hit.Hit) {
	deadline := time.Now().Add(shutdownDrainDeadline)
	for time.Now().Before(deadline) {
		select {
		case h := <-w.in:
			buf = append(buf, h)
			if len(buf) >= w.batch {
				w.writeBatch(buf)
				buf = buf[:0]
			}
		default:
			if len(buf) > 0 {
				w.writeBatch(buf)
				buf = buf[:0]
			}
			if len(w.in) == 0 {
				return
			}
		}
	}
	remaining := len(buf) + len(w.in)
	if remaining > 0 {
		w.lg.Warn("bulkwriter shutdown deadline exceeded, items unflushed", galog.KV("count", remaining))
	}
	if w.deadLetter != nil {
		_ = w.deadLetter.Close()
	}
}

func (w *Writer) Stop() {
	close(w.stop)
	<-w.done
}

// deadLetterQueue persists batches that failed a bulk insert into a
// bbolt file, keyed by insertion timestamp, for later manual replay.
type deadLetterQueue struct {
	db *bolt.DB
}

var deadLetterBucket = []byte("failed_batches")

func newDeadLetterQueue(path string) (*deadLetterQueue, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(deadLetterBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &deadLetterQueue{db: db}, nil
}

func (d *deadLetterQueue) Store(batch []hit.Hit) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(deadLetterBucket)
		key := []byte(time.Now().UTC().Format(time.RFC3339Nano))
		val, err := encodeBatch(batch)
		if err != nil {
			return err
		}
		return b.Put(key, val)
	})
}

func (d *deadLetterQueue) Close() error {
	return d.db.Close()
}
