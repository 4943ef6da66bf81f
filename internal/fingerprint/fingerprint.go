// Package fingerprint implements the per-address composite-fingerprint
// stability detector: §4.5 of the spec.
package fingerprint

import (
	"time"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/hit"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/ttlstore"
)

const (
	ttl             = 24 * time.Hour
	cleanupInterval = 10 * time.Minute
	rateWindow      = 5 * time.Minute
	maxTimestamps   = 1000
	keyPrefix       = `fp:`
)

// History is the per-address fingerprint-stability state.
type History struct {
	seen             map[string]struct{}
	observationCount int
	timestamps       []time.Time // oldest-first, insertion order
}

func newHistory() interface{} {
	return &History{seen: make(map[string]struct{})}
}

// Result is the per-hit outcome handed back to the edge enricher.
type Result struct {
	SuspiciousVariation bool
	HighVolume          bool
	ExtremeVolume       bool
	HighRate            bool
	UniqueCount         int
	ObservationCount    int
	Recent5mCount       int
}

// Tracker is thread-safe and owns exactly one TTL store of Histories.
type Tracker struct {
	store *ttlstore.Store
}

func New() *Tracker {
	return &Tracker{store: ttlstore.New(ttl, cleanupInterval)}
}

// RecordAndCheck composes the composite fingerprint, records it against
// addr's history, and returns the resulting stability signals.
func (t *Tracker) RecordAndCheck(addr, canvasHash, webglHash, audioHash string) Result {
	composite := hit.CompositeFingerprint(canvasHash, webglHash, audioHash)
	now := time.Now().UTC()

	var res Result
	t.store.Update(keyPrefix+addr, ttl, newHistory, func(v interface{}) {
		h := v.(*History)

		_, alreadySeen := h.seen[composite]
		firstObservation := h.observationCount == 0
		stable := firstObservation || alreadySeen
		_ = stable // stability itself isn't stamped; variation/volume/rate are

		h.seen[composite] = struct{}{}
		h.observationCount++

		// prune first so the window reflects only recent activity
		cutoff := now.Add(-rateWindow)
		i := 0
		for i < len(h.timestamps) && h.timestamps[i].Before(cutoff) {
			i++
		}
		if i > 0 {
			h.timestamps = append(h.timestamps[:0], h.timestamps[i:]...)
		}
		// observationCount always increments above; the timestamp list
		// itself stops growing once it hits the cap rather than sliding.
		if len(h.timestamps) < maxTimestamps {
			h.timestamps = append(h.timestamps, now)
		}

		res = Result{
			UniqueCount:      len(h.seen),
			ObservationCount: h.observationCount,
			Recent5mCount:    len(h.timestamps),
		}
		res.SuspiciousVariation = res.UniqueCount > 2 && res.ObservationCount > 3
		res.HighVolume = res.ObservationCount > 50
		res.ExtremeVolume = res.ObservationCount > 200
		res.HighRate = res.Recent5mCount > 20
	})
	return res
}
