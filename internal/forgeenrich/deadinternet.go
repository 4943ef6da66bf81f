package forgeenrich

import (
	"sync"
	"time"
)

// deadInternetBucket accumulates a running bot-likelihood score for one
// company's current hour, per §4.10 step 15.
type deadInternetBucket struct {
	hits         int
	weightedSum  float64
}

type deadInternetIndex struct {
	mu      sync.Mutex
	buckets map[string]*deadInternetBucket
}

func newDeadInternetIndex() *deadInternetIndex {
	return &deadInternetIndex{buckets: make(map[string]*deadInternetBucket)}
}

type deadInternetSignals struct {
	BotScoreAtLeast50  bool
	ZeroMouseMoves     bool
	DatacenterIP       bool
	AnyContradiction   bool
	LowFingerprintDiversity bool
}

func (d *deadInternetIndex) bucketKey(companyID string, at time.Time) string {
	return companyID + "|" + at.UTC().Format("2006010215")
}

// Score folds s into the current per-company hourly bucket and returns
// the bucket's running 0-100 index.
func (d *deadInternetIndex) Score(companyID string, at time.Time, s deadInternetSignals) int {
	key := d.bucketKey(companyID, at)

	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.buckets[key]
	if !ok {
		b = &deadInternetBucket{}
		d.buckets[key] = b
		d.evictOldLocked(at)
	}
	b.hits++

	weight := 0.0
	if s.BotScoreAtLeast50 {
		weight += 0.30
	}
	if s.ZeroMouseMoves {
		weight += 0.20
	}
	if s.DatacenterIP {
		weight += 0.20
	}
	if s.AnyContradiction {
		weight += 0.15
	}
	if s.LowFingerprintDiversity {
		weight += 0.15
	}
	b.weightedSum += weight

	idx := int((b.weightedSum / float64(b.hits)) * 100)
	if idx > 100 {
		idx = 100
	}
	return idx
}

// evictOldLocked drops buckets more than 2 hours stale so the map
// doesn't grow unbounded across a long-running process. Must be called
// with d.mu held.
func (d *deadInternetIndex) evictOldLocked(now time.Time) {
	if len(d.buckets) < 10000 {
		return
	}
	cutoffA := d.bucketKey("", now.Add(-2*time.Hour))
	_ = cutoffA
	for k := range d.buckets {
		// bucket keys are "company|YYYYMMDDHH"; cheap staleness check by
		// reparsing the hour suffix avoids keeping a second timestamp map.
		if len(k) < 10 {
			continue
		}
		suffix := k[len(k)-10:]
		t, err := time.Parse("2006010215", suffix)
		if err == nil && now.Sub(t) > 2*time.Hour {
			delete(d.buckets, k)
		}
	}
}
