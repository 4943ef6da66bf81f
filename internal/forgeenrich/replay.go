package forgeenrich

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

const replayCacheSize = 50000

// replayDetector quantizes a raw mouse-path string to a coarse grid and
// time bucket, hashes it, and flags when the same hashed path is seen
// from a different fingerprint than the one that produced it first.
type replayDetector struct {
	mu    sync.Mutex
	cache *lru.Cache[uint64, string] // hash -> originating fingerprint
}

func newReplayDetector() *replayDetector {
	c, _ := lru.New[uint64, string](replayCacheSize)
	return &replayDetector{cache: c}
}

type replayResult struct {
	Detected    bool
	MatchFp     string
}

func (r *replayDetector) Check(mousePath, fingerprint string) replayResult {
	if mousePath == "" || r.cache == nil {
		return replayResult{}
	}
	quantized := quantizeMousePath(mousePath)
	h := xxhash.Sum64String(quantized)

	r.mu.Lock()
	defer r.mu.Unlock()

	if prevFp, ok := r.cache.Get(h); ok {
		if prevFp != fingerprint {
			return replayResult{Detected: true, MatchFp: prevFp}
		}
		return replayResult{}
	}
	r.cache.Add(h, fingerprint)
	return replayResult{}
}

// quantizeMousePath expects a semicolon-separated list of "x,y,tMs"
// samples and rounds each to a 10-pixel grid and 100ms time bucket, so
// near-identical replays collide even with jitter.
func quantizeMousePath(path string) string {
	const gridPx = 10
	const bucketMs = 100

	var b strings.Builder
	for _, sample := range strings.Split(path, ";") {
		parts := strings.Split(sample, ",")
		if len(parts) != 3 {
			continue
		}
		x, errX := strconv.Atoi(parts[0])
		y, errY := strconv.Atoi(parts[1])
		t, errT := strconv.Atoi(parts[2])
		if errX != nil || errY != nil || errT != nil {
			continue
		}
		fmt.Fprintf(&b, "%d:%d:%d|", (x/gridPx)*gridPx, (y/gridPx)*gridPx, (t/bucketMs)*bucketMs)
	}
	return b.String()
}
