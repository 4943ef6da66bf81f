package forgeenrich

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/hit"
)

const sessionIdleCutoff = 30 * time.Minute

type sessionEntry struct {
	mu         sync.Mutex
	id         string
	firstSeen  time.Time
	lastSeen   time.Time
	hitCount   int
	pages      map[string]struct{}
}

// sessionStore stitches hits into sessions keyed by composite
// fingerprint. Each entry is guarded by its own lock so unrelated
// fingerprints never contend.
type sessionStore struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry
}

func newSessionStore() *sessionStore {
	return &sessionStore{entries: make(map[string]*sessionEntry)}
}

func (s *sessionStore) entryFor(key string) *sessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		e = &sessionEntry{pages: make(map[string]struct{})}
		s.entries[key] = e
	}
	return e
}

type sessionResult struct {
	SessionID   string
	HitNum      int
	DurationSec int64
	PageCount   int
}

func (s *sessionStore) Record(fingerprint, path string, now time.Time) sessionResult {
	e := s.entryFor(fingerprint)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.id == "" || now.Sub(e.lastSeen) > sessionIdleCutoff {
		e.id = uuid.NewString()
		e.firstSeen = now
		e.hitCount = 0
		e.pages = make(map[string]struct{})
	}
	e.lastSeen = now
	e.hitCount++
	if path != "" {
		e.pages[path] = struct{}{}
	}

	return sessionResult{
		SessionID:   e.id,
		HitNum:      e.hitCount,
		DurationSec: int64(now.Sub(e.firstSeen).Seconds()),
		PageCount:   len(e.pages),
	}
}

func stampSession(h *hit.Hit, r sessionResult) {
	h.AppendServerParam(hit.SrvSessionID, r.SessionID)
	h.AppendServerParam(hit.SrvSessionHitNum, itoa(r.HitNum))
	h.AppendServerParam(hit.SrvSessionDurationSec, itoa64(r.DurationSec))
	h.AppendServerParam(hit.SrvSessionPageCount, itoa(r.PageCount))
}
