package geocache

import (
	"context"
	"testing"
	"time"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/galog"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/hit"
)

func TestLookupMissTriggersAsyncRefillThenHits(t *testing.T) {
	lg := galog.NewDiscard()
	calls := make(chan string, 4)
	c := New(lg, func(ctx context.Context, addr string) (hit.GeoRecord, bool, error) {
		calls <- addr
		return hit.GeoRecord{Country: `Testland`, City: `Testville`}, true, nil
	})

	rec, found := c.Lookup(`203.0.113.50`)
	if found {
		t.Fatalf("expected first lookup to miss while refill is in flight, got %+v", rec)
	}

	select {
	case addr := <-calls:
		if addr != `203.0.113.50` {
			t.Fatalf("unexpected lookup addr %q", addr)
		}
	case <-time.After(time.Second):
		t.Fatal("async refill never called the store lookup")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if rec, found = c.Lookup(`203.0.113.50`); found {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !found || rec.City != `Testville` {
		t.Fatalf("expected cache to warm from refill, got %+v found=%v", rec, found)
	}
}

func TestNotFoundIsCachedNegatively(t *testing.T) {
	lg := galog.NewDiscard()
	var calls int
	c := New(lg, func(ctx context.Context, addr string) (hit.GeoRecord, bool, error) {
		calls++
		return hit.GeoRecord{}, false, nil
	})

	c.Lookup(`198.51.100.9`)
	time.Sleep(50 * time.Millisecond)
	_, found := c.Lookup(`198.51.100.9`)
	if found {
		t.Fatalf("a not-found record should stay not-found")
	}
	if calls == 0 {
		t.Fatalf("expected at least one store lookup attempt")
	}
	time.Sleep(50 * time.Millisecond)
	if calls != 1 {
		t.Fatalf("expected the cached not-found to suppress a second store lookup, got %d lookups", calls)
	}
}
