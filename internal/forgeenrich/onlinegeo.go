package forgeenrich

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/galog"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/hit"
)

// OnlineGeoStore persists known-address freshness and lookup results so
// the "known addresses" set can be rebuilt at startup without re-querying
// the upstream provider for everything.
type OnlineGeoStore interface {
	LoadKnown(ctx context.Context) (map[string]time.Time, error)
	Save(ctx context.Context, addr string, rec hit.GeoRecord, at time.Time) error
}

type onlineGeoRecord = hit.GeoRecord

// onlineGeo issues at most one HTTP call per address per maxStale window,
// rate-limited to protect the upstream provider.
type onlineGeo struct {
	lg       *galog.Logger
	url      string
	store    OnlineGeoStore
	limiter  *rate.Limiter
	maxStale time.Duration
	client   *http.Client
	group    singleflight.Group

	mu    sync.Mutex
	known map[string]time.Time
	cache map[string]hit.GeoRecord
}

func newOnlineGeo(lg *galog.Logger, url string, maxPerMinute, maxStaleDays int, store OnlineGeoStore) *onlineGeo {
	if maxPerMinute <= 0 {
		maxPerMinute = 30
	}
	if maxStaleDays <= 0 {
		maxStaleDays = 90
	}
	o := &onlineGeo{
		lg:       lg,
		url:      url,
		store:    store,
		limiter:  rate.NewLimiter(rate.Limit(float64(maxPerMinute)/60.0), 1),
		maxStale: time.Duration(maxStaleDays) * 24 * time.Hour,
		client:   &http.Client{Timeout: 5 * time.Second},
		known:    make(map[string]time.Time),
		cache:    make(map[string]hit.GeoRecord),
	}
	if store != nil {
		if m, err := store.LoadKnown(context.Background()); err == nil {
			o.known = m
		} else if lg != nil {
			lg.Warn("online geo known-address preload failed", galog.KVErr(err))
		}
	}
	return o
}

// Lookup returns a cached result immediately if fresh; otherwise it
// issues (or joins an in-flight) rate-limited HTTP call and returns
// whatever was cached before the call (possibly not-found).
func (o *onlineGeo) Lookup(addr string) (hit.GeoRecord, bool) {
	if o.url == "" {
		return hit.GeoRecord{}, false
	}
	o.mu.Lock()
	last, known := o.known[addr]
	cached, haveCached := o.cache[addr]
	o.mu.Unlock()

	fresh := known && time.Since(last) < o.maxStale
	if fresh {
		return cached, haveCached
	}

	if !o.limiter.Allow() {
		return cached, haveCached
	}

	go func() {
		_, _, _ = o.group.Do(addr, func() (interface{}, error) {
			rec, err := o.fetch(addr)
			if err != nil {
				if o.lg != nil {
					o.lg.Warn("online geo fetch failed", galog.KV("addr", addr), galog.KVErr(err))
				}
				return nil, nil
			}
			now := time.Now()
			o.mu.Lock()
			o.known[addr] = now
			o.cache[addr] = rec
			o.mu.Unlock()
			if o.store != nil {
				_ = o.store.Save(context.Background(), addr, rec, now)
			}
			return nil, nil
		})
	}()
	return cached, haveCached
}

func (o *onlineGeo) fetch(addr string) (hit.GeoRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url+addr, nil)
	if err != nil {
		return hit.GeoRecord{}, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return hit.GeoRecord{}, err
	}
	defer resp.Body.Close()

	var body struct {
		CountryCode string `json:"countryCode"`
		ISP         string `json:"isp"`
		Org         string `json:"org"`
		Proxy       bool   `json:"proxy"`
		Mobile      bool   `json:"mobile"`
		AS          string `json:"as"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return hit.GeoRecord{}, err
	}
	return hit.GeoRecord{
		CountryCode: body.CountryCode,
		ISP:         body.ISP,
		Org:         body.Org,
		Proxy:       body.Proxy,
		Mobile:      body.Mobile,
	}, nil
}
