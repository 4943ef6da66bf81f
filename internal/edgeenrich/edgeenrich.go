// Package edgeenrich implements the EdgeEnricher orchestrator (§4.7) and
// the HTTP handlers that front it.
package edgeenrich

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/assets"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/behavior"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/capture"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/datacenter"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/fingerprint"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/galog"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/geocache"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/hit"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/ipclass"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/stats"
)

// Enqueuer is satisfied by the handoff channel; kept as a narrow local
// interface so this package doesn't need to import handoff's internals.
type Enqueuer interface {
	Enqueue(hit.Hit) bool
}

type Enricher struct {
	lg     *galog.Logger
	fp     *fingerprint.Tracker
	bh     *behavior.Tracker
	dc     *datacenter.Matcher
	geo    *geocache.Cache
	queue  Enqueuer
	stats  *stats.Edge
}

func New(lg *galog.Logger, fp *fingerprint.Tracker, bh *behavior.Tracker, dc *datacenter.Matcher, geo *geocache.Cache, queue Enqueuer, st *stats.Edge) *Enricher {
	return &Enricher{lg: lg, fp: fp, bh: bh, dc: dc, geo: geo, queue: queue, stats: st}
}

// Enrich runs the fixed-order detector pipeline against h and enqueues it.
// It returns false only when the queue rejected the hit because it is
// draining for shutdown; a drop-oldest overflow still returns true. A
// rejection is not an error the caller should surface to the client — the
// GIF is still returned per §4.7.
func (e *Enricher) Enrich(h *hit.Hit) bool {
	q := h.QueryValues()

	// 1. hit-type tag
	if capture.IsModernHit(q) {
		h.AppendServerParam(hit.SrvHitType, hit.HitTypeModern)
	} else {
		h.AppendServerParam(hit.SrvHitType, hit.HitTypeLegacy)
	}

	// 2. legacy referrer fallback
	capture.ApplyLegacyReferrerFallback(h, q)

	// 3. fingerprint tracker
	if e.fp != nil {
		res := e.fp.RecordAndCheck(h.IPAddress, q.Get("canvasFP"), q.Get("webglFP"), q.Get("audioFP"))
		h.AppendServerParam(hit.SrvFpObs, strconv.Itoa(res.ObservationCount))
		h.AppendServerParam(hit.SrvFpUniq, strconv.Itoa(res.UniqueCount))
		h.AppendServerParam(hit.SrvFpRate5m, strconv.Itoa(res.Recent5mCount))
		if res.SuspiciousVariation || res.ExtremeVolume || res.HighRate {
			h.AppendServerParam(hit.SrvFpAlert, "1")
		}
	}

	// 4. behavior tracker
	if e.bh != nil {
		res := e.bh.RecordAndCheck(h.IPAddress)
		if res.HasSubnet {
			h.AppendServerParam(hit.SrvSubnetIps, strconv.Itoa(res.SubnetIPs))
			h.AppendServerParam(hit.SrvSubnetHits, strconv.Itoa(res.SubnetHits))
			if res.SubnetVelocityAlert {
				h.AppendServerParam(hit.SrvSubnetAlert, "1")
			}
		}
		h.AppendServerParam(hit.SrvHitsIn15s, strconv.Itoa(res.HitsIn15s))
		h.AppendServerParam(hit.SrvLastGapMs, strconv.FormatInt(res.LastGapMs, 10))
		if res.RapidFireAlert {
			h.AppendServerParam(hit.SrvRapidFire, "1")
		}
		if res.SubSecondDupe {
			h.AppendServerParam(hit.SrvSubSecDupe, "1")
		}
	}

	// 5. datacenter matcher
	var ipType ipclass.Type
	if e.dc != nil {
		if matched, provider := e.dc.Check(h.IPAddress); matched {
			h.AppendServerParam(hit.SrvDatacenter, provider)
		}
	}

	// 6. ip classifier
	geolocatable := false
	{
		typ, gl, _ := ipclass.Classify(h.IPAddress)
		ipType = typ
		geolocatable = gl
		h.AppendServerParam(hit.SrvIPType, strconv.Itoa(int(ipType)))
	}

	// 7. geo cache (non-blocking)
	var geoRec hit.GeoRecord
	var haveGeo bool
	if e.geo != nil && geolocatable {
		if rec, found := e.geo.Lookup(h.IPAddress); found {
			geoRec = rec
			haveGeo = true
			h.AppendServerParam(hit.SrvGeoCC, rec.CountryCode)
			h.AppendServerParam(hit.SrvGeoRegion, rec.Region)
			h.AppendServerParam(hit.SrvGeoCity, rec.City)
			h.AppendServerParam(hit.SrvGeoTz, rec.Timezone)
			h.AppendServerParam(hit.SrvGeoISP, rec.ISP)
			if rec.Proxy {
				h.AppendServerParam(hit.SrvGeoProxy, "1")
			}
			if rec.Mobile {
				h.AppendServerParam(hit.SrvGeoMobile, "1")
			}
		}
	}

	// 8. timezone mismatch
	if haveGeo && geoRec.Timezone != "" {
		if clientTz := q.Get("tz"); clientTz != "" && clientTz != geoRec.Timezone {
			h.AppendServerParam(hit.SrvGeoTzMismatch, "1")
		}
	}

	// 9. enqueue
	if e.stats != nil {
		e.stats.IncReceived()
	}
	ok := true
	if e.queue != nil {
		ok = e.queue.Enqueue(*h)
	}
	if e.stats != nil {
		if ok {
			e.stats.IncEnqueued()
		} else {
			e.stats.IncDropped()
		}
	}
	return ok
}

const (
	gifSuffix = "_SMART.GIF"
	jsSuffix  = "_SMART.js"
)

// Handler serves the pixel and script endpoints and a health check.
type Handler struct {
	enricher *Enricher
	lg       *galog.Logger
}

func NewHandler(e *Enricher, lg *galog.Logger) *Handler {
	return &Handler{enricher: e, lg: lg}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/healthz":
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	case strings.HasSuffix(r.URL.Path, gifSuffix):
		h.servePixel(w, r)
	case strings.HasSuffix(r.URL.Path, jsSuffix):
		w.Header().Set("Content-Type", "application/javascript")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_, _ = w.Write(assets.SmartJS())
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) servePixel(w http.ResponseWriter, r *http.Request) {
	hv := capture.Capture(r, time.Now())
	h.enricher.Enrich(&hv)

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(assets.TransparentGIF)
}
