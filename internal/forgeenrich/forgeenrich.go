// Package forgeenrich implements ForgeEnricher's three tiers (§4.10):
// library/API-backed lookups, cross-request correlation, and asymmetric
// detection. Each step appends to the hit's query string and must never
// abort the remaining pipeline on failure.
package forgeenrich

import (
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/galog"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/hit"
)

// Enricher owns every Tier 1-3 sub-detector. Construct with New, wiring
// in whichever optional dependencies are available at startup (missing
// GeoIP databases, for instance, degrade gracefully rather than failing
// construction).
type Enricher struct {
	lg *galog.Logger

	bots      *botCatalog
	ua        *uaParser
	rdns      *rdnsResolver
	offline   *offlineGeo
	online    *onlineGeo
	whois     *whoisClient

	sessions      *sessionStore
	crossCustomer *crossCustomerStore
	deadInternet  *deadInternetIndex
	replay        *replayDetector
}

type Config struct {
	Log            *galog.Logger
	BotCatalogPath string
	GeoIPCityPath  string
	GeoIPASNPath   string
	RDNSServer     string
	OnlineGeoURL   string
	OnlineGeoMaxPerMinute int
	OnlineGeoMaxStaleDays int
	OnlineGeoStore OnlineGeoStore
}

func New(cfg Config) *Enricher {
	e := &Enricher{lg: cfg.Log}
	e.bots = loadBotCatalog(cfg.Log, cfg.BotCatalogPath)
	e.ua = newUAParser(cfg.Log)
	e.rdns = newRDNSResolver(cfg.Log, cfg.RDNSServer)
	e.offline = newOfflineGeo(cfg.Log, cfg.GeoIPCityPath, cfg.GeoIPASNPath)
	e.online = newOnlineGeo(cfg.Log, cfg.OnlineGeoURL, cfg.OnlineGeoMaxPerMinute, cfg.OnlineGeoMaxStaleDays, cfg.OnlineGeoStore)
	e.whois = newWHOISClient(cfg.Log)
	e.sessions = newSessionStore()
	e.crossCustomer = newCrossCustomerStore()
	e.deadInternet = newDeadInternetIndex()
	e.replay = newReplayDetector()
	return e
}

// Enrich runs all three tiers against h in order, catching and logging
// any per-step failure so the pipeline always reaches BulkWriter.
func (e *Enricher) Enrich(h *hit.Hit) {
	q := h.QueryValues()
	ctx := &tierContext{hit: h, query: q}
	ctx.tzMismatch = q.Get(hit.SrvGeoTzMismatch) == "1"
	ctx.fpHasAlert = q.Get(hit.SrvFpAlert) == "1"
	ctx.fpUniqueIsOne = q.Get(hit.SrvFpUniq) == "1"

	e.tier1(ctx)
	e.tier2(ctx)
	e.tier3(ctx)
}

// tierContext carries cross-step state (e.g. contradiction count feeding
// lead-quality) within a single hit's enrichment pass. query is a
// snapshot taken once at the start of Enrich; steps that need to react
// to an earlier step's stamp track it in a dedicated field here instead
// of re-querying h's (append-only, steadily growing) query string.
type tierContext struct {
	hit   *hit.Hit
	query map[string][]string

	botScore            int
	isKnownBot          bool
	isDatacenterIP      bool
	mmASNEmpty          bool
	mmCountryCode       string
	ipapiCountryCode    string
	fpHasAlert          bool
	fpUniqueIsOne       bool
	contradictionCount  int
	tzMismatch          bool
}

func (c *tierContext) q(key string) string {
	if v, ok := c.query[key]; ok && len(v) > 0 {
		return v[0]
	}
	return ""
}
