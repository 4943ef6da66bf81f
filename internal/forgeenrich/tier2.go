package forgeenrich

import (
	"strconv"
	"time"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/hit"
)

func (e *Enricher) tier2(ctx *tierContext) {
	e.stepSession(ctx)
	e.stepCrossCustomer(ctx)
	e.stepAffluence(ctx)
	// lead quality (step 10) is deferred to after Tier 3, per the spec's
	// explicit allowance that its placement after Tier 3 is permitted
	// since it reads Tier 3's contradiction count and timezone-match flag.
}

func (e *Enricher) stepSession(ctx *tierContext) {
	defer e.recover("session")
	if e.sessions == nil {
		return
	}
	fp := hit.CompositeFingerprint(ctx.q("canvasFP"), ctx.q("webglFP"), ctx.q("audioFP"))
	if fp == "||" {
		return
	}
	res := e.sessions.Record(fp, ctx.hit.RequestPath, time.Now().UTC())
	stampSession(ctx.hit, res)
}

func (e *Enricher) stepCrossCustomer(ctx *tierContext) {
	defer e.recover("cross-customer")
	if e.crossCustomer == nil || ctx.hit.IPAddress == "" {
		return
	}
	fp := hit.CompositeFingerprint(ctx.q("canvasFP"), ctx.q("webglFP"), ctx.q("audioFP"))
	distinct := e.crossCustomer.Record(ctx.hit.IPAddress, fp, ctx.hit.CompanyID)
	ctx.hit.AppendServerParam(hit.SrvCrossCompanies, strconv.Itoa(distinct))
	if distinct >= crossCustomerAlert {
		ctx.hit.AppendServerParam(hit.SrvCrossCustomerAlert, "1")
	}
}

func (e *Enricher) stepAffluence(ctx *tierContext) {
	defer e.recover("affluence")
	tier, gpu := affluence(
		ctx.q("gpu"),
		parseIntSafe(ctx.q("hc")),
		parseFloatSafe(ctx.q("mem")),
		parseIntSafe(ctx.q("sw")),
		parseIntSafe(ctx.q("sh")),
		ctx.q("plat"),
	)
	ctx.hit.AppendServerParam(hit.SrvAffluence, tier)
	ctx.hit.AppendServerParam(hit.SrvGpuTier, gpu)
}
