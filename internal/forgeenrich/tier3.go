package forgeenrich

import (
	"strconv"
	"strings"
	"time"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/hit"
)

func (e *Enricher) tier3(ctx *tierContext) {
	e.stepContradictions(ctx)
	e.stepCultural(ctx)
	e.stepDeviceAge(ctx)
	e.stepReplay(ctx)
	e.stepDeadInternet(ctx)
	e.stepLeadQuality(ctx) // deferred past Tier 3 per the spec's explicit allowance
}

func (e *Enricher) stepContradictions(ctx *tierContext) {
	defer e.recover("contradictions")
	res := evaluateContradictions(ctx)
	ctx.contradictionCount = res.Count
	ctx.hit.AppendServerParam(hit.SrvContradictions, strconv.Itoa(res.Count))
	if res.Count > 0 {
		ctx.hit.AppendServerParam(hit.SrvContradictionList, strings.Join(res.Names, ","))
	}
}

func (e *Enricher) stepCultural(ctx *tierContext) {
	defer e.recover("cultural")
	res := evaluateCultural(ctx, ctx.mmCountryCode)
	ctx.hit.AppendServerParam(hit.SrvCulturalScore, strconv.Itoa(res.Score))
	if len(res.Flags) > 0 {
		ctx.hit.AppendServerParam(hit.SrvCulturalFlags, strings.Join(res.Flags, ","))
	}
}

func (e *Enricher) stepDeviceAge(ctx *tierContext) {
	defer e.recover("device-age")
	res := evaluateDeviceAge(ctx, time.Now().UTC().Year())
	if res.Years == 0 && !res.Anomaly {
		return
	}
	ctx.hit.AppendServerParam(hit.SrvDeviceAgeYears, strconv.Itoa(res.Years))
	if res.Anomaly {
		ctx.hit.AppendServerParam(hit.SrvDeviceAgeAnomaly, "1")
	}
}

func (e *Enricher) stepReplay(ctx *tierContext) {
	defer e.recover("replay")
	if e.replay == nil {
		return
	}
	fp := hit.CompositeFingerprint(ctx.q("canvasFP"), ctx.q("webglFP"), ctx.q("audioFP"))
	res := e.replay.Check(ctx.q("mousePath"), fp)
	if res.Detected {
		ctx.hit.AppendServerParam(hit.SrvReplayDetected, "1")
		ctx.hit.AppendServerParam(hit.SrvReplayMatchFp, res.MatchFp)
	}
}

func (e *Enricher) stepDeadInternet(ctx *tierContext) {
	defer e.recover("dead-internet")
	if e.deadInternet == nil || ctx.hit.CompanyID == "" {
		return
	}
	idx := e.deadInternet.Score(ctx.hit.CompanyID, ctx.hit.ReceivedAt, deadInternetSignals{
		BotScoreAtLeast50:       ctx.botScore >= 50,
		ZeroMouseMoves:          parseIntSafe(ctx.q("mouseMoves")) == 0,
		DatacenterIP:            ctx.isDatacenterIP,
		AnyContradiction:        ctx.contradictionCount > 0,
		LowFingerprintDiversity: ctx.fpUniqueIsOne,
	})
	ctx.hit.AppendServerParam(hit.SrvDeadInternetIdx, strconv.Itoa(idx))
}

func (e *Enricher) stepLeadQuality(ctx *tierContext) {
	defer e.recover("lead-quality")
	score := leadQuality(leadQualitySignals{
		ResidentialIP:       !ctx.isDatacenterIP,
		StableFingerprint:   !ctx.fpHasAlert,
		HumanMouseEntropy:   parseIntSafe(ctx.q("mouseMoves")) > 5,
		FontCountAtLeast3:   parseIntSafe(ctx.q("fontCount")) >= 3,
		CleanCanvas:         ctx.q("canvasFP") != "",
		TimezoneMatches:     !ctx.tzMismatch,
		NoContradictions:    ctx.contradictionCount == 0,
		KnownGeolocatableIP: ctx.mmCountryCode != "" || ctx.ipapiCountryCode != "",
		NonBotUA:            !ctx.isKnownBot,
	})
	ctx.hit.AppendServerParam(hit.SrvLeadQuality, strconv.Itoa(score))
}
