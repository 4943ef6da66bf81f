package forgeenrich

import (
	"strconv"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/galog"
	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/hit"
)

func (e *Enricher) tier1(ctx *tierContext) {
	e.stepBotUA(ctx)
	e.stepUAParse(ctx)
	e.stepRDNS(ctx)
	e.stepOfflineGeo(ctx)
	e.stepOnlineGeo(ctx)
	e.stepWHOIS(ctx)
}

func (e *Enricher) stepBotUA(ctx *tierContext) {
	defer e.recover("bot-ua")
	if e.bots == nil {
		return
	}
	if name, ok := e.bots.Match(ctx.hit.UserAgent); ok {
		ctx.isKnownBot = true
		ctx.botScore = 100
		ctx.hit.AppendServerParam(hit.SrvKnownBot, "1")
		ctx.hit.AppendServerParam(hit.SrvBotName, name)
	}
}

func (e *Enricher) stepUAParse(ctx *tierContext) {
	defer e.recover("ua-parse")
	if e.ua == nil {
		return
	}
	res := e.ua.Parse(ctx.hit.UserAgent)
	if res.Browser != "" {
		ctx.hit.AppendServerParam(hit.SrvBrowser, res.Browser)
	}
	if res.BrowserVer != "" {
		ctx.hit.AppendServerParam(hit.SrvBrowserVer, res.BrowserVer)
	}
	if res.OS != "" {
		ctx.hit.AppendServerParam(hit.SrvOS, res.OS)
	}
	if res.OSVer != "" {
		ctx.hit.AppendServerParam(hit.SrvOSVer, res.OSVer)
	}
	if res.DeviceType != "" {
		ctx.hit.AppendServerParam(hit.SrvDeviceType, res.DeviceType)
	}
	if res.DeviceModel != "" {
		ctx.hit.AppendServerParam(hit.SrvDeviceModel, res.DeviceModel)
	}
	if res.DeviceBrand != "" {
		ctx.hit.AppendServerParam(hit.SrvDeviceBrand, res.DeviceBrand)
	}
}

func (e *Enricher) stepRDNS(ctx *tierContext) {
	defer e.recover("rdns")
	if e.rdns == nil || ctx.hit.IPAddress == "" {
		return
	}
	name, cloud, ok := e.rdns.Resolve(ctx.hit.IPAddress)
	if !ok {
		return
	}
	ctx.hit.AppendServerParam(hit.SrvRDNS, name)
	if cloud {
		ctx.isDatacenterIP = true
		ctx.hit.AppendServerParam(hit.SrvRDNSCloud, "1")
	}
}

func (e *Enricher) stepOfflineGeo(ctx *tierContext) {
	defer e.recover("offline-geo")
	if e.offline == nil || ctx.hit.IPAddress == "" {
		return
	}
	rec, ok := e.offline.Lookup(ctx.hit.IPAddress)
	if !ok {
		ctx.mmASNEmpty = true
		return
	}
	if rec.CountryCode != "" {
		ctx.mmCountryCode = rec.CountryCode
		ctx.hit.AppendServerParam(hit.SrvMMCC, rec.CountryCode)
	}
	if rec.Region != "" {
		ctx.hit.AppendServerParam(hit.SrvMMReg, rec.Region)
	}
	if rec.City != "" {
		ctx.hit.AppendServerParam(hit.SrvMMCity, rec.City)
	}
	if rec.Latitude != 0 || rec.Longitude != 0 {
		ctx.hit.AppendServerParam(hit.SrvMMLat, strconv.FormatFloat(rec.Latitude, 'f', 5, 64))
		ctx.hit.AppendServerParam(hit.SrvMMLon, strconv.FormatFloat(rec.Longitude, 'f', 5, 64))
	}
	if rec.ASN != 0 {
		ctx.hit.AppendServerParam(hit.SrvMMASN, strconv.FormatUint(uint64(rec.ASN), 10))
	} else {
		ctx.mmASNEmpty = true
	}
	if rec.ASNOrg != "" {
		ctx.hit.AppendServerParam(hit.SrvMMASNOrg, rec.ASNOrg)
	}
}

func (e *Enricher) stepOnlineGeo(ctx *tierContext) {
	defer e.recover("online-geo")
	if e.online == nil || ctx.hit.IPAddress == "" {
		return
	}
	rec, ok := e.online.Lookup(ctx.hit.IPAddress)
	if !ok {
		return
	}
	if rec.CountryCode != "" {
		ctx.ipapiCountryCode = rec.CountryCode
		ctx.hit.AppendServerParam(hit.SrvIpapiCC, rec.CountryCode)
	}
	if rec.ISP != "" {
		ctx.hit.AppendServerParam(hit.SrvIpapiISP, rec.ISP)
	}
	if rec.Proxy {
		ctx.hit.AppendServerParam(hit.SrvIpapiProxy, "1")
	}
	if rec.Mobile {
		ctx.hit.AppendServerParam(hit.SrvIpapiMobile, "1")
	}
	if rec.Org != "" {
		ctx.hit.AppendServerParam(hit.SrvIpapiReverse, rec.Org)
	}
	if rec.ASN != 0 {
		ctx.hit.AppendServerParam(hit.SrvIpapiASN, strconv.FormatUint(uint64(rec.ASN), 10))
	}
}

func (e *Enricher) stepWHOIS(ctx *tierContext) {
	defer e.recover("whois")
	if e.whois == nil || !ctx.mmASNEmpty || ctx.hit.IPAddress == "" {
		return
	}
	asn, org, ok := e.whois.Lookup(ctx.hit.IPAddress)
	if !ok {
		return
	}
	if asn != "" {
		ctx.hit.AppendServerParam(hit.SrvWhoisASN, asn)
	}
	if org != "" {
		ctx.hit.AppendServerParam(hit.SrvWhoisOrg, org)
	}
}

// recover catches a panicking step so a single bad enrichment can't take
// down the worker goroutine or skip the rest of the pipeline.
func (e *Enricher) recover(step string) {
	if r := recover(); r != nil {
		if e.lg != nil {
			e.lg.Error("forge enrichment step panicked", galog.KV("step", step), galog.KV("recovered", r))
		}
	}
}
