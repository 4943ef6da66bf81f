package forgeenrich

import "strings"

type contradictionSeverity int

const (
	impossible contradictionSeverity = iota
	improbable
	suspicious
)

type contradictionRule struct {
	name     string
	severity contradictionSeverity
	check    func(ctx *tierContext) bool
}

func boolParam(ctx *tierContext, key string) bool {
	v := ctx.q(key)
	return v == "1" || v == "true"
}

// contradictionRules is the fixed 13-rule catalog: 7 IMPOSSIBLE, 3
// IMPROBABLE, 3 SUSPICIOUS, per §4.10 step 11.
var contradictionRules = []contradictionRule{
	{"mobile-flag-with-desktop-resolution-and-mouse", impossible, func(c *tierContext) bool {
		return boolParam(c, "mobile") && parseIntSafe(c.q("sw"))*parseIntSafe(c.q("sh")) > 2000*1000 && parseIntSafe(c.q("mouseMoves")) > 0
	}},
	{"macos-with-directx-gpu", impossible, func(c *tierContext) bool {
		return strings.EqualFold(c.q("os"), "macOS") && strings.Contains(strings.ToLower(c.q("gpu")), "direct3d")
	}},
	{"battery-api-on-macos-safari", impossible, func(c *tierContext) bool {
		return boolParam(c, "battery") && strings.EqualFold(c.q("os"), "macOS") && strings.Contains(strings.ToLower(c.q("browser")), "safari")
	}},
	{"touch-points-with-no-touch-ua", impossible, func(c *tierContext) bool {
		return parseIntSafe(c.q("maxTouchPoints")) > 0 && !strings.Contains(strings.ToLower(c.q("ua")), "mobile")
	}},
	{"webgl-vendor-mismatch-declared-gpu", impossible, func(c *tierContext) bool {
		return c.q("gpuVendor") != "" && c.q("gpu") != "" && !strings.Contains(strings.ToLower(c.q("gpu")), strings.ToLower(c.q("gpuVendor")))
	}},
	{"windows-ua-with-ios-client-hints", impossible, func(c *tierContext) bool {
		return strings.Contains(strings.ToLower(c.q("ua")), "windows") && strings.EqualFold(c.q("chPlatform"), "iOS")
	}},
	{"zero-plugins-with-legacy-flash-era-ua", impossible, func(c *tierContext) bool {
		return parseIntSafe(c.q("plugins")) == 0 && strings.Contains(c.q("ua"), "Flash")
	}},
	{"language-mismatch-accept-language-and-navigator", improbable, func(c *tierContext) bool {
		nav, accept := c.q("navLang"), c.q("acceptLang")
		if len(nav) < 2 || len(accept) < 2 {
			return false
		}
		return nav[:2] != accept[:2]
	}},
	{"screen-smaller-than-viewport", improbable, func(c *tierContext) bool {
		return parseIntSafe(c.q("sw")) > 0 && parseIntSafe(c.q("vw")) > parseIntSafe(c.q("sw"))
	}},
	{"hardware-concurrency-zero-modern-browser", improbable, func(c *tierContext) bool {
		return parseIntSafe(c.q("hc")) == 0 && c.q("browser") != ""
	}},
	{"timezone-offset-mismatch-dst", suspicious, func(c *tierContext) bool {
		return c.tzMismatch
	}},
	{"high-fp-alert-with-zero-mouse-entropy", suspicious, func(c *tierContext) bool {
		return c.fpHasAlert && parseIntSafe(c.q("mouseMoves")) == 0
	}},
	{"datacenter-ip-with-consumer-gpu", suspicious, func(c *tierContext) bool {
		return c.isDatacenterIP && gpuTier(c.q("gpu")) != "Unknown"
	}},
}

type contradictionResult struct {
	Count int
	Names []string
}

func evaluateContradictions(ctx *tierContext) contradictionResult {
	var res contradictionResult
	for _, r := range contradictionRules {
		if r.check(ctx) {
			res.Count++
			res.Names = append(res.Names, r.name)
		}
	}
	return res
}
