package forgeenrich

import (
	"strings"

	"golang.org/x/text/language"
)

// culturalResult is the output of the geographic-arbitrage scoring in
// §4.10 step 12: a 0-100 consistency score plus the flags that dragged it
// down.
type culturalResult struct {
	Score int
	Flags []string
}

// evaluateCultural cross-references client-reported locale, fonts,
// timezone, calendar, and date/number format against the geo-derived
// region across 7 weighted signals.
func evaluateCultural(ctx *tierContext, geoCountry string) culturalResult {
	const perSignal = 100 / 7
	score := 100
	var flags []string

	penalize := func(flag string) {
		score -= perSignal
		flags = append(flags, flag)
	}

	navLang := ctx.q("navLang")
	if navLang != "" && geoCountry != "" {
		if tag, err := language.Parse(navLang); err == nil {
			region, _ := tag.Region()
			if region.String() != "" && !strings.EqualFold(region.String(), geoCountry) {
				penalize("locale-region-mismatch")
			}
		}
	}

	if ctx.tzMismatch {
		penalize("timezone-mismatch")
	}

	if fc := parseIntSafe(ctx.q("fontCount")); fc > 0 && geoCountry != "" {
		// extremely low font diversity from a Latin-script locale claiming
		// a CJK-heavy region (or vice versa) is a coarse but cheap signal
		if isCJKCountry(geoCountry) && fc < 5 {
			penalize("font-count-inconsistent-with-region")
		}
	}

	if cal := ctx.q("calendar"); cal != "" && geoCountry != "" {
		if cal != "gregory" && !usesNonGregorianCalendar(geoCountry) {
			penalize("calendar-inconsistent-with-region")
		}
	}

	if dateFmt := ctx.q("dateFmt"); dateFmt != "" && geoCountry != "" {
		if dateFmt == "MM/DD/YYYY" && geoCountry != "US" {
			penalize("date-format-inconsistent-with-region")
		}
	}

	if numFmt := ctx.q("numFmt"); numFmt != "" && geoCountry != "" {
		if numFmt == "1,234.56" && isCommaDecimalCountry(geoCountry) {
			penalize("number-format-inconsistent-with-region")
		}
	}

	if acceptLang := ctx.q("acceptLang"); acceptLang != "" && navLang != "" {
		if !strings.HasPrefix(acceptLang, navLang[:minInt(2, len(navLang))]) {
			penalize("accept-language-navigator-mismatch")
		}
	}

	if score < 0 {
		score = 0
	}
	return culturalResult{Score: score, Flags: flags}
}

func isCJKCountry(cc string) bool {
	switch strings.ToUpper(cc) {
	case "CN", "JP", "KR", "TW", "HK":
		return true
	}
	return false
}

func usesNonGregorianCalendar(cc string) bool {
	switch strings.ToUpper(cc) {
	case "SA", "IR", "TH", "IL":
		return true
	}
	return false
}

func isCommaDecimalCountry(cc string) bool {
	switch strings.ToUpper(cc) {
	case "US", "GB", "CA":
		return false
	default:
		return true
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
