package forgeenrich

import "strings"

// gpuReleaseYear is a condensed lookup of GPU renderer substrings to
// approximate release year, standing in for the spec's ~70-model
// catalog; an unmatched renderer yields no age estimate.
var gpuReleaseYear = map[string]int{
	"RTX 4090": 2022, "RTX 4080": 2022, "RTX 4070": 2023, "RTX 4060": 2023,
	"RTX 3090": 2020, "RTX 3080": 2020, "RTX 3070": 2020, "RTX 3060": 2021,
	"RTX 2080": 2018, "RTX 2070": 2018, "RTX 2060": 2019,
	"GTX 1080": 2016, "GTX 1070": 2016, "GTX 1060": 2016, "GTX 1050": 2016,
	"GTX 980": 2014, "GTX 970": 2014, "GTX 960": 2015,
	"Radeon RX 7900": 2022, "Radeon RX 6900": 2020, "Radeon RX 6600": 2021,
	"Radeon RX 5700": 2019, "Radeon RX 580": 2017, "Radeon RX 480": 2016,
	"Apple M3": 2023, "Apple M2": 2022, "Apple M1": 2020,
	"Iris Xe": 2020, "UHD Graphics 630": 2017, "HD Graphics 4000": 2012,
	"Adreno 740": 2023, "Adreno 730": 2022, "Adreno 660": 2021, "Adreno 630": 2018,
	"Mali-G78": 2020, "Mali-G72": 2017,
}

func deviceReleaseYear(renderer string) (year int, ok bool) {
	for model, y := range gpuReleaseYear {
		if strings.Contains(renderer, model) {
			return y, true
		}
	}
	return 0, false
}

type deviceAgeResult struct {
	Years   int
	Anomaly bool
}

// evaluateDeviceAge triangulates GPU release year against OS/browser
// version freshness and three anomaly classes from §4.10 step 13.
func evaluateDeviceAge(ctx *tierContext, currentYear int) deviceAgeResult {
	year, ok := deviceReleaseYear(ctx.q("gpu"))
	if !ok {
		return deviceAgeResult{}
	}
	age := currentYear - year
	if age < 0 {
		age = 0
	}

	anomaly := false
	// anomaly class 1: modern browser on ancient hardware, zero mouse
	// input, from a datacenter IP — a classic headless-automation tell.
	modernBrowser := parseIntSafe(ctx.q("browserMajor")) >= 100
	if age >= 8 && modernBrowser && parseIntSafe(ctx.q("mouseMoves")) == 0 && ctx.isDatacenterIP {
		anomaly = true
	}
	// anomaly class 2: device claims to be brand new (age 0) but the
	// browser major version is ancient - a spoofed/rolled-back UA.
	if age == 0 && ctx.q("browserMajor") != "" && parseIntSafe(ctx.q("browserMajor")) < 60 {
		anomaly = true
	}
	// anomaly class 3: extreme age (GPU released ten or more years before
	// currentYear) reported alongside WebGL2 support.
	if age >= 10 && boolParam(ctx, "webgl2") {
		anomaly = true
	}

	return deviceAgeResult{Years: age, Anomaly: anomaly}
}
