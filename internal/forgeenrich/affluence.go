package forgeenrich

import (
	"strconv"
	"strings"

	"github.com/gobwas/glob"
)

// gpuTierPatterns maps GPU renderer strings (as reported by WebGL) to a
// coarse affluence tier. Patterns are globs rather than exact strings
// since renderer strings carry driver/build suffixes that vary machine
// to machine.
var gpuTierPatterns = []struct {
	pattern glob.Glob
	tier    string
}{
	{glob.MustCompile("*RTX 40*"), "HIGH"},
	{glob.MustCompile("*RTX 30*"), "HIGH"},
	{glob.MustCompile("*RTX 20*"), "HIGH"},
	{glob.MustCompile("*Radeon RX 7*"), "HIGH"},
	{glob.MustCompile("*Radeon RX 6*"), "HIGH"},
	{glob.MustCompile("*Apple M[1-3]*Pro*"), "HIGH"},
	{glob.MustCompile("*Apple M[1-3]*Max*"), "HIGH"},
	{glob.MustCompile("*GTX 16*"), "MID"},
	{glob.MustCompile("*GTX 10*"), "MID"},
	{glob.MustCompile("*Radeon RX 5*"), "MID"},
	{glob.MustCompile("*Apple M[1-3]*"), "MID"},
	{glob.MustCompile("*Iris Xe*"), "MID"},
	{glob.MustCompile("*Intel*HD Graphics*"), "LOW"},
	{glob.MustCompile("*Intel*UHD Graphics*"), "LOW"},
	{glob.MustCompile("*Mali-*"), "LOW"},
	{glob.MustCompile("*Adreno*"), "LOW"},
	{glob.MustCompile("*SwiftShader*"), "LOW"},
	{glob.MustCompile("*llvmpipe*"), "LOW"},
}

func gpuTier(renderer string) string {
	if renderer == "" {
		return "Unknown"
	}
	for _, p := range gpuTierPatterns {
		if p.pattern.Match(renderer) {
			return p.tier
		}
	}
	return "Unknown"
}

// affluence combines GPU tier with coarse hardware/platform signals into
// a single HIGH/MID/LOW tier, per §4.10 step 9.
func affluence(gpuRenderer string, cpuCores int, memoryGB float64, screenWidth, screenHeight int, platform string) (tier string, gpu string) {
	gpu = gpuTier(gpuRenderer)

	score := 0
	switch gpu {
	case "HIGH":
		score += 3
	case "MID":
		score += 2
	case "LOW":
		score += 0
	default:
		score += 1
	}
	if cpuCores >= 8 {
		score += 2
	} else if cpuCores >= 4 {
		score += 1
	}
	if memoryGB >= 16 {
		score += 2
	} else if memoryGB >= 8 {
		score += 1
	}
	if screenWidth*screenHeight >= 1920*1080*2 {
		score += 1
	}
	if strings.Contains(strings.ToLower(platform), "mac") {
		score += 1
	}

	switch {
	case score >= 6:
		return "HIGH", gpu
	case score >= 3:
		return "MID", gpu
	default:
		return "LOW", gpu
	}
}

func parseFloatSafe(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func parseIntSafe(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
