// Package capture implements HitCapture: turning an inbound HTTP request
// into a normalized Hit, per §4.1.
package capture

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/hit"
)

// headerAllowlist is the fixed set of header names HeadersJson may
// contain. Order is preserved in the emitted JSON so output is stable
// across requests, which keeps diffing stored rows sane.
var headerAllowlist = []string{
	"User-Agent",
	"Referer",
	"Accept-Language",
	"DNT",
	"Via",
	"X-Forwarded-For",
	"X-Forwarded-Proto",
	"X-Real-IP",
	"CF-Connecting-IP",
	"True-Client-IP",
	"Sec-CH-UA",
	"Sec-CH-UA-Mobile",
	"Sec-CH-UA-Platform",
	"Sec-CH-UA-Platform-Version",
	"Sec-CH-UA-Full-Version-List",
	"Sec-CH-UA-Arch",
	"Sec-CH-UA-Model",
	"Sec-Fetch-Site",
	"Sec-Fetch-Mode",
	"Sec-Fetch-Dest",
	"Sec-Fetch-User",
	"Cf-Ray",
	"Cf-Visitor",
	"X-JA3-Fingerprint",
}

// Capture builds a Hit from r. now is injected so callers can pin a single
// process-wide clock source rather than each capture calling time.Now.
func Capture(r *http.Request, now time.Time) hit.Hit {
	h := hit.Hit{
		ReceivedAt:  now.UTC(),
		IPAddress:   remoteAddress(r),
		RequestPath: r.URL.Path,
		QueryString: r.URL.RawQuery,
		UserAgent:   r.Header.Get("User-Agent"),
		Referer:     r.Header.Get("Referer"),
	}
	h.CompanyID, h.PiXLID = parseIDs(r.URL.Path)
	h.HeadersJson = buildHeadersJSON(r.Header)

	// Hit-type tagging and the legacy referrer fallback are applied by the
	// edge enricher, which owns step ordering; Capture only parses the
	// request as received.
	h.Truncate()
	return h
}

// remoteAddress implements the priority chain in §4.1: proxy headers win
// over the raw connection peer, first non-empty wins.
func remoteAddress(r *http.Request) string {
	if v := r.Header.Get("CF-Connecting-IP"); v != "" {
		return strings.TrimSpace(v)
	}
	if v := r.Header.Get("True-Client-IP"); v != "" {
		return strings.TrimSpace(v)
	}
	if v := r.Header.Get("X-Real-IP"); v != "" {
		return strings.TrimSpace(v)
	}
	if v := r.Header.Get("X-Forwarded-For"); v != "" {
		first := v
		if idx := strings.IndexByte(v, ','); idx >= 0 {
			first = v[:idx]
		}
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

// parseIDs matches the path pattern /{client}/{campaign}, where client is
// [^/]+ and campaign is [^_]+ (the remainder, including any _SMART.GIF
// suffix, is not part of the pixel ID). Failure yields empty strings, not
// an error.
func parseIDs(path string) (companyID, pixelID string) {
	trimmed := strings.TrimPrefix(path, "/")
	slash := strings.IndexByte(trimmed, '/')
	if slash < 0 {
		return "", ""
	}
	companyID = trimmed[:slash]
	rest := trimmed[slash+1:]
	if companyID == "" || rest == "" {
		return "", ""
	}
	if underscore := strings.IndexByte(rest, '_'); underscore >= 0 {
		pixelID = rest[:underscore]
	} else {
		pixelID = rest
	}
	if pixelID == "" {
		return "", ""
	}
	return companyID, pixelID
}

// buildHeadersJSON assembles the flat JSON object directly, without an
// intermediate map, escaping each value as it's written.
func buildHeadersJSON(hdr http.Header) string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for _, name := range headerAllowlist {
		v := hdr.Get(name)
		if v == "" {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		writeJSONString(&b, name)
		b.WriteByte(':')
		writeJSONString(&b, v)
	}
	b.WriteByte('}')
	return b.String()
}

func writeJSONString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				b.WriteString(`\u`)
				const hex = "0123456789abcdef"
				b.WriteByte(hex[(r>>12)&0xf])
				b.WriteByte(hex[(r>>8)&0xf])
				b.WriteByte(hex[(r>>4)&0xf])
				b.WriteByte(hex[r&0xf])
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}

// ApplyLegacyReferrerFallback adopts the decoded "ref" query parameter as
// Referrer when the Referer header was absent.
func ApplyLegacyReferrerFallback(h *hit.Hit, q url.Values) {
	if h.Referer != "" {
		return
	}
	if ref := q.Get("ref"); ref != "" {
		h.Referer = ref
	}
}

// IsModernHit reports whether q contains a recognized JavaScript-collected
// parameter, per the hit-type rule in §4.1/§4.7.
func IsModernHit(q url.Values) bool {
	return q.Has("sw") || q.Has("canvasFP")
}
