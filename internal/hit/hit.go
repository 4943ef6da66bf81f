// Package hit defines the Hit record that flows end-to-end from the
// edge's HTTP handler through the handoff to the forge's enrichment
// pipeline and finally into the relational store.
package hit

import (
	"net"
	"net/url"
	"strings"
	"time"
)

// MaxTruncateLen is the code-unit cap applied to UserAgent and Referrer.
const MaxTruncateLen = 2000

// Hit is the unit of work carried end-to-end. ReceivedAt is set exactly
// once, at capture, and never overwritten. QueryString is append-only
// after capture: enrichers may only add "_srv_*" key/value pairs.
type Hit struct {
	ReceivedAt  time.Time `json:"ReceivedAt"`
	CompanyID   string    `json:"CompanyID"`
	PiXLID      string    `json:"PiXLID"`
	IPAddress   string    `json:"IPAddress"`
	RequestPath string    `json:"RequestPath"`
	QueryString string    `json:"QueryString"`
	HeadersJson string    `json:"HeadersJson"`
	UserAgent   string    `json:"UserAgent"`
	Referer     string    `json:"Referer"`
}

// Truncate clips UserAgent and Referer to MaxTruncateLen code units. Other
// fields are never truncated.
func (h *Hit) Truncate() {
	h.UserAgent = truncate(h.UserAgent, MaxTruncateLen)
	h.Referer = truncate(h.Referer, MaxTruncateLen)
}

// truncate counts UTF-16 code units: characters outside the Basic
// Multilingual Plane count as two, and are never split.
func truncate(s string, n int) string {
	units := 0
	for i, r := range s {
		w := 1
		if r >= 0x10000 {
			w = 2
		}
		if units+w > n {
			return s[:i]
		}
		units += w
	}
	return s
}

// AppendServerParam appends a single "_srv_" key/value pair to the query
// string. It is the sole writer of server-side stamps: no "_srv_*" key is
// ever overwritten, only appended, and the original content is always a
// prefix of the result (save for an interleaved "&" separator).
func (h *Hit) AppendServerParam(key, value string) {
	pair := key + `=` + url.QueryEscape(value)
	if h.QueryString == `` {
		h.QueryString = pair
		return
	}
	h.QueryString = h.QueryString + `&` + pair
}

// QueryValues parses the current query string into a url.Values map,
// tolerating a malformed fragment by ignoring it rather than failing —
// client-sent fields are never authoritative.
func (h *Hit) QueryValues() url.Values {
	// ParseQuery keeps every well-formed pair and reports only the first
	// bad one, so its error is ignored.
	v, _ := url.ParseQuery(h.QueryString)
	if v == nil {
		return url.Values{}
	}
	return v
}

// QueryParam returns the first value of a client-sent query parameter, or
// the empty string if absent. Unknown keys are preserved verbatim in
// QueryString; this is just a convenience read.
func (h *Hit) QueryParam(key string) string {
	return h.QueryValues().Get(key)
}

// Subnet24 returns the dotted-quad /24 prefix of an IPv4 address (e.g.
// "198.51.100." for "198.51.100.42"), or "" for anything that is not a
// well-formed IPv4 dotted address (including all IPv6 addresses).
func Subnet24(addr string) string {
	// reject IPv6 (including "::ffff:a.b.c.d") and anything not parseable
	if strings.IndexByte(addr, ':') >= 0 || net.ParseIP(addr) == nil {
		return ``
	}
	idx := strings.LastIndexByte(addr, '.')
	if idx <= 0 {
		return ``
	}
	return addr[:idx+1]
}

// CompositeFingerprint composes the pipe-joined triple of client
// fingerprint hashes. Components may be empty but the separators are
// always present, so "|b|" and "a||" are distinct keys from "a|b|".
func CompositeFingerprint(canvas, webgl, audio string) string {
	return canvas + `|` + webgl + `|` + audio
}

// GeoRecord is an optional per-address geo snapshot. Found is false for
// the cached "not found" sentinel.
type GeoRecord struct {
	Found       bool
	Country     string
	CountryCode string
	Region      string
	City        string
	PostalCode  string
	Latitude    float64
	Longitude   float64
	Timezone    string
	ISP         string
	Org         string
	Proxy       bool
	Mobile      bool
	ASN         uint32
	ASNOrg      string
}
