package capture

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCaptureProxyHeaderPriority(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, `/12345/0001_SMART.GIF?sw=1920`, nil)
	r.RemoteAddr = `10.0.0.9:54321`
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	r.Header.Set("X-Real-IP", "203.0.113.8")
	r.Header.Set("True-Client-IP", "203.0.113.7")
	r.Header.Set("CF-Connecting-IP", "203.0.113.6")

	h := Capture(r, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if h.IPAddress != "203.0.113.6" {
		t.Fatalf("expected CF-Connecting-IP to win, got %q", h.IPAddress)
	}
	if h.CompanyID != "12345" || h.PiXLID != "0001" {
		t.Fatalf("unexpected IDs: %q %q", h.CompanyID, h.PiXLID)
	}
}

func TestCaptureFallsBackToPeerAddress(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, `/1/1_SMART.GIF`, nil)
	r.RemoteAddr = `198.51.100.1:443`
	h := Capture(r, time.Now())
	if h.IPAddress != "198.51.100.1" {
		t.Fatalf("expected peer address fallback, got %q", h.IPAddress)
	}
}

func TestParseIDsFailureYieldsEmpty(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, `/onlyoneSegment`, nil)
	h := Capture(r, time.Now())
	if h.CompanyID != "" || h.PiXLID != "" {
		t.Fatalf("expected empty IDs on malformed path, got %q %q", h.CompanyID, h.PiXLID)
	}
}

func TestHeadersJSONOnlyAllowlisted(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, `/1/1_SMART.GIF`, nil)
	r.Header.Set("User-Agent", `weird"quote`)
	r.Header.Set("X-Not-Allowed", "should-not-appear")
	h := Capture(r, time.Now())
	if !strings.Contains(h.HeadersJson, `\"quote`) {
		t.Fatalf("expected escaped quote in headers json, got %s", h.HeadersJson)
	}
	if strings.Contains(h.HeadersJson, "should-not-appear") {
		t.Fatalf("non-allowlisted header leaked into HeadersJson: %s", h.HeadersJson)
	}
}

func TestIsModernHit(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, `/1/1_SMART.GIF?canvasFP=abc`, nil)
	if !IsModernHit(r.URL.Query()) {
		t.Fatalf("expected canvasFP to mark hit modern")
	}
	r2 := httptest.NewRequest(http.MethodGet, `/1/1_SMART.GIF`, nil)
	if IsModernHit(r2.URL.Query()) {
		t.Fatalf("expected no query params to mark hit legacy")
	}
}
