package handoff

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/hit"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := hit.Hit{CompanyID: "12345", PiXLID: "0001", IPAddress: "8.8.4.4", ReceivedAt: time.Now().UTC()}
	var buf bytes.Buffer
	if err := encodeLine(&buf, h); err != nil {
		t.Fatalf("encode: %v", err)
	}

	var got []hit.Hit
	if err := decodeLines(&buf, func(gotHit hit.Hit) { got = append(got, gotHit) }, nil); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].CompanyID != "12345" {
		t.Fatalf("unexpected decode result: %+v", got)
	}
}

func TestDecodeLinesSkipsMalformed(t *testing.T) {
	input := bytes.NewBufferString("{\"CompanyID\":\"1\"}\nnot-json\n{\"CompanyID\":\"2\"}\n")
	var good []hit.Hit
	var bad int
	err := decodeLines(input, func(h hit.Hit) { good = append(good, h) }, func(line []byte, derr error) { bad++ })
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(good) != 2 || bad != 1 {
		t.Fatalf("expected 2 good lines and 1 malformed, got %d good %d bad", len(good), bad)
	}
}

func TestFailoverWriterRollsDailyFile(t *testing.T) {
	dir := t.TempDir()
	fw := newFailoverWriter(dir, nil, nil)
	defer fw.Close()

	h := hit.Hit{CompanyID: "1", PiXLID: "1"}
	if err := fw.Write(h); err != nil {
		t.Fatalf("write: %v", err)
	}
	expected := filepath.Join(dir, "failover_"+dayString(time.Now())+".jsonl")
	if _, err := os.Stat(expected); err != nil {
		t.Fatalf("expected failover file %s: %v", expected, err)
	}
}
