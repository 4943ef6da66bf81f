// Package handoff implements the edge→forge hit transport: a bounded
// drop-oldest queue feeding a single stream writer with disk-spill
// failover (§4.8), and the forge-side receiver with failover catch-up
// (§4.9).
package handoff

import (
	"bufio"
	"encoding/json"
	"io"
	"time"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/hit"
)

// wireRecord mirrors §6's handoff protocol field names exactly; hit.Hit's
// own JSON tags already match, so encoding/decoding a Hit directly is
// sufficient, but this alias keeps the wire contract documented in one
// place independent of internal field layout.
type wireRecord = hit.Hit

func encodeLine(w io.Writer, h hit.Hit) error {
	b, err := json.Marshal(wireRecord(h))
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

// decodeLines reads NDJSON from r, calling onHit for each decoded record
// and onMalformed for each line that fails to parse. It returns when r is
// exhausted or yields a read error other than EOF.
func decodeLines(r io.Reader, onHit func(hit.Hit), onMalformed func(line []byte, err error)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var h hit.Hit
		if err := json.Unmarshal(line, &h); err != nil {
			if onMalformed != nil {
				cp := make([]byte, len(line))
				copy(cp, line)
				onMalformed(cp, err)
			}
			continue
		}
		onHit(h)
	}
	return sc.Err()
}

// dayString returns the UTC calendar day used in failover filenames.
func dayString(t time.Time) string {
	return t.UTC().Format("2006_01_02")
}
