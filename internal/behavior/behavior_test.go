package behavior

import "testing"

func TestSubnetVelocityAlert(t *testing.T) {
	tr := New()
	addrs := []string{`198.51.100.10`, `198.51.100.42`, `198.51.100.77`}
	var last Result
	for _, a := range addrs {
		last = tr.RecordAndCheck(a)
	}
	if !last.SubnetVelocityAlert || last.SubnetIPs != 3 {
		t.Fatalf("expected subnet velocity alert with 3 distinct IPs, got %+v", last)
	}
}

func TestRapidFireAlert(t *testing.T) {
	tr := New()
	addr := `198.51.100.42`
	var last Result
	for i := 0; i < 3; i++ {
		last = tr.RecordAndCheck(addr)
	}
	if !last.RapidFireAlert || last.HitsIn15s != 3 {
		t.Fatalf("expected rapid fire alert, got %+v", last)
	}
	if !last.SubSecondDupe {
		t.Fatalf("expected sub-second duplicate flag on back-to-back calls")
	}
}

func TestIPv6NoSubnetButRapidFireStillRuns(t *testing.T) {
	tr := New()
	addr := `2001:db8::1`
	res := tr.RecordAndCheck(addr)
	if res.HasSubnet {
		t.Fatalf("IPv6 address should never produce a subnet signal")
	}
	if res.LastGapMs != -1 {
		t.Fatalf("first hit should report gap -1, got %d", res.LastGapMs)
	}
}

func TestFirstHitGapIsNegativeOne(t *testing.T) {
	tr := New()
	res := tr.RecordAndCheck(`203.0.113.1`)
	if res.LastGapMs != -1 {
		t.Fatalf("expected -1 gap on first observation, got %d", res.LastGapMs)
	}
}
