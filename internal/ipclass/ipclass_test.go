package ipclass

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyIPv4(t *testing.T) {
	cases := []struct {
		addr string
		typ  Type
		geo  bool
	}{
		{`8.8.8.8`, Public, true},
		{`10.0.0.1`, Private, false},
		{`172.16.5.4`, Private, false},
		{`192.168.1.1`, Private, false},
		{`127.0.0.1`, Loopback, false},
		{`169.254.1.1`, LinkLocal, false},
		{`100.64.0.1`, CGNAT, true},
		{`255.255.255.255`, Broadcast, false},
		{`224.0.0.1`, Multicast, false},
		{`198.51.100.5`, Documentation, false},
		{`not-an-ip`, Invalid, false},
	}
	for _, c := range cases {
		typ, geo, _ := Classify(c.addr)
		require.Equalf(t, c.typ, typ, "%s: type", c.addr)
		require.Equalf(t, c.geo, geo, "%s: geolocatable", c.addr)
	}
}

func TestClassifyIPv6(t *testing.T) {
	cases := []struct {
		addr string
		typ  Type
	}{
		{`::1`, Loopback},
		{`fe80::1`, LinkLocal},
		{`fc00::1`, Private},
		{`ff02::1`, Multicast},
		{`2001:db8::1`, Documentation},
		{`2606:4700:4700::1111`, Public},
		{`::ffff:8.8.8.8`, Public},
	}
	for _, c := range cases {
		typ, _, _ := Classify(c.addr)
		require.Equalf(t, c.typ, typ, "%s: type", c.addr)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	for i := 0; i < 1000; i++ {
		t1, g1, _ := Classify(`8.8.4.4`)
		t2, g2, _ := Classify(`8.8.4.4`)
		require.Equal(t, t1, t2)
		require.Equal(t, g1, g2)
	}
}
