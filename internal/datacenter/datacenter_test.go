package datacenter

import (
	"testing"

	"github.com/asergeyev/nradix"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/galog"
)

func TestCheckMatch(t *testing.T) {
	m := New(galog.NewDiscard(), ``, ``, ``)
	tree := nradix.NewTree(2)
	tree.AddCIDR(`3.0.0.0/8`, ProviderAWS)
	m.tree.Store(tree)

	if ok, provider := m.Check(`3.1.2.3`); !ok || provider != ProviderAWS {
		t.Fatalf("expected AWS match, got ok=%v provider=%s", ok, provider)
	}
	if ok, _ := m.Check(`8.8.8.8`); ok {
		t.Fatalf("expected no match for public non-cloud address")
	}
}

func TestRefreshKeepsPreviousOnEmpty(t *testing.T) {
	m := New(galog.NewDiscard(), ``, ``, ``)
	tree := nradix.NewTree(2)
	tree.AddCIDR(`3.0.0.0/8`, ProviderAWS)
	m.tree.Store(tree)

	m.Refresh() // both URLs empty -> zero entries -> keep previous
	if ok, provider := m.Check(`3.1.2.3`); !ok || provider != ProviderAWS {
		t.Fatalf("expected previous list retained after empty refresh")
	}
}
