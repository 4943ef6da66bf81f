// Package datacenter implements longest-prefix CIDR matching against a
// periodically refreshed list of cloud-provider ranges. Readers take an
// atomic snapshot of an immutable nradix tree and never take a lock,
// matching the "atomic pointer to immutable structure" idiom the teacher
// uses for its CIDR-based source router.
package datacenter

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/asergeyev/nradix"
	"github.com/google/renameio"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/galog"
)

const (
	ProviderAWS = `AWS`
	ProviderGCP = `GCP`
)

type cidrEntry struct {
	CIDR     string `json:"cidr"`
	Provider string `json:"provider"`
}

// Matcher holds the current CIDR snapshot and refreshes it on an
// interval. The zero value is not usable; construct with New.
type Matcher struct {
	tree     atomic.Pointer[nradix.Tree]
	lg       *galog.Logger
	awsURL   string
	gcpURL   string
	snapPath string
	client   *http.Client
}

func New(lg *galog.Logger, awsURL, gcpURL, snapshotPath string) *Matcher {
	m := &Matcher{
		lg:       lg,
		awsURL:   awsURL,
		gcpURL:   gcpURL,
		snapPath: snapshotPath,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	if snapshotPath != `` {
		if tree := loadSnapshot(snapshotPath); tree != nil {
			m.tree.Store(tree)
		}
	}
	if m.tree.Load() == nil {
		m.tree.Store(nradix.NewTree(0))
	}
	return m
}

// Check reports whether addr falls inside a known cloud-provider range,
// and if so which provider. A single atomic load plus one radix-tree
// lookup — no locks, per the concurrency design.
func (m *Matcher) Check(addr string) (matched bool, provider string) {
	tree := m.tree.Load()
	if tree == nil {
		return false, ``
	}
	v, err := tree.FindCIDR(addr)
	if err != nil || v == nil {
		return false, ``
	}
	provider, matched = v.(string)
	return
}

// Refresh fetches both upstream feeds and, if at least one produced
// entries, atomically swaps in the new tree. If both feeds fail (or
// produce zero entries) the previous list is retained and a single log
// entry records the failure, per the boundary-behavior contract.
func (m *Matcher) Refresh() {
	var entries []cidrEntry

	if es, err := m.fetchFeed(m.awsURL, ProviderAWS, awsCIDRs); err != nil {
		m.lg.Warn("failed to refresh AWS ranges", galog.KVErr(err))
	} else {
		entries = append(entries, es...)
	}
	if es, err := m.fetchFeed(m.gcpURL, ProviderGCP, gcpCIDRs); err != nil {
		m.lg.Warn("failed to refresh GCP ranges", galog.KVErr(err))
	} else {
		entries = append(entries, es...)
	}

	if len(entries) == 0 {
		m.lg.Warn("datacenter CIDR refresh produced zero entries, keeping previous list")
		return
	}

	tree := nradix.NewTree(len(entries))
	var added int
	for _, e := range entries {
		if err := tree.AddCIDR(e.CIDR, e.Provider); err == nil {
			added++
		}
	}
	m.tree.Store(tree)
	m.lg.Info("datacenter CIDR list refreshed", galog.KV("entries", added))
	if m.snapPath != `` {
		if err := saveSnapshot(m.snapPath, entries); err != nil {
			m.lg.Warn("failed to persist CIDR snapshot", galog.KVErr(err))
		}
	}
}

// Run periodically calls Refresh until the stop channel closes. Intended
// to be launched as a background goroutine at process start.
func (m *Matcher) Run(interval time.Duration, stop <-chan struct{}) {
	m.Refresh()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			m.Refresh()
		case <-stop:
			return
		}
	}
}

type cidrParseFunc func([]byte, string) []cidrEntry

func (m *Matcher) fetchFeed(url, provider string, parse cidrParseFunc) ([]cidrEntry, error) {
	if url == `` {
		return nil, nil
	}
	resp, err := m.client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 32*1024*1024))
	if err != nil {
		return nil, err
	}
	return parse(body, provider), nil
}

// awsIPRanges mirrors the shape of https://ip-ranges.amazonaws.com/ip-ranges.json
type awsIPRanges struct {
	Prefixes     []struct{ IPPrefix string `json:"ip_prefix"` }   `json:"prefixes"`
	IPv6Prefixes []struct{ IPv6Prefix string `json:"ipv6_prefix"` } `json:"ipv6_prefixes"`
}

func awsCIDRs(b []byte, provider string) []cidrEntry {
	var r awsIPRanges
	if json.Unmarshal(b, &r) != nil {
		return nil
	}
	out := make([]cidrEntry, 0, len(r.Prefixes)+len(r.IPv6Prefixes))
	for _, p := range r.Prefixes {
		out = append(out, cidrEntry{CIDR: p.IPPrefix, Provider: provider})
	}
	for _, p := range r.IPv6Prefixes {
		out = append(out, cidrEntry{CIDR: p.IPv6Prefix, Provider: provider})
	}
	return out
}

// gcpIPRanges mirrors the shape of https://www.gstatic.com/ipranges/cloud.json
type gcpIPRanges struct {
	Prefixes []struct {
		IPv4Prefix string `json:"ipv4Prefix"`
		IPv6Prefix string `json:"ipv6Prefix"`
	} `json:"prefixes"`
}

func gcpCIDRs(b []byte, provider string) []cidrEntry {
	var r gcpIPRanges
	if json.Unmarshal(b, &r) != nil {
		return nil
	}
	out := make([]cidrEntry, 0, len(r.Prefixes))
	for _, p := range r.Prefixes {
		if p.IPv4Prefix != `` {
			out = append(out, cidrEntry{CIDR: p.IPv4Prefix, Provider: provider})
		}
		if p.IPv6Prefix != `` {
			out = append(out, cidrEntry{CIDR: p.IPv6Prefix, Provider: provider})
		}
	}
	return out
}

// saveSnapshot persists the flat CIDR list atomically via renameio, so a
// crash mid-write never leaves a truncated snapshot for the next startup
// to load.
func saveSnapshot(path string, entries []cidrEntry) error {
	b, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, b, 0640)
}

func loadSnapshot(path string) *nradix.Tree {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var entries []cidrEntry
	if json.Unmarshal(b, &entries) != nil {
		return nil
	}
	tree := nradix.NewTree(len(entries))
	for _, e := range entries {
		tree.AddCIDR(e.CIDR, e.Provider)
	}
	return tree
}
