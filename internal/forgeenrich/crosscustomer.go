package forgeenrich

import (
	"time"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/ttlstore"
)

const (
	crossCustomerTTL    = 10 * time.Minute
	crossCustomerWindow = 5 * time.Minute
	crossCustomerAlert  = 3
	cleanupInterval     = time.Minute
)

type companySighting struct {
	companyID string
	at        time.Time
}

type crossCustomerHistory struct {
	sightings []companySighting
}

func newCrossCustomerHistory() interface{} { return &crossCustomerHistory{} }

// crossCustomerStore tracks, per (address, fingerprint), the set of
// distinct company IDs seen within a trailing 5-minute window.
type crossCustomerStore struct {
	store *ttlstore.Store
}

func newCrossCustomerStore() *crossCustomerStore {
	return &crossCustomerStore{store: ttlstore.New(crossCustomerTTL, cleanupInterval)}
}

func (c *crossCustomerStore) Record(addr, fingerprint, companyID string) (distinct int) {
	key := addr + "|" + fingerprint
	now := time.Now().UTC()
	c.store.Update(key, crossCustomerTTL, newCrossCustomerHistory, func(v interface{}) {
		h := v.(*crossCustomerHistory)
		cutoff := now.Add(-crossCustomerWindow)
		i := 0
		for i < len(h.sightings) && h.sightings[i].at.Before(cutoff) {
			i++
		}
		if i > 0 {
			h.sightings = append(h.sightings[:0], h.sightings[i:]...)
		}
		h.sightings = append(h.sightings, companySighting{companyID: companyID, at: now})

		seen := make(map[string]struct{}, len(h.sightings))
		for _, s := range h.sightings {
			seen[s.companyID] = struct{}{}
		}
		distinct = len(seen)
	})
	return distinct
}
