package forgeenrich

import (
	"context"
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/hit"
)

// BoltGeoStore implements OnlineGeoStore on top of a bbolt file, letting
// the forge process rebuild its known-address set across restarts
// without re-querying the online provider for addresses it already has
// a fresh answer for.
type BoltGeoStore struct {
	db *bolt.DB
}

type boltGeoStore = BoltGeoStore

var (
	geoBucketKnown  = []byte("online_geo_known")
	geoBucketRecord = []byte("online_geo_record")
)

// NewBoltGeoStore opens (creating if absent) the bbolt file at path and
// prepares its buckets. The caller owns the returned store and must
// Close it on shutdown.
func NewBoltGeoStore(path string) (*BoltGeoStore, error) {
	return newBoltGeoStore(path)
}

func newBoltGeoStore(path string) (*boltGeoStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(geoBucketKnown); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(geoBucketRecord)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &boltGeoStore{db: db}, nil
}

func (s *boltGeoStore) LoadKnown(ctx context.Context) (map[string]time.Time, error) {
	known := make(map[string]time.Time)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(geoBucketKnown)
		return b.ForEach(func(k, v []byte) error {
			t, err := time.Parse(time.RFC3339Nano, string(v))
			if err != nil {
				return nil
			}
			known[string(k)] = t
			return nil
		})
	})
	return known, err
}

func (s *boltGeoStore) Save(ctx context.Context, addr string, rec hit.GeoRecord, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(geoBucketKnown).Put([]byte(addr), []byte(at.UTC().Format(time.RFC3339Nano))); err != nil {
			return err
		}
		val, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return tx.Bucket(geoBucketRecord).Put([]byte(addr), val)
	})
}

func (s *boltGeoStore) Close() error {
	return s.db.Close()
}
