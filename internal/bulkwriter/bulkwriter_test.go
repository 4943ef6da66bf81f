package bulkwriter

import (
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/hit"
)

func TestDeadLetterQueueStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlq.bolt")
	dlq, err := newDeadLetterQueue(path)
	if err != nil {
		t.Fatalf("newDeadLetterQueue: %v", err)
	}
	defer dlq.Close()

	batch := []hit.Hit{{CompanyID: "1", PiXLID: "1"}, {CompanyID: "1", PiXLID: "2"}}
	if err := dlq.Store(batch); err != nil {
		t.Fatalf("Store: %v", err)
	}

	var got []hit.Hit
	err = dlq.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(deadLetterBucket).ForEach(func(_, v []byte) error {
			decoded, derr := decodeBatch(v)
			got = append(got, decoded...)
			return derr
		})
	})
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(got) != 2 || got[1].PiXLID != "2" {
		t.Fatalf("unexpected stored batch: %+v", got)
	}
}

func TestColumnOrderMatchesOrdinalMapping(t *testing.T) {
	want := []string{
		"CompanyId", "PixelId", "Address", "RequestPath", "QueryString",
		"HeadersJson", "UserAgent", "Referrer", "ReceivedAt",
	}
	if len(columnOrder) != len(want) {
		t.Fatalf("unexpected column count: %d", len(columnOrder))
	}
	for i, c := range want {
		if columnOrder[i] != c {
			t.Fatalf("column %d: want %s got %s", i, c, columnOrder[i])
		}
	}
}
