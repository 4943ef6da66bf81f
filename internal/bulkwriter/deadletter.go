package bulkwriter

import (
	"encoding/json"

	"github.com/M1Legion/SmartPiXL-Modern-sub004/internal/hit"
)

func encodeBatch(batch []hit.Hit) ([]byte, error) {
	return json.Marshal(batch)
}

func decodeBatch(b []byte) ([]hit.Hit, error) {
	var batch []hit.Hit
	err := json.Unmarshal(b, &batch)
	return batch, err
}
