// Package checksum computes content digests used to detect changed records.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/starford/bibkit/internal/models"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Record returns a digest of rec's key, type and fields. Field order does not
// affect the result.
func Record(rec models.Record) string {
	// Map keys are marshalled in sorted order.
	data, _ := json.Marshal(struct {
		Key    string            `json:"key"`
		Type   string            `json:"type"`
		Fields map[string]string `json:"fields"`
	}{rec.Key, rec.Type, rec.Fields})
	return Sum(data)
}
