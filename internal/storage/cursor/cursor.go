// Package cursor encodes opaque pagination tokens for the event journal.
// Tokens carry the last-seen sequence number plus a checksum, so tampered or
// truncated tokens are rejected instead of silently repaging.
package cursor

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

type payload struct {
	Seq      uint64 `json:"seq"`
	Checksum string `json:"sum"`
}

func checksum(seq uint64) string {
	digest := sha256.Sum256([]byte(fmt.Sprintf("journal:%d", seq)))
	return hex.EncodeToString(digest[:8])
}

// Encode builds a token for paging forward from seq.
func Encode(seq uint64) string {
	data, _ := json.Marshal(payload{Seq: seq, Checksum: checksum(seq)})
	return base64.RawURLEncoding.EncodeToString(data)
}

// Decode validates a token and returns the sequence number to page from.
// An empty token means the start of the journal.
func Decode(token string) (uint64, error) {
	if token == "" {
		return 0, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("decode cursor: %w", err)
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return 0, fmt.Errorf("unmarshal cursor: %w", err)
	}
	if p.Checksum != checksum(p.Seq) {
		return 0, fmt.Errorf("cursor checksum mismatch")
	}
	return p.Seq, nil
}
