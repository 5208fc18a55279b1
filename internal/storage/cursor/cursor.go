// Package cursor provides opaque pagination token encoding for ledger
// history pages. Tokens carry only a sequence position; handing clients
// an opaque string keeps the paging contract independent of the ledger's
// key layout.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursor is the internal state of a pagination token.
type Cursor struct {
	// AfterSeq is the last sequence number the previous page covered.
	AfterSeq uint64 `json:"after_seq"`
}

// Encode encodes a cursor to an opaque base64 string.
func Encode(c Cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// Decode decodes an opaque base64 string back to a cursor. Returns an
// error if the token is malformed.
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, fmt.Errorf("empty token")
	}
	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode base64: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("unmarshal cursor: %w", err)
	}
	return c, nil
}
