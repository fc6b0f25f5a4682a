package store

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

// Cursor is the decoded resume position of a descending scan: the sort key
// of the last item on the previous page. The encoded form is shared by both
// backends so cursors survive a backend migration.
type Cursor struct {
	PublishedAt time.Time
	ID          string
}

type cursorWire struct {
	P string `json:"p"`
	I string `json:"i"`
}

// EncodeCursor builds the opaque token for resuming after item.
func EncodeCursor(item domain.Item) string {
	raw, _ := json.Marshal(cursorWire{
		P: item.PublishedAt.UTC().Format(time.RFC3339),
		I: item.ID,
	})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses an opaque cursor token. A malformed or foreign token
// returns ok=false, which callers treat as "start from the beginning".
func DecodeCursor(token string) (Cursor, bool) {
	if token == "" {
		return Cursor{}, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, false
	}
	var w cursorWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return Cursor{}, false
	}
	ts, err := time.Parse(time.RFC3339, w.P)
	if err != nil || w.I == "" {
		return Cursor{}, false
	}
	return Cursor{PublishedAt: ts.UTC(), ID: w.I}, true
}
