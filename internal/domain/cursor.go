package domain

import (
	"encoding/base64"
	"encoding/json"
)

// cursorEnvelope is the wire shape of a pagination cursor: the ordered sort
// tuple of the last hit of the previous page, wrapped so the format can grow.
type cursorEnvelope struct {
	Sort []any `json:"sort"`
}

// EncodeCursor packs a sort tuple into an opaque continuation token. An empty
// tuple yields an empty token.
func EncodeCursor(sortValues []any) string {
	if len(sortValues) == 0 {
		return ""
	}
	data, err := json.Marshal(cursorEnvelope{Sort: sortValues})
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeCursor unpacks a continuation token. A malformed token reports
// ok=false and must be treated as an absent cursor (pagination restarts),
// never as an error. The payload is only trusted for continuation position.
func DecodeCursor(raw string) (sortValues []any, ok bool) {
	if raw == "" {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, false
	}
	var env cursorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false
	}
	if len(env.Sort) == 0 {
		return nil, false
	}
	return env.Sort, true
}
