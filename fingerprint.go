package lumengo

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Fingerprint derives a deterministic key from a request. The request is
// serialized to canonical JSON (object keys sorted at every depth) before
// hashing, so two semantically identical requests hash identically even when
// map-valued fields were populated in different orders.
func Fingerprint(req *Request) string {
	raw, err := json.Marshal(req)
	if err != nil {
		// Marshal of Request cannot fail for JSON-safe field types; fall
		// back to an empty-body hash rather than aborting the caller.
		raw = []byte("{}")
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		decoded = nil
	}

	var buf bytes.Buffer
	writeCanonical(&buf, decoded)

	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

// writeCanonical renders v as JSON with object keys in sorted order. Arrays
// keep their element order: message order is semantically significant.
func writeCanonical(buf *bytes.Buffer, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			writeCanonical(buf, val[k])
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, item)
		}
		buf.WriteByte(']')
	default:
		b, err := json.Marshal(val)
		if err != nil {
			buf.WriteString("null")
			return
		}
		buf.Write(b)
	}
}
