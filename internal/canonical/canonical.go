// Package canonical produces a deterministic string encoding of JSON-like
// values, independent of map insertion order, and the SHA-256 signature
// computed over it. Two logically equal values always canonicalize to
// byte-identical strings, which is what makes export signatures verifiable by
// re-canonicalizing rather than comparing serialized bytes.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Canonicalize encodes a JSON-compatible value deterministically: scalars as
// standard JSON, arrays in order, object keys sorted bytewise, no whitespace.
// Arbitrary Go values are normalized through encoding/json first, so structs
// and typed maps are accepted.
func Canonicalize(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode value: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber() // keep numeric literals exactly as written
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return "", fmt.Errorf("decode value: %w", err)
	}
	var b strings.Builder
	writeCanonical(&b, tree)
	return b.String(), nil
}

// Sign returns the lowercase hex SHA-256 digest over the UTF-8 bytes of the
// canonical serialization of v.
func Sign(v any) (string, error) {
	s, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:]), nil
}

func writeCanonical(b *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if t {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case json.Number:
		b.WriteString(t.String())
	case string:
		b.WriteString(encodeString(t))
	case []any:
		b.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, e)
		}
		b.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(encodeString(k))
			b.WriteByte(':')
			writeCanonical(b, t[k])
		}
		b.WriteByte('}')
	}
}

// encodeString JSON-escapes a string without HTML escaping, so answer HTML
// like "<p>" canonicalizes as-is.
func encodeString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s) // encoding a string cannot fail
	return strings.TrimRight(buf.String(), "\n")
}
