// Package scopekey derives canonical partition keys from scope tuples.
package scopekey

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// MaxPartitionKeyLen is the longest partition key DynamoDB accepts (bytes).
const MaxPartitionKeyLen = 2048

// Encode renders an ordered (name, value) tuple as a stable key.
// Pairs are joined with '&' and each component is query-escaped, so the
// encoding is injective: two tuples share a key only if they are equal.
// An empty tuple encodes to "".
func Encode(names, values []string) string {
	if len(names) == 0 {
		return ""
	}
	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(name))
		b.WriteByte('=')
		if i < len(values) {
			b.WriteString(url.QueryEscape(values[i]))
		}
	}
	return b.String()
}

// Decode reverses Encode.
func Decode(key string) (names, values []string, err error) {
	if key == "" {
		return nil, nil, nil
	}
	for _, pair := range strings.Split(key, "&") {
		rawName, rawValue, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, nil, fmt.Errorf("scopekey: malformed pair %q", pair)
		}
		name, err := url.QueryUnescape(rawName)
		if err != nil {
			return nil, nil, fmt.Errorf("scopekey: name %q: %w", rawName, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, nil, fmt.Errorf("scopekey: value %q: %w", rawValue, err)
		}
		names = append(names, name)
		values = append(values, value)
	}
	return names, values, nil
}

// PartitionKey prefixes an encoded scope key for use as a storage partition key.
// Keys that would exceed MaxPartitionKeyLen are replaced by a 128-bit hash of
// the encoded key, which keeps every partition addressable.
func PartitionKey(prefix, key string) string {
	pk := prefix + key
	if len(pk) <= MaxPartitionKeyLen {
		return pk
	}
	h := sha256.Sum256([]byte(key))
	return prefix + "sha256:" + hex.EncodeToString(h[:16])
}
