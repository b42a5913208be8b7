package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// Row is one normalized feed record: keys lower-cased with separators
// folded to underscores, values trimmed.
type Row map[string]string

var keyReplacer = strings.NewReplacer(" ", "_", ".", "_", "-", "_")

// Normalize folds the raw headers. When several headers fold to the same
// key, a header already in folded form wins, otherwise the lowest raw header
// in byte order does.
func Normalize(raw map[string]string) Row {
	headers := make([]string, 0, len(raw))
	for k := range raw {
		headers = append(headers, k)
	}
	sort.Strings(headers)

	row := make(Row, len(raw))
	canonical := make(map[string]bool, len(raw))
	for _, k := range headers {
		key := keyReplacer.Replace(strings.ToLower(strings.TrimSpace(k)))
		if key == "" {
			continue
		}
		exact := strings.TrimSpace(k) == key
		if _, seen := row[key]; seen && (canonical[key] || !exact) {
			continue
		}
		row[key] = strings.TrimSpace(raw[k])
		canonical[key] = exact
	}
	return row
}

// NaturalKey is invoice_id, falling back to doc_id. Spreadsheet exports turn
// numeric ids into floats, so a trailing ".0" is dropped.
func (r Row) NaturalKey() string {
	for _, field := range []string{"invoice_id", "doc_id"} {
		if v := strings.TrimSuffix(r[field], ".0"); v != "" {
			return v
		}
	}
	return ""
}

// Fingerprint hashes the row as a key-sorted list of pairs, so field order
// never matters and any key or value change does.
func Fingerprint(r Row) (string, error) {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([][2]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, [2]string{k, r[k]})
	}
	payload, err := json.Marshal(pairs)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// Fields returns the row as a JSON-able map.
func (r Row) Fields() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
