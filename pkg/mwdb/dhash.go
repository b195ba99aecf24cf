package mwdb

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
)

// ConfigDhash computes the identifier MWDB assigns to a configuration.
//
// Scalars are hashed as their textual representation, lists as the sorted list
// of their element hashes and maps as the list of [key, value hash] pairs in
// key order. Top level in-blob values carrying the blob itself, i.e.
// {"in-blob": {"content": ...}}, are replaced by the SHA256 of the content
// before hashing, so a config hashes the same before and after its blobs are
// uploaded.
//
// A float64 holding a whole number is hashed as an integer, since that is what
// encoding/json produces for integers. Configs decoded with DecodeConfig keep
// the number text and hash 1.0 and 1 differently, as MWDB does.
func ConfigDhash(cfg map[string]any) string {
	normalized := make(map[string]any, len(cfg))
	for k, v := range cfg {
		normalized[k] = v
		m, ok := v.(map[string]any)
		if !ok || len(m) != 1 {
			continue
		}
		blob, ok := m["in-blob"].(map[string]any)
		if !ok {
			continue
		}
		normalized[k] = map[string]any{"in-blob": sha256Hex(pyStr(blob["content"]))}
	}

	return dhash(normalized)
}

// DecodeConfig decodes a JSON configuration keeping numbers as json.Number.
func DecodeConfig(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var cfg map[string]any
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("could not decode config: %w", err)
	}
	if cfg == nil {
		return nil, errors.New("could not decode config: not a JSON object")
	}

	return cfg, nil
}

// ConfigDhashJSON computes the identifier of a JSON encoded configuration.
func ConfigDhashJSON(data []byte) (string, error) {
	cfg, err := DecodeConfig(data)
	if err != nil {
		return "", err
	}

	return ConfigDhash(cfg), nil
}

func dhash(v any) string {
	switch v := v.(type) {
	case []any:
		hashes := make([]string, 0, len(v))
		for _, item := range v {
			hashes = append(hashes, dhash(item))
		}
		slices.Sort(hashes)

		return dhash(pyList(hashes))
	case map[string]any:
		pairs := make([]any, 0, len(v))
		for _, k := range slices.Sorted(maps.Keys(v)) {
			pairs = append(pairs, []any{k, dhash(v[k])})
		}

		return dhash(pairs)
	default:
		return sha256Hex(pyStr(v))
	}
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))

	return hex.EncodeToString(sum[:])
}

// pyList renders a list of hex digests the way MWDB does before hashing it.
func pyList(items []string) string {
	quoted := make([]string, 0, len(items))
	for _, s := range items {
		quoted = append(quoted, "'"+s+"'")
	}

	return "[" + strings.Join(quoted, ", ") + "]"
}

// pyStr renders a JSON scalar the way MWDB does before hashing it.
func pyStr(v any) string {
	switch v := v.(type) {
	case nil:
		return "None"
	case string:
		return v
	case bool:
		if v {
			return "True"
		}

		return "False"
	case json.Number:
		return pyNumber(v)
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e21 {
			return strconv.FormatFloat(v, 'f', -1, 64)
		}

		return pyFloat(v)
	case float32:
		return pyStr(float64(v))
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	default:
		return fmt.Sprint(v)
	}
}

// pyNumber renders a JSON number like Python's str of the value json.loads
// makes of it: integers verbatim, anything with a fraction or exponent as a
// float.
func pyNumber(n json.Number) string {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		return s
	}

	f, err := n.Float64()
	if err != nil {
		return s
	}

	return pyFloat(f)
}

// pyFloat formats f like Python's float repr.
func pyFloat(f float64) string {
	if a := math.Abs(f); a >= 1e16 || (a != 0 && a < 1e-4) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}

	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}

	return s
}
