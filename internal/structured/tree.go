package structured

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/joseph-ayodele/content-extractor/constants"
)

func jsonMetadata(txt string) (map[string]any, any) {
	var v any
	if err := json.Unmarshal([]byte(txt), &v); err != nil {
		return map[string]any{"valid": false, "parse_error": err.Error()}, nil
	}
	return shapeOf(v), v
}

// shapeOf describes a decoded document: object keys, array length or primitive.
func shapeOf(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any{
			"valid":          true,
			"type":           "object",
			"top_level_keys": topKeys(t),
			"key_count":      len(t),
		}
	case []any:
		return map[string]any{"valid": true, "type": "array", "element_count": len(t)}
	default:
		return map[string]any{"valid": true, "type": "primitive"}
	}
}

func topKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > constants.MaxTopLevelKeysInMeta {
		keys = keys[:constants.MaxTopLevelKeysInMeta]
	}
	return keys
}

func ndjsonMetadata(txt string) map[string]any {
	var records, invalid int
	sc := bufio.NewScanner(strings.NewReader(txt))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if json.Valid([]byte(line)) {
			records++
		} else {
			invalid++
		}
	}
	return map[string]any{
		"valid":         invalid == 0,
		"record_count":  records,
		"invalid_lines": invalid,
	}
}

// yamlMetadata decodes every document in the stream. The shape reported is
// that of the first document.
func yamlMetadata(txt string) (map[string]any, any) {
	dec := yaml.NewDecoder(bytes.NewReader([]byte(txt)))
	var docs []any
	for {
		var v any
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return map[string]any{"valid": false, "parse_error": err.Error(), "document_count": len(docs)}, nil
		}
		docs = append(docs, normalizeYAML(v))
	}
	if len(docs) == 0 {
		return map[string]any{"valid": true, "type": "empty", "document_count": 0}, nil
	}
	meta := shapeOf(docs[0])
	meta["document_count"] = len(docs)
	if len(docs) == 1 {
		return meta, docs[0]
	}
	return meta, docs
}

// normalizeYAML turns any non-string-keyed maps into map[string]any.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[toString(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		for i := range t {
			t[i] = normalizeYAML(t[i])
		}
		return t
	default:
		return v
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return strings.Trim(string(b), `"`)
}

func tomlMetadata(txt string) (map[string]any, any) {
	var m map[string]any
	if err := toml.Unmarshal([]byte(txt), &m); err != nil {
		return map[string]any{"valid": false, "parse_error": err.Error()}, nil
	}
	tables := []string{}
	for k, v := range m {
		switch t := v.(type) {
		case map[string]any:
			tables = append(tables, k)
		case []any:
			if len(t) > 0 {
				if _, ok := t[0].(map[string]any); ok {
					tables = append(tables, k)
				}
			}
		case []map[string]any:
			tables = append(tables, k)
		}
	}
	sort.Strings(tables)
	return map[string]any{
		"valid":          true,
		"type":           "object",
		"top_level_keys": topKeys(m),
		"key_count":      len(m),
		"tables":         tables,
	}, m
}
