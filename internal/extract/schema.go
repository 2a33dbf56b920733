package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/common"
)

// OptionsSchema returns the JSON Schema (draft 2020-12) the per-job options
// document is validated against. Unknown keys are allowed.
func OptionsSchema() map[string]any {
	keyframe := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mode":              map[string]any{"type": "string", "enum": []string{"interval", "scene", "hybrid"}},
			"interval_secs":     posNumber(),
			"threshold":         map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			"min_interval_secs": posNumber(),
			"max_frames":        map[string]any{"type": "integer", "minimum": 1},
		},
		"required": []string{"mode"},
	}
	props := map[string]any{
		"language":             map[string]any{"type": "string", "minLength": 2},
		"dpi":                  map[string]any{"type": "integer", "minimum": 72, "maximum": 1200},
		"max_pages":            map[string]any{"type": "integer", "minimum": 0},
		"engine":               map[string]any{"type": "string", "enum": []string{"pdftotext", "native"}},
		"timeout_secs":         posNumber(),
		"extended_timeout":     map[string]any{"type": "boolean"},
		"metadata_only":        map[string]any{"type": "boolean"},
		"prompt":               map[string]any{"type": "string", "minLength": 1},
		"max_dimension":        map[string]any{"type": "integer", "minimum": 64},
		"keyframe_interval":    posNumber(),
		"scene_threshold":      map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"max_frames":           map[string]any{"type": "integer", "minimum": 1},
		"keyframe_strategy":    keyframe,
		"fusion_window_secs":   posNumber(),
		"chunk_secs":           posNumber(),
		"overlap_secs":         map[string]any{"type": "number", "minimum": 0},
		"chunk_threshold_secs": posNumber(),
		"max_bytes":            map[string]any{"type": "integer", "minimum": 1},
		"model":                map[string]any{"type": "string"},
		"auto_ocr":             map[string]any{"type": "boolean"},
		"ocr":                  map[string]any{"type": "boolean"},
		"preview":              map[string]any{"type": "boolean"},
		"summarize":            map[string]any{"type": "boolean"},
		"cache":                map[string]any{"type": "boolean"},
		"extract_audio":        map[string]any{"type": "boolean"},
		"extract_keyframes":    map[string]any{"type": "boolean"},
		"describe_frames":      map[string]any{"type": "boolean"},
		"min_chars_per_page":   map[string]any{"type": "integer", "minimum": 0},
		"max_rows":             map[string]any{"type": "integer", "minimum": 1},
		"schema":               map[string]any{"type": "object"},
	}
	section := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": true,
	}
	sections := make(map[string]any, len(constants.AllStrategies()))
	for _, s := range constants.AllStrategies() {
		sections[string(s)] = map[string]any{"$ref": "#/$defs/options"}
	}
	return map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"$defs":      map[string]any{"options": section},
		"allOf":      []any{map[string]any{"$ref": "#/$defs/options"}},
		"type":       "object",
		"properties": sections,
	}
}

func posNumber() map[string]any {
	return map[string]any{"type": "number", "exclusiveMinimum": 0}
}

var (
	optionsSchemaOnce sync.Once
	optionsSchema     *jsonschema.Schema
	optionsSchemaErr  error
)

// ValidateOptions checks the options document. Violations are InvalidInput.
func ValidateOptions(o Options) error {
	optionsSchemaOnce.Do(func() {
		optionsSchema, optionsSchemaErr = CompileSchema(OptionsSchema())
	})
	if optionsSchemaErr != nil {
		return common.Internal("options schema", optionsSchemaErr)
	}
	if o == nil {
		o = Options{}
	}
	if problems := ValidateWith(optionsSchema, map[string]any(o)); len(problems) > 0 {
		return common.InvalidInputf("invalid options: %v", problems)
	}
	return nil
}

// CompileSchema compiles a JSON Schema given as a generic map.
func CompileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateWith validates doc (any decoded document) and returns the
// violation messages, empty when it conforms.
func ValidateWith(schema *jsonschema.Schema, doc any) []string {
	// round-trip so YAML/TOML values become plain JSON types
	b, err := json.Marshal(doc)
	if err != nil {
		return []string{fmt.Sprintf("document is not JSON-representable: %v", err)}
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return []string{fmt.Sprintf("unmarshal document: %v", err)}
	}
	err = schema.Validate(v)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	var out []string
	for _, e := range ve.BasicOutput().Errors {
		if e.Error == "" {
			continue
		}
		loc := e.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		out = append(out, loc+": "+e.Error)
	}
	if len(out) == 0 {
		out = []string{ve.Error()}
	}
	sort.Strings(out)
	return out
}
