package extract

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/content-extractor/constants"
)

// Options is the open per-job configuration document. Keys may appear at the
// top level or inside a section named after a strategy ("pdf_ocr": {...});
// For merges the section over the top level.
type Options map[string]any

// ParseOptions decodes a JSON object. Empty input yields empty options.
func ParseOptions(raw []byte) (Options, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return Options{}, nil
	}
	var o Options
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, err
	}
	if o == nil {
		o = Options{}
	}
	return o, nil
}

// With returns a shallow copy of o with overlay applied on top.
func (o Options) With(overlay Options) Options {
	out := make(Options, len(o)+len(overlay))
	for k, v := range o {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

// For returns the effective options for one strategy.
func (o Options) For(s constants.Strategy) Options {
	section, _ := o[string(s)].(map[string]any)
	if len(section) == 0 {
		return o
	}
	return o.With(Options(section))
}

func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

func (o Options) String(key, def string) string {
	switch v := o[key].(type) {
	case string:
		if v != "" {
			return v
		}
	case json.Number:
		return v.String()
	}
	return def
}

func (o Options) Float(key string, def float64) float64 {
	switch v := o[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func (o Options) Int(key string, def int) int {
	if !o.Has(key) {
		return def
	}
	f := o.Float(key, math.NaN())
	if math.IsNaN(f) {
		return def
	}
	return int(f)
}

func (o Options) Bool(key string, def bool) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Seconds reads a number of seconds as a duration.
func (o Options) Seconds(key string, def time.Duration) time.Duration {
	f := o.Float(key, -1)
	if f <= 0 {
		return def
	}
	return time.Duration(f * float64(time.Second))
}

// Map returns a nested object option, or nil.
func (o Options) Map(key string) map[string]any {
	m, _ := o[key].(map[string]any)
	return m
}
