// Package sanitize strips script, markup and event-handler patterns from
// GraphQL variables before they are sent upstream.
package sanitize

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"

	"github.com/llehouerou/go-graphql-guard/pkg/jsonutil"
)

var (
	scriptBlockPattern  = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	jsProtocolPattern   = regexp.MustCompile(`(?i)javascript:`)
	eventHandlerPattern = regexp.MustCompile(`(?i)on\w+=`)
)

// String removes <script> blocks, "javascript:" prefixes and inline event
// handler assignments ("onload=", "onClick=") from s and trims surrounding
// whitespace.
func String(s string) string {
	s = scriptBlockPattern.ReplaceAllString(s, "")
	s = jsProtocolPattern.ReplaceAllString(s, "")
	s = eventHandlerPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Variables returns a sanitized copy of vars. The input is not modified.
//
// Strings are cleaned with String. Floats that are NaN or infinite become 0.
// In slices only string elements are cleaned; other elements are kept as is.
// Nested maps are sanitized recursively. Nil values, booleans and integers
// pass through unchanged. Any other type (typed maps and slices, named string
// types, structs, pointers) is first converted to its JSON form, the shape it
// has on the wire, and that form is sanitized.
func Variables(vars map[string]any) map[string]any {
	if vars == nil {
		return nil
	}
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		out[k] = value(v)
	}
	return out
}

func value(v any) any {
	switch v := v.(type) {
	case nil:
		return nil
	case string:
		return String(v)
	case float64:
		return finite(v)
	case float32:
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return float32(0)
		}
		return v
	case json.Number:
		f, err := v.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return json.Number("0")
		}
		return v
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			if s, ok := e.(string); ok {
				out[i] = String(s)
			} else {
				out[i] = e
			}
		}
		return out
	case []string:
		out := make([]string, len(v))
		for i, s := range v {
			out[i] = String(s)
		}
		return out
	case map[string]any:
		return Variables(v)
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return v
	default:
		return value(jsonutil.ToAny(jsonutil.FromAny(v)))
	}
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
