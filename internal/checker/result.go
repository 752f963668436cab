package checker

import (
	"encoding/json"
	"reflect"
)

// Report is the outcome of running every permitted check.
type Report struct {
	Results map[string]any
	Healthy bool
}

// Truthy reports whether a check result counts as healthy. false, nil, zero
// numbers, empty strings and empty collections are unhealthy; everything
// else is healthy.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []byte:
		return len(t) > 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case map[string]any:
		return len(t) > 0
	case []any:
		return len(t) > 0
	case []string:
		return len(t) > 0
	case map[string]bool:
		return len(t) > 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.String:
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	case reflect.Bool:
		return rv.Bool()
	}
	return true
}

// coerce replaces a missing result with false.
func coerce(v any) any {
	if v == nil {
		return false
	}
	return v
}

// walk descends into map results along path. Any missing segment, or a
// segment applied to something that is not a map, yields nil.
func walk(v any, path []string) any {
	for _, segment := range path {
		if segment == "" {
			continue
		}
		switch m := v.(type) {
		case map[string]any:
			next, ok := m[segment]
			if !ok {
				return nil
			}
			v = next
		case map[string]bool:
			next, ok := m[segment]
			if !ok {
				return nil
			}
			v = next
		default:
			return nil
		}
	}
	return v
}
