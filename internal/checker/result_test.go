package checker

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruthy(t *testing.T) {
	type custom struct{ A int }

	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"nil", nil, false},
		{"true", true, true},
		{"false", false, false},
		{"empty string", "", false},
		{"string", "ok", true},
		{"empty bytes", []byte{}, false},
		{"bytes", []byte("x"), true},
		{"zero int", 0, false},
		{"int", 3, true},
		{"zero float", 0.0, false},
		{"float", 0.5, true},
		{"zero json number", json.Number("0"), false},
		{"json number", json.Number("1.5"), true},
		{"empty map", map[string]any{}, false},
		{"map", map[string]any{"a": false}, true},
		{"empty list", []any{}, false},
		{"list", []string{"svc"}, true},
		{"empty typed map", map[string]int{}, false},
		{"uint", uint8(0), false},
		{"struct", custom{}, true},
		{"nil pointer", (*custom)(nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truthy(tt.value))
		})
	}
}

func TestWalk(t *testing.T) {
	v := map[string]any{"a": map[string]any{"b": "c"}, "flags": map[string]bool{"x": true}}

	assert.Equal(t, "c", walk(v, []string{"a", "b"}))
	assert.Equal(t, true, walk(v, []string{"flags", "x"}))
	assert.Equal(t, v, walk(v, nil))
	assert.Equal(t, map[string]any{"b": "c"}, walk(v, []string{"a", ""}))
	assert.Nil(t, walk(v, []string{"a", "b", "c"}))
	assert.Nil(t, walk(v, []string{"nope"}))
}
