package activity

import (
	"reflect"
	"testing"
)

func TestDiffDocuments(t *testing.T) {
	cases := []struct {
		name   string
		before map[string]any
		after  map[string]any
		expect []Change
	}{
		{
			name:   "nothing explicit",
			expect: nil,
		},
		{
			name:   "created",
			after:  map[string]any{"features": map[string]any{"dark_mode": true}},
			expect: []Change{{Path: "features.dark_mode", New: true}},
		},
		{
			name:   "unchanged",
			before: map[string]any{"port": 8080.0},
			after:  map[string]any{"port": 8080.0},
			expect: nil,
		},
		{
			name:   "updated and dropped",
			before: map[string]any{"port": 8080.0, "host": "a"},
			after:  map[string]any{"port": 9090.0},
			expect: []Change{
				{Path: "host", Old: "a"},
				{Path: "port", Old: 8080.0, New: 9090.0},
			},
		},
		{
			name:   "tuple gaps are implicit",
			before: map[string]any{"pair": []any{7.0, nil}},
			after:  map[string]any{"pair": []any{nil, 8.0}},
			expect: []Change{
				{Path: "pair.0", Old: 7.0},
				{Path: "pair.1", New: 8.0},
			},
		},
		{
			name:   "explicit null option",
			before: map[string]any{"timeout": 5.0},
			after:  map[string]any{"timeout": nil},
			expect: []Change{{Path: "timeout", Old: 5.0}},
		},
		{
			name:   "empty containers are leaves",
			before: map[string]any{"tags": []any{"a"}},
			after:  map[string]any{"tags": []any{}},
			expect: []Change{
				{Path: "tags", New: []any{}},
				{Path: "tags.0", Old: "a"},
			},
		},
		{
			name:   "variant switch",
			before: map[string]any{"shape": map[string]any{"Named": map[string]any{"width": 3.0}}},
			after:  map[string]any{"shape": "Empty"},
			expect: []Change{
				{Path: "shape", New: "Empty"},
				{Path: "shape.Named.width", Old: 3.0},
			},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := DiffDocuments(tc.before, tc.after)
			if !reflect.DeepEqual(got, tc.expect) {
				t.Fatalf("expected %#v, got %#v", tc.expect, got)
			}
		})
	}
}
