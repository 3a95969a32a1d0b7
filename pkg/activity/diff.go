package activity

import (
	"reflect"
	"sort"
	"strconv"
)

// DiffDocuments compares two explicit documents, as produced by
// Overlay.ExplicitDocument, and returns one Change per leaf path whose value
// differs, sorted by path. Objects and arrays are walked; anything else,
// including an empty object or array, is a leaf. A null array element is an
// implicit position and is skipped. A nil document has no explicit positions.
func DiffDocuments(before, after map[string]any) []Change {
	old := flatten(before)
	next := flatten(after)

	paths := make([]string, 0, len(old)+len(next))
	for path := range old {
		paths = append(paths, path)
	}
	for path := range next {
		if _, ok := old[path]; !ok {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)

	var changes []Change
	for _, path := range paths {
		was, hadOld := old[path]
		now, hasNew := next[path]
		if hadOld && hasNew && reflect.DeepEqual(was, now) {
			continue
		}
		changes = append(changes, Change{Path: path, Old: was, New: now})
	}
	return changes
}

func flatten(doc map[string]any) map[string]any {
	out := make(map[string]any)
	for key, value := range doc {
		flattenInto(out, key, value)
	}
	return out
}

func flattenInto(out map[string]any, path string, value any) {
	switch v := value.(type) {
	case map[string]any:
		if len(v) == 0 {
			out[path] = v
			return
		}
		for key, child := range v {
			flattenInto(out, path+"."+key, child)
		}
	case []any:
		if len(v) == 0 {
			out[path] = v
			return
		}
		for i, child := range v {
			if child == nil {
				continue
			}
			flattenInto(out, path+"."+strconv.Itoa(i), child)
		}
	default:
		out[path] = v
	}
}
