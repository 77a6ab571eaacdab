package bizctx

import (
	"reflect"
	"strings"
)

// union appends the entries of add missing from base, keeping base order
// and then insertion order. Blank entries are ignored.
func union(base, add []string) []string {
	seen := make(map[string]bool, len(base)+len(add))
	for _, s := range base {
		seen[s] = true
	}
	for _, s := range add {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		base = append(base, s)
	}
	return base
}

// deepMerge overwrites existing with incoming. When both are maps the merge
// recurses so sibling keys of a nested constraint survive.
func deepMerge(existing, incoming any) any {
	em, ok1 := existing.(map[string]any)
	im, ok2 := incoming.(map[string]any)
	if !ok1 || !ok2 {
		return incoming
	}
	out := make(map[string]any, len(em)+len(im))
	for k, v := range em {
		out[k] = v
	}
	for k, v := range im {
		out[k] = deepMerge(out[k], v)
	}
	return out
}

// deepCopy copies the JSON-like shapes constraints are made of.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = deepCopy(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = deepCopy(vv)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

// equalValues treats a nested map as equal when every incoming key already
// holds the same value; adding keys to a nested constraint is not a conflict.
func equalValues(existing, incoming any) bool {
	em, ok1 := existing.(map[string]any)
	im, ok2 := incoming.(map[string]any)
	if ok1 && ok2 {
		for k, v := range im {
			ev, ok := em[k]
			if ok && !equalValues(ev, v) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(existing, incoming)
}
