package internal

import "fmt"

// Flatten takes a nested payload and returns a map with the keys flattened
// into a single level, nested keys joined with ".". Array elements get
// indexed keys, so `{"commits": [{"id": 1}]}` yields `commits[0].id`.
// Priority rules evaluate against the flattened form.
func Flatten(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for key, value := range data {
		flattenInto(out, key, value)
	}
	return out
}

func flattenInto(out map[string]interface{}, path string, value interface{}) {
	switch typed := value.(type) {
	case map[string]interface{}:
		for key, child := range typed {
			flattenInto(out, fmt.Sprintf("%s.%s", path, key), child)
		}
	case []interface{}:
		out[path] = typed
		for i, child := range typed {
			flattenInto(out, fmt.Sprintf("%s[%d]", path, i), child)
		}
	default:
		out[path] = value
	}
}
