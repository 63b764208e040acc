// Package attrs reads slog-style key/value argument lists.
package attrs

// Strings indexes the string-valued pairs of a [key1, value1, key2, value2, ...]
// list. Non-string keys or values are skipped; a later key overwrites an earlier one.
func Strings(kv []any) map[string]string {
	out := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		if v, ok := kv[i+1].(string); ok {
			out[k] = v
		}
	}
	return out
}
