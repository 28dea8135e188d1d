// Package textutil holds small string helpers shared across layers.
package textutil

import "strings"

// NormalizeAttributes trims keys and values and lowercases keys, dropping
// entries whose key or value ends up empty. Variant attribute maps pass
// through here on both the read and the request path so lookups compare
// like with like.
func NormalizeAttributes(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	result := make(map[string]string, len(values))
	for key, value := range values {
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		result[key] = value
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
