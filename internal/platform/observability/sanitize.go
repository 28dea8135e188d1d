package observability

import "strings"

const defaultFieldLimit = 256

// sanitizeString strips control characters and bounds length so request-derived
// values cannot inject newlines or bloat into log records.
func sanitizeString(value string, limit int) string {
	if limit <= 0 {
		limit = defaultFieldLimit
	}
	var b strings.Builder
	b.Grow(len(value))
	count := 0
	for _, r := range value {
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
		count++
		if count >= limit {
			break
		}
	}
	return b.String()
}

// SanitizeRoute bounds a chi route pattern for use as a log or span attribute.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeString(route, 180)
}

// SanitizeMethod bounds an HTTP method string.
func SanitizeMethod(method string) string {
	return sanitizeString(method, 10)
}

// SanitizeUserID bounds user identifiers before they reach log output.
func SanitizeUserID(uid string) string {
	if uid == "" {
		return ""
	}
	return sanitizeString(uid, 64)
}
