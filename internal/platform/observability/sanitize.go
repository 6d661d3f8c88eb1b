package observability

import (
	"strings"
	"unicode"
)

const (
	maxLoggedValue  = 256
	maxLoggedRoute  = 180
	maxLoggedMethod = 10
	maxLoggedUserID = 64
)

// stripControl drops control characters (except common whitespace) and caps
// the result length so attacker-controlled values cannot break log lines.
func stripControl(value string, limit int) string {
	if limit <= 0 {
		limit = maxLoggedValue
	}
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, value)
	runes := []rune(cleaned)
	if len(runes) > limit {
		runes = runes[:limit]
	}
	return string(runes)
}

// SanitizeRoute normalizes a request route for log and trace attributes.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return stripControl(route, maxLoggedRoute)
}

// SanitizeMethod normalizes an HTTP method for log attributes.
func SanitizeMethod(method string) string {
	return stripControl(method, maxLoggedMethod)
}

// SanitizeUserID caps identifiers before they reach logs.
func SanitizeUserID(uid string) string {
	if uid == "" {
		return ""
	}
	return stripControl(uid, maxLoggedUserID)
}
