package logger

import (
	"regexp"
	"strings"
)

const redactedValue = "[REDACTED]"

// SensitiveDataPatterns contains regex patterns for sensitive data that should be redacted in logs
var SensitiveDataPatterns = []*regexp.Regexp{
	// Picovoice access keys and other credentials written as key=value
	regexp.MustCompile(`(?i)((access[-_]?key|api[-_]?key|token|secret|passw(or)?d)[\s:=]+)([^;,\s]{5,})`),

	// Sentry DSN public key: https://<key>@o0.ingest.sentry.io/0
	regexp.MustCompile(`(?i)(https?://)([0-9a-f]{16,})(@)`),
}

// SensitiveKeywords are field keys whose values are never logged.
// "key" alone is not listed; "keyword" fields are ordinary data.
var SensitiveKeywords = []string{
	"accesskey", "access_key", "password", "secret", "token", "dsn", "api_key", "apikey",
}

// RedactSensitiveData replaces sensitive information with "[REDACTED]"
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}

	input = SensitiveDataPatterns[0].ReplaceAllString(input, "$1"+redactedValue)
	input = SensitiveDataPatterns[1].ReplaceAllString(input, "$1"+redactedValue+"$3")

	return input
}

func isSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, sensitiveKey := range SensitiveKeywords {
		if strings.Contains(keyLower, sensitiveKey) {
			return true
		}
	}
	return false
}
