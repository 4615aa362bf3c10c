package logger

import "regexp"

var sensitivePatterns = []*regexp.Regexp{
	// user:password@ in DSNs and URLs
	regexp.MustCompile(`([^:/@\s]+:)([^@\s]+)(@)`),
	// password=..., token=..., secret=...
	regexp.MustCompile(`(?i)((?:passw(?:or)?d|token|secret|api[_-]?key)\s*[:=]\s*)([^;,&\s]+)()`),
}

// RedactSensitiveData masks credentials in connection strings before they are logged
func RedactSensitiveData(input string) string {
	for _, pattern := range sensitivePatterns {
		input = pattern.ReplaceAllString(input, "${1}[REDACTED]${3}")
	}
	return input
}
