package logger

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// Credentials and chapter content never reach a log line. Exact names are
// checked first, then fragments that catch variants like "gemini_api_key"
// or "user_guide_text".
var (
	secretKeyNames = []string{"keys", "token", "authorization", "x-api-key", "user_guide"}
	secretKeyParts = []string{"api_key", "apikey", "secret", "password", "prompt", "_text", "body", "content"}
)

var secretValues = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bsk-(ant-|proj-)?[A-Za-z0-9_-]{10,}\b`),
	regexp.MustCompile(`\bAIza[0-9A-Za-z\-_]{10,}\b`),
	regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9\-._~+/]+=*\b`),
	regexp.MustCompile(`(?i)\b(api[_-]?key|access[_-]?token|secret)\b\s*[:=]\s*\S+`),
}

// RedactAttr is the slog.ReplaceAttr hook used by every handler.
func RedactAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		return a
	}
	if secretKey(a.Key) || secretValue(a.Value) {
		return slog.String(a.Key, redacted)
	}
	return a
}

func secretKey(key string) bool {
	key = strings.ToLower(key)
	for _, name := range secretKeyNames {
		if key == name {
			return true
		}
	}
	for _, part := range secretKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

func secretValue(v slog.Value) bool {
	var s string
	if v.Kind() == slog.KindString {
		s = v.String()
	} else {
		s = fmt.Sprint(v.Any())
	}
	if s == "" {
		return false
	}
	for _, re := range secretValues {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
